package dao

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// dialect captures the small amount of SQL-flavor variance between the
// backends this adapter supports (placeholder style).
type dialect int

const (
	dialectPostgres dialect = iota
	dialectSQLite
)

// sqlStore is a generic Store implementation over database/sql, shared by
// the Postgres and SQLite backends. It never assumes a fixed schema: every
// query is built from the logical table name and field names supplied by
// the caller, which are used unchanged as the physical table and column
// names.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	closer  func() error
}

func (s *sqlStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return s.db.Close()
}

// rebind converts "?" placeholders (the Store interface's caller-facing
// convention) into the backend's native placeholder style.
func (s *sqlStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Find(ctx context.Context, table string, where string, params []interface{}, sort string, desc bool, offset, limit int) ([]Row, error) {
	query := "SELECT * FROM " + table
	if strings.TrimSpace(where) != "" {
		query += " WHERE " + where
	}
	if sort != "" {
		order := "ASC"
		if desc {
			order = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s", sort, order)
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), params...)
	if err != nil {
		return nil, fmt.Errorf("dao: find %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *sqlStore) Load(ctx context.Context, table, id string) (Row, bool, error) {
	rows, err := s.Find(ctx, table, "id = ?", []interface{}{id}, "", false, 0, 1)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (s *sqlStore) SaveOrUpdate(ctx context.Context, table string, row Row) error {
	row = row.Clone()
	if row[PrimaryKeyField] == "" {
		row[PrimaryKeyField] = uuid.NewString()
	}

	_, exists, err := s.Load(ctx, table, row[PrimaryKeyField])
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}

	if !exists {
		placeholders := make([]string, len(cols))
		args := make([]interface{}, len(cols))
		for i, c := range cols {
			placeholders[i] = "?"
			args[i] = row[c]
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
		if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
			return fmt.Errorf("dao: insert %s: %w", table, err)
		}
		return nil
	}

	sets := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for _, c := range cols {
		if c == PrimaryKeyField {
			continue
		}
		sets = append(sets, c+" = ?")
		args = append(args, row[c])
	}
	args = append(args, row[PrimaryKeyField])
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	if _, err := s.db.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return fmt.Errorf("dao: update %s: %w", table, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, table, id string) error {
	query := s.rebind("DELETE FROM " + table + " WHERE id = ?")
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("dao: delete %s: %w", table, err)
	}
	return nil
}

// scanRows materializes a *sql.Rows result into Row values using each
// column's declared name, without requiring a fixed struct shape.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("dao: columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("dao: scan: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = stringifyCell(raw[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func stringifyCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", t)
	}
}
