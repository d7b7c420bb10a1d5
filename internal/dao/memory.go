package dao

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// memoryStore is a pure-Go, in-process Store used by unit tests and by the
// demo CLI's fixture loader. It honors the same Find/Load/SaveOrUpdate/
// Delete contract as the SQL-backed stores, including "?"-style where
// clauses for the handful of comparison shapes the engine actually issues
// (field = ? and field IN (...)), without going anywhere near a SQL engine.
type memoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Row // table -> id -> row
}

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{tables: make(map[string]map[string]Row)}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Find(_ context.Context, table string, where string, params []interface{}, sort_ string, desc bool, offset, limit int) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pred, err := compileWhere(where, params)
	if err != nil {
		return nil, err
	}

	var out []Row
	for _, row := range m.tables[table] {
		if pred(row) {
			out = append(out, row.Clone())
		}
	}

	if sort_ != "" {
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return out[i][sort_] > out[j][sort_]
			}
			return out[i][sort_] < out[j][sort_]
		})
	} else {
		// Deterministic default order so tests and the idempotence law
		// ("running twice yields identical enrichments") aren't at the
		// mercy of Go's randomized map iteration.
		sort.SliceStable(out, func(i, j int) bool { return out[i][PrimaryKeyField] < out[j][PrimaryKeyField] })
	}

	if offset > 0 {
		if offset >= len(out) {
			return nil, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) Load(_ context.Context, table, id string) (Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.tables[table]
	if rows == nil {
		return nil, false, nil
	}
	row, ok := rows[id]
	if !ok {
		return nil, false, nil
	}
	return row.Clone(), true, nil
}

func (m *memoryStore) SaveOrUpdate(_ context.Context, table string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row = row.Clone()
	if row[PrimaryKeyField] == "" {
		row[PrimaryKeyField] = uuid.NewString()
	}
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Row)
	}
	m.tables[table][row[PrimaryKeyField]] = row
	return nil
}

func (m *memoryStore) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables[table], id)
	return nil
}

// Seed inserts rows directly for fixture loading, keeping each row's own id
// and assigning a fresh one only to rows that carry none.
func (m *memoryStore) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Row)
	}
	for _, row := range rows {
		row = row.Clone()
		if row[PrimaryKeyField] == "" {
			row[PrimaryKeyField] = uuid.NewString()
		}
		m.tables[table][row[PrimaryKeyField]] = row
	}
}

// compileWhere understands the small subset of "?"-bound SQL predicates
// the engine's steps actually build: a conjunction of "field = ?",
// "field != ?", "field <= ?", "field >= ?", and "field IN (?, ?, ...)"
// clauses joined by " AND ". It is not a SQL parser.
func compileWhere(where string, params []interface{}) (func(Row) bool, error) {
	where = strings.TrimSpace(where)
	if where == "" {
		return func(Row) bool { return true }, nil
	}

	clauses := strings.Split(where, " AND ")
	pi := 0
	var preds []func(Row) bool
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		pred, consumed, err := compileClause(clause, params[pi:])
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
		pi += consumed
	}
	return func(row Row) bool {
		for _, p := range preds {
			if !p(row) {
				return false
			}
		}
		return true
	}, nil
}

func compileClause(clause string, params []interface{}) (func(Row) bool, int, error) {
	for _, op := range []string{"!=", "<=", ">=", "<", ">", "="} {
		if idx := strings.Index(clause, " "+op+" "); idx >= 0 {
			field := strings.TrimSpace(clause[:idx])
			rhs := strings.TrimSpace(clause[idx+len(op)+2:])
			if rhs == "?" {
				val := fmt.Sprintf("%v", params[0])
				return func(row Row) bool { return compareOp(row[field], op, val) }, 1, nil
			}
		}
	}
	if idx := strings.Index(clause, " IN ("); idx >= 0 {
		field := strings.TrimSpace(clause[:idx])
		rest := clause[idx+len(" IN ("):]
		n := strings.Count(rest, "?")
		vals := make(map[string]struct{}, n)
		for i := 0; i < n; i++ {
			vals[fmt.Sprintf("%v", params[i])] = struct{}{}
		}
		return func(row Row) bool {
			_, ok := vals[row[field]]
			return ok
		}, n, nil
	}
	return nil, 0, fmt.Errorf("dao: memory store cannot evaluate clause %q", clause)
}

func compareOp(actual, op, expected string) bool {
	switch op {
	case "=":
		return actual == expected
	case "!=":
		return actual != expected
	case "<=":
		return actual <= expected
	case ">=":
		return actual >= expected
	case "<":
		return actual < expected
	case ">":
		return actual > expected
	}
	return false
}
