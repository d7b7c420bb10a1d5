// Command migrate applies the reference/emitted table schema to a
// Postgres database, adapted from the teacher's flat-file runner
// (backend/migrations/migrate.go): numbered .sql files in a directory,
// tracked in a schema_migrations table, applied in order inside a
// transaction.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"

	"github.com/fincore/txn-enrichment/internal/dao"
)

type migration struct {
	id       int
	filename string
	content  string
}

func main() {
	dir := flag.String("dir", "migrations", "directory containing numbered .sql migration files")
	flag.Parse()

	cfg := dao.NewPostgresConfigFromEnv()
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("failed to ping database: ", err)
	}

	if err := createMigrationsTable(db); err != nil {
		log.Fatal("failed to create migrations table: ", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		log.Fatal("failed to get current version: ", err)
	}

	migrations, err := loadMigrations(*dir)
	if err != nil {
		log.Fatal("failed to load migrations: ", err)
	}

	for _, m := range migrations {
		if m.id <= currentVersion {
			continue
		}
		log.Printf("running migration %d: %s", m.id, m.filename)
		if err := runMigration(db, m); err != nil {
			log.Fatalf("failed to run migration %d: %v", m.id, err)
		}
		log.Printf("migration %d completed", m.id)
	}

	log.Println("all migrations completed successfully")
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			executed_at TIMESTAMP DEFAULT NOW()
		)
	`)
	return err
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

func loadMigrations(dir string) ([]migration, error) {
	var migrations []migration

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(file.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		id, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := os.ReadFile(dir + "/" + file.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
		}
		migrations = append(migrations, migration{id: id, filename: file.Name(), content: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].id < migrations[j].id })
	return migrations, nil
}

func runMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.content); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version, filename) VALUES ($1, $2)", m.id, m.filename); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
