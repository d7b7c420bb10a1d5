package dao

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteStore opens a (file-backed or ":memory:") SQLite database through
// GORM, selectable in the demo CLI (STORE_BACKEND=sqlite) as a real SQL
// engine without a live Postgres instance.
func NewSQLiteStore(path string) (Store, error) {
	if path == "" {
		path = ":memory:"
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("dao: connect sqlite: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("dao: underlying sql.DB: %w", err)
	}
	// SQLite has no real concurrent-writer story; cap the pool at one
	// connection so the Store's single *sql.DB handle is never shared
	// across two in-flight writes.
	sqlDB.SetMaxOpenConns(1)

	return &sqlStore{db: sqlDB, dialect: dialectSQLite, closer: sqlDB.Close}, nil
}
