package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0o755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions, history and response patterns in one SQLite file.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore opens the file path or "file:" URI in opts, creating its
// directory when missing, and applies the schema.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, ErrDSNNotSet
	}

	if path := sqliteFilePath(cfg.DSN); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("SQLiteStore: create database directory: %w", err)
		}
	}

	// One connection: SQLite allows a single writer and concurrent senders
	// would otherwise hit "database is locked".
	db, err := openDB("SQLiteStore", DSNTypeSQLite, cfg.DSN, sqliteMigrations, func(db *sql.DB) {
		db.SetMaxOpenConns(1)
	})
	if err != nil {
		slog.Error("SQLiteStore.NewSQLiteStore: failed to open database", "dsn", cfg.DSN, "error", err)
		return nil, err
	}
	return &SQLiteStore{sqlStore{db: db, name: "SQLiteStore"}}, nil
}

// sqliteFilePath extracts the on-disk path from a DSN, or "" for in-memory databases.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}
