package store

import (
	"database/sql"
	_ "embed"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Connection pool limits for PostgreSQL.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions, history and response patterns in PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore connects to the database in opts and applies the schema.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, ErrDSNNotSet
	}
	db, err := openDB("PostgresStore", DSNTypePostgres, cfg.DSN, postgresMigrations, func(db *sql.DB) {
		db.SetMaxOpenConns(DefaultMaxOpenConns)
		db.SetMaxIdleConns(DefaultMaxIdleConns)
		db.SetConnMaxLifetime(DefaultConnMaxLifetime)
	})
	if err != nil {
		slog.Error("PostgresStore.NewPostgresStore: failed to open database", "error", err)
		return nil, err
	}
	return &PostgresStore{sqlStore{db: db, name: "PostgresStore", postgres: true}}, nil
}
