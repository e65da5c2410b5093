// Package store provides storage backends for Lumi.
//
// It persists conversation sessions, message history, mood scale records and
// the local response patterns. Three backends are available: an in-memory
// store for tests and ephemeral runs, SQLite, and PostgreSQL.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/Lumi/internal/models"
)

// DefaultHistoryLimit caps ListMessages when the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// ErrNotFound is returned by mutating operations when the target record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDSNNotSet is returned when a SQL backend is opened without a connection string.
var ErrDSNNotSet = errors.New("database DSN not set")

// SessionStore persists conversation sessions keyed by sender ID.
// GetSession returns (nil, nil) when the sender has no session.
type SessionStore interface {
	GetSession(ctx context.Context, senderID string) (*models.Session, error)
	CreateSession(ctx context.Context, session *models.Session) error
	UpdateSession(ctx context.Context, session *models.Session) error
	SetWantsSupport(ctx context.Context, senderID string, wants bool) error
	ListFollowUpDue(ctx context.Context, hhmm string) ([]*models.Session, error)
	ListLowScaleSessions(ctx context.Context, threshold int) ([]*models.Session, error)
}

// HistoryStore persists processed exchanges and mood scale records.
type HistoryStore interface {
	AppendMessage(ctx context.Context, entry models.HistoryEntry) error
	// ListMessages returns the most recent entries first.
	ListMessages(ctx context.Context, senderID string, limit int) ([]models.HistoryEntry, error)
	SaveScale(ctx context.Context, record models.ScaleRecord) error
	// ListScalesSince returns records at or after since, oldest first.
	ListScalesSince(ctx context.Context, senderID string, since time.Time) ([]models.ScaleRecord, error)
}

// PatternStore persists local response patterns.
type PatternStore interface {
	ListPatterns(ctx context.Context) ([]models.ResponsePattern, error)
	FindPatternsByIntent(ctx context.Context, intent string) ([]models.ResponsePattern, error)
	GetPattern(ctx context.Context, id string) (*models.ResponsePattern, error)
	SavePattern(ctx context.Context, pattern models.ResponsePattern) error
	DeletePattern(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the application.
type Store interface {
	SessionStore
	HistoryStore
	PatternStore
	Close() error
}

// DSN type identifiers returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite3"
)

// DetectDSNType guesses the database driver for a connection string.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") || strings.Contains(lower, "dbname=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN    string
	Driver string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given file path or DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DSNTypeSQLite
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Driver = DSNTypePostgres
	}
}

// New opens the backend selected by opts. With no DSN it returns an in-memory store.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("Store.New: no DSN configured, using in-memory store")
		return NewInMemoryStore(), nil
	}
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDSNType(cfg.DSN)
	}
	if driver == DSNTypePostgres {
		pg, err := NewPostgresStore(opts...)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	lite, err := NewSQLiteStore(opts...)
	if err != nil {
		return nil, err
	}
	return lite, nil
}
