// Package sqldb implements the repository interfaces on top of database/sql.
//
// TWO BACKENDS, ONE SET OF QUERIES:
// The waitlist runs against Postgres in production and SQLite everywhere
// else (local development, tests, single-box deployments). The connection
// string picks the backend:
//
//   - "postgres://..." or "postgresql://..." → github.com/lib/pq
//   - anything else                          → modernc.org/sqlite (a file path or ":memory:")
//
// Queries are written once with "?" placeholders. sqlx's Rebind rewrites them
// to "$1, $2, ..." for Postgres, so the same SQL text serves both drivers.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is pure Go.
package sqldb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	// BLANK IMPORTS:
	// Each driver registers itself with database/sql in its init() function.
	// lib/pq registers "postgres", modernc registers "sqlite".
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config defines how to reach the database.
type Config struct {
	DSN                string `mapstructure:"dsn"`
	Automigrate        bool   `mapstructure:"automigrate"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

// backend describes one supported database engine.
type backend struct {
	name           string // used for logs and the migrations directory
	driver         string // database/sql driver name
	migrateDialect string // rubenv/sql-migrate dialect name
}

var (
	postgresBackend = backend{name: "postgres", driver: "postgres", migrateDialect: "postgres"}
	sqliteBackend   = backend{name: "sqlite", driver: "sqlite", migrateDialect: "sqlite3"}
)

// DB wraps a sqlx connection pool and provides repository methods.
type DB struct {
	conn    *sqlx.DB
	backend backend

	// now is the clock used for created_at. Tests replace it to get
	// deterministic ordering.
	now func() time.Time
}

// Open connects to the database described by cfg and, when cfg.Automigrate
// is set, applies the schema before returning.
//
// CONNECTION POOL:
// sqlx.Open (like sql.Open) does NOT actually open a connection; it just
// creates a pool manager. We ping with a timeout so a bad DSN fails at
// startup instead of on the first request.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	b, dsn, err := resolve(cfg.DSN)
	if err != nil {
		return nil, err
	}

	conn, err := sqlx.Open(b.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldb: opening %s database: %w", b.name, err)
	}

	if cfg.MaxOpenConnections > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	conn.SetConnMaxIdleTime(5 * time.Minute)

	// Every new connection to ":memory:" is a brand-new, empty database.
	// Pinning the pool to a single connection keeps the schema visible.
	if isMemory(dsn) {
		conn.SetMaxOpenConns(1)
		conn.SetConnMaxIdleTime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqldb: pinging %s database: %w", b.name, err)
	}

	db := &DB{
		conn:    conn,
		backend: b,
		now:     time.Now,
	}

	if cfg.Automigrate {
		if err := db.Initialize(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqldb: ping: %w", err)
	}
	return nil
}

// Backend returns the engine name ("postgres" or "sqlite").
func (db *DB) Backend() string {
	return db.backend.name
}

// resolve maps a connection string onto a backend and the DSN the driver
// expects.
func resolve(raw string) (backend, string, error) {
	dsn := strings.TrimSpace(raw)
	if dsn == "" {
		return backend{}, "", fmt.Errorf("sqldb: empty connection string")
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgresBackend, dsn, nil
	}

	dsn = strings.TrimPrefix(dsn, "sqlite://")
	if isMemory(dsn) {
		return sqliteBackend, dsn, nil
	}

	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return backend{}, "", fmt.Errorf("sqldb: creating database directory %s: %w", dir, err)
		}
	}

	// PRAGMAS via the DSN apply to every pooled connection, not just the
	// first one. WAL lets readers proceed while a write is in progress and
	// busy_timeout makes concurrent writers wait instead of failing.
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	return sqliteBackend, dsn, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
