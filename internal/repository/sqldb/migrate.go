package sqldb

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"path"

	migrate "github.com/rubenv/sql-migrate"
)

// Each backend has its own migrations directory because the DDL differs
// (SERIAL vs AUTOINCREMENT). Every statement is written with IF NOT EXISTS
// so a table created before migrations were tracked is adopted as-is.
//
//go:embed migrations
var migrations embed.FS

// Initialize applies any pending schema migrations. It is idempotent:
// calling it on an up-to-date database applies nothing and returns nil.
//
// Run it once at process start (Open does this when Automigrate is set) or
// from the `migrate` subcommand; request handlers never touch the schema.
func (db *DB) Initialize(ctx context.Context) error {
	src := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       path.Join("migrations", db.backend.name),
	}

	// migrate.Exec has no context parameter, so it runs in a goroutine and
	// we stop waiting when ctx is done.
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := migrate.Exec(db.conn.DB, db.backend.migrateDialect, src, migrate.Up)
		done <- result{n: n, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("sqldb: migrations interrupted: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("sqldb: applying %s migrations: %w", db.backend.name, res.err)
		}
		slog.Default().InfoContext(ctx, "applied migrations",
			slog.String("backend", db.backend.name),
			slog.Int("count", res.n),
		)
		return nil
	}
}
