package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/heyfriend/landing/internal/apperror"
	"github.com/heyfriend/landing/internal/model"
	"github.com/heyfriend/landing/internal/repository"
)

// compile-time check that *DB implements repository.SubscriberRepository
var _ repository.SubscriberRepository = (*DB)(nil)

const (
	insertSubscriberSQL = `
		INSERT INTO email_subscribers (email, created_at)
		VALUES (?, ?)
		ON CONFLICT (email) DO NOTHING
		RETURNING id`

	countSubscriberSQL = `SELECT COUNT(*) FROM email_subscribers WHERE email = ?`

	listSubscribersSQL = `
		SELECT id, email, created_at
		FROM email_subscribers
		ORDER BY created_at DESC, id DESC`

	// The cast keeps an id beyond int4 a plain miss on a Postgres table
	// created with SERIAL by an older deployment.
	deleteSubscriberSQL = `DELETE FROM email_subscribers WHERE id = CAST(? AS BIGINT)`
)

// Add inserts a new subscriber.
//
// ON CONFLICT DO NOTHING:
// The UNIQUE constraint on email decides duplicates, not a prior SELECT.
// When the email is already stored the INSERT affects zero rows, RETURNING
// yields nothing, and Scan reports sql.ErrNoRows. That is translated into
// apperror.ErrConflict. Two concurrent Adds for the same address therefore
// produce exactly one row and one conflict.
func (db *DB) Add(ctx context.Context, email string) (*model.Subscriber, error) {
	// Postgres keeps microseconds; truncating here means the returned value
	// matches what a later ListAll reads back.
	createdAt := db.now().UTC().Truncate(time.Microsecond)

	var id int64
	err := db.conn.QueryRowxContext(ctx, db.conn.Rebind(insertSubscriberSQL), email, createdAt).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Conflict("Email already subscribed")
		}
		return nil, fmt.Errorf("sqldb: adding subscriber: %w", err)
	}

	return &model.Subscriber{
		ID:        id,
		Email:     email,
		CreatedAt: createdAt,
	}, nil
}

// Exists reports whether a subscriber with exactly this email is stored.
// Storage failures are returned, not folded into false.
func (db *DB) Exists(ctx context.Context, email string) (bool, error) {
	var count int
	if err := db.conn.GetContext(ctx, &count, db.conn.Rebind(countSubscriberSQL), email); err != nil {
		return false, fmt.Errorf("sqldb: checking subscriber: %w", err)
	}
	return count > 0, nil
}

// ListAll returns every subscriber, newest first. There is no pagination;
// the waitlist is small enough to export in one go.
func (db *DB) ListAll(ctx context.Context) ([]model.Subscriber, error) {
	subscribers := []model.Subscriber{}
	if err := db.conn.SelectContext(ctx, &subscribers, listSubscribersSQL); err != nil {
		return nil, fmt.Errorf("sqldb: listing subscribers: %w", err)
	}
	return subscribers, nil
}

// Remove deletes the subscriber with the given id and reports whether a
// row was actually removed.
func (db *DB) Remove(ctx context.Context, id int64) (bool, error) {
	result, err := db.conn.ExecContext(ctx, db.conn.Rebind(deleteSubscriberSQL), id)
	if err != nil {
		return false, fmt.Errorf("sqldb: deleting subscriber %d: %w", id, err)
	}

	// RowsAffected() tells us how many rows matched the WHERE clause.
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqldb: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
