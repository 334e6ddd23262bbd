package repository

import (
	"context"

	"github.com/heyfriend/landing/internal/model"
)

// SubscriberRepository is the persistence boundary for the waitlist.
//
// Add returns an apperror.ErrConflict error when the email is already
// stored. Remove reports whether a row was actually deleted; a missing id
// is not an error at this layer.
type SubscriberRepository interface {
	Add(ctx context.Context, email string) (*model.Subscriber, error)
	Exists(ctx context.Context, email string) (bool, error)
	ListAll(ctx context.Context) ([]model.Subscriber, error)
	Remove(ctx context.Context, id int64) (bool, error)
}
