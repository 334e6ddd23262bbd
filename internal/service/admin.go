package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/heyfriend/landing/internal/apperror"
	"github.com/heyfriend/landing/internal/model"
	"github.com/heyfriend/landing/internal/repository"
)

// Verifier checks the admin shared secret. *auth.SecretVerifier satisfies it.
type Verifier interface {
	Verify(password string) error
}

// AdminService gates list, export and delete behind the shared secret.
//
// ORDERING:
// Every method verifies the password before looking at any other input and
// before touching storage. A wrong password never reads or deletes data,
// whatever id comes with it.
type AdminService struct {
	subscribers *SubscriberService
	repo        repository.SubscriberRepository
	verifier    Verifier
	logger      *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(
	subscribers *SubscriberService,
	repo repository.SubscriberRepository,
	verifier Verifier,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		subscribers: subscribers,
		repo:        repo,
		verifier:    verifier,
		logger:      logger,
	}
}

// Authorize checks password and logs failed attempts without the value.
func (s *AdminService) Authorize(password string) error {
	if err := s.verifier.Verify(password); err != nil {
		s.logger.Warn("admin password check failed",
			slog.Bool("provided", strings.TrimSpace(password) != ""),
		)
		return err
	}
	return nil
}

// List returns every subscriber once password is verified.
func (s *AdminService) List(ctx context.Context, password string) ([]model.Subscriber, error) {
	if err := s.Authorize(password); err != nil {
		return nil, err
	}
	return s.subscribers.List(ctx)
}

// Delete removes the subscriber identified by rawID once password is verified.
//
// rawID is the id exactly as the client sent it (the JSON token text). It
// must be a base-10 integer greater than zero; quoted strings, fractions,
// zero and negatives are validation errors.
func (s *AdminService) Delete(ctx context.Context, password, rawID string) error {
	if err := s.Authorize(password); err != nil {
		return err
	}

	id, err := ParseSubscriberID(rawID)
	if err != nil {
		return err
	}

	removed, err := s.repo.Remove(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete subscriber",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("service: deleting subscriber %d: %w", id, err)
	}
	if !removed {
		return apperror.NotFound("Email not found")
	}

	s.logger.Info("subscriber deleted", slog.Int64("id", id))
	return nil
}

// ParseSubscriberID validates a subscriber id supplied by a client.
func ParseSubscriberID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "Invalid email ID")
	}
	return id, nil
}
