// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives (an email string, a password string), never
// *http.Request, and return apperror values instead of status codes. The
// same SubscriberService backs the HTTP API and the `export` CLI command.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/heyfriend/landing/internal/apperror"
	"github.com/heyfriend/landing/internal/model"
	"github.com/heyfriend/landing/internal/repository"
)

// MaxEmailLength matches the VARCHAR(255) column in Postgres, which counts
// characters, not bytes.
const MaxEmailLength = 255

// emailPattern is a deliberately loose local@domain.tld shape check, not
// RFC 5322: no whitespace, exactly one "@", and a dot in the domain part.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SubscriberService handles the public side of the waitlist.
type SubscriberService struct {
	repo   repository.SubscriberRepository
	logger *slog.Logger
}

// NewSubscriberService creates a new SubscriberService.
func NewSubscriberService(repo repository.SubscriberRepository, logger *slog.Logger) *SubscriberService {
	return &SubscriberService{
		repo:   repo,
		logger: logger,
	}
}

// ValidateEmail applies the waitlist's email rules in order: present,
// not too long, and shaped like local@domain.tld. The address is not
// trimmed or case-folded; it is stored exactly as submitted.
func ValidateEmail(email string) error {
	if email == "" {
		return apperror.ValidationFailed("email", "Email is required")
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return apperror.ValidationFailed("email",
			fmt.Sprintf("Email must be %d characters or less", MaxEmailLength))
	}
	if !emailPattern.MatchString(email) {
		return apperror.ValidationFailed("email", "Invalid email format")
	}
	return nil
}

// Subscribe validates email and adds it to the waitlist.
//
// The Exists pre-check gives the common duplicate case a cheap answer, but
// it is not what guarantees uniqueness: two concurrent requests can both
// pass it. The repository's Add resolves that race through the UNIQUE
// constraint and returns apperror.ErrConflict to the loser, which is
// reported exactly like the pre-check's "already exists".
func (s *SubscriberService) Subscribe(ctx context.Context, email string) (*model.Subscriber, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, email)
	if err != nil {
		s.logger.Error("failed to check subscriber", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service: checking subscriber: %w", err)
	}
	if exists {
		return nil, apperror.Conflict("Email already subscribed")
	}

	subscriber, err := s.repo.Add(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to add subscriber", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service: adding subscriber: %w", err)
	}

	s.logger.Info("subscriber added", slog.Int64("id", subscriber.ID))
	return subscriber, nil
}

// List returns every subscriber, newest first.
//
// It performs no authorization; callers are either AdminService (which
// checks the shared secret first) or an operator with direct database
// access running the CLI.
func (s *SubscriberService) List(ctx context.Context) ([]model.Subscriber, error) {
	subscribers, err := s.repo.ListAll(ctx)
	if err != nil {
		s.logger.Error("failed to list subscribers", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service: listing subscribers: %w", err)
	}
	return subscribers, nil
}
