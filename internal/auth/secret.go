// Package auth guards the admin endpoints with a single shared secret.
//
// There are no user accounts: whoever knows the admin password can list,
// export and delete subscribers. The secret is required configuration and
// the process refuses to start without one.
//
// WHY BCRYPT FOR A SHARED SECRET?
// The secret is kept in memory only as a bcrypt hash and every check goes
// through bcrypt.CompareHashAndPassword, which compares in constant time.
// It also lets operators configure a hash (ADMIN_PASSWORD_HASH) instead of
// the plaintext, so the password never has to appear in the environment.
//
// Hash format (the full output of bcrypt.GenerateFromPassword):
//
//	$2a$10$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost
//	 version
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/heyfriend/landing/internal/apperror"
)

// IncorrectPasswordMessage is the only thing a caller learns about a failed check.
const IncorrectPasswordMessage = "Unauthorized - Incorrect password"

// maxSecretBytes is the bcrypt input limit. Longer inputs are rejected
// rather than silently truncated.
const maxSecretBytes = 72

// ErrNoSecret is returned when neither a password nor a hash is configured.
var ErrNoSecret = errors.New("auth: admin secret is required (set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH)")

// Config holds the admin secret. PasswordHash wins when both are set.
type Config struct {
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
}

// Secret sources reported by SecretVerifier.Source.
const (
	SourcePlaintext = "plaintext"
	SourceHash      = "hash"
)

// SecretVerifier checks caller-supplied passwords against the admin secret.
type SecretVerifier struct {
	hash   []byte
	source string
}

// NewSecretVerifier builds a verifier from cfg using bcrypt.DefaultCost for
// a plaintext secret.
func NewSecretVerifier(cfg Config) (*SecretVerifier, error) {
	return newSecretVerifierWithCost(cfg, bcrypt.DefaultCost)
}

// NewSecretVerifierForTest builds a verifier with the given bcrypt cost.
// Use bcrypt.MinCost in tests in other packages; never in production.
func NewSecretVerifierForTest(cfg Config, cost int) (*SecretVerifier, error) {
	return newSecretVerifierWithCost(cfg, cost)
}

func newSecretVerifierWithCost(cfg Config, cost int) (*SecretVerifier, error) {
	if hash := strings.TrimSpace(cfg.PasswordHash); hash != "" {
		// bcrypt.Cost parses the hash header, so a typo fails at startup.
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("auth: ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		return &SecretVerifier{hash: []byte(hash), source: SourceHash}, nil
	}

	hash, err := hashSecret(cfg.Password, cost)
	if err != nil {
		return nil, err
	}
	return &SecretVerifier{hash: []byte(hash), source: SourcePlaintext}, nil
}

// HashSecret trims secret and returns its bcrypt hash, suitable for
// ADMIN_PASSWORD_HASH.
func HashSecret(secret string) (string, error) {
	return hashSecret(secret, bcrypt.DefaultCost)
}

func hashSecret(secret string, cost int) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", ErrNoSecret
	}
	if len(secret) > maxSecretBytes {
		return "", fmt.Errorf("auth: admin secret must be %d bytes or fewer", maxSecretBytes)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing admin secret: %w", err)
	}
	return string(hashed), nil
}

// Verify checks password against the secret after trimming surrounding
// whitespace. A missing or wrong password yields apperror.ErrUnauthorized;
// any other error means the stored hash itself is unusable.
func (v *SecretVerifier) Verify(password string) error {
	password = strings.TrimSpace(password)
	if password == "" || len(password) > maxSecretBytes {
		return apperror.Unauthorized(IncorrectPasswordMessage)
	}

	err := bcrypt.CompareHashAndPassword(v.hash, []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return apperror.Unauthorized(IncorrectPasswordMessage)
		}
		return fmt.Errorf("auth: comparing admin secret: %w", err)
	}
	return nil
}

// Source reports whether the secret was configured as plaintext or as a hash.
func (v *SecretVerifier) Source() string {
	return v.source
}
