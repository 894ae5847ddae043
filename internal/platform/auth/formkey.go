// Package auth issues and verifies the anti-forgery form keys embedded in the quick order form.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
)

const (
	defaultFormKeyTTL    = 2 * time.Hour
	defaultFormKeyIssuer = "quickorder"
	minFormKeySecretLen  = 16
)

var (
	// ErrFormKeyInvalid indicates the key is malformed, forged or bound to another store.
	ErrFormKeyInvalid = errors.New("auth: invalid form key")
	// ErrFormKeyExpired indicates the key was valid but its lifetime elapsed.
	ErrFormKeyExpired = errors.New("auth: form key expired")
)

// FormKeyClaims are the claims carried by a form key.
type FormKeyClaims struct {
	Store string `json:"store"`
	jwt.RegisteredClaims
}

// FormKeySigner signs HS256 form keys scoped to a store.
type FormKeySigner struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	newID  func() string
}

// FormKeyOption customises the signer.
type FormKeyOption func(*FormKeySigner)

// WithFormKeyTTL overrides the lifetime of issued keys.
func WithFormKeyTTL(ttl time.Duration) FormKeyOption {
	return func(s *FormKeySigner) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithFormKeyIssuer overrides the issuer claim.
func WithFormKeyIssuer(issuer string) FormKeyOption {
	return func(s *FormKeySigner) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithFormKeyClock injects a custom clock, primarily for tests.
func WithFormKeyClock(now func() time.Time) FormKeyOption {
	return func(s *FormKeySigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFormKeySigner builds a signer from the shared secret.
func NewFormKeySigner(secret string, opts ...FormKeyOption) (*FormKeySigner, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < minFormKeySecretLen {
		return nil, fmt.Errorf("auth: form key secret must be at least %d characters", minFormKeySecretLen)
	}
	signer := &FormKeySigner{
		secret: []byte(secret),
		ttl:    defaultFormKeyTTL,
		issuer: defaultFormKeyIssuer,
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(signer)
		}
	}
	return signer, nil
}

// Issue returns a signed key for the store and its expiry.
func (s *FormKeySigner) Issue(store string) (string, time.Time, error) {
	if s == nil {
		return "", time.Time{}, errors.New("auth: form key signer not configured")
	}
	now := s.now().UTC()
	expires := now.Add(s.ttl)
	claims := FormKeyClaims{
		Store: strings.TrimSpace(store),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.newID(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign form key: %w", err)
	}
	return token, expires, nil
}

// Verify checks the signature, issuer, expiry and store binding of the key.
func (s *FormKeySigner) Verify(store, token string) error {
	if s == nil {
		return errors.New("auth: form key signer not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrFormKeyInvalid
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &FormKeyClaims{}
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrFormKeyInvalid, err)
	}

	if !claims.VerifyIssuer(s.issuer, true) {
		return fmt.Errorf("%w: issuer mismatch", ErrFormKeyInvalid)
	}
	if !claims.VerifyExpiresAt(s.now(), true) {
		return ErrFormKeyExpired
	}
	if claims.Store != strings.TrimSpace(store) {
		return fmt.Errorf("%w: store mismatch", ErrFormKeyInvalid)
	}
	return nil
}
