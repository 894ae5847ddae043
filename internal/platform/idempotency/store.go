// Package idempotency replays a repeated order submission that carries the same
// Idempotency-Key. Submissions are scoped per store. A placed order keeps its key for the
// retention TTL, while an unfinished submission only holds it for a short lease.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTTL is how long a placed order submission can be replayed.
	DefaultTTL = 24 * time.Hour
	// DefaultPendingTTL bounds how long an unfinished submission blocks its key.
	DefaultPendingTTL = time.Minute

	defaultStoreScope = "default"
)

// ErrFingerprintMismatch is returned when a key is reused for a different order submission.
var ErrFingerprintMismatch = errors.New("idempotency: key already used for a different order submission")

// Scope identifies a submission by store and shopper supplied key.
type Scope struct {
	Store string
	Key   string
}

// NewScope trims both parts. An empty store maps to the default store.
func NewScope(store, key string) Scope {
	store = strings.TrimSpace(store)
	if store == "" {
		store = defaultStoreScope
	}
	return Scope{Store: store, Key: strings.TrimSpace(key)}
}

func (s Scope) String() string { return s.Store + "|" + s.Key }

// documentID hashes the scope so arbitrary client keys are safe document ids.
func (s Scope) documentID() string {
	return sha256Hex([]byte(s.String()))
}

// State is the lifecycle state of a submission.
type State string

const (
	// StatePending marks a submission whose order is still being placed.
	StatePending State = "pending"
	// StatePlaced marks a submission whose order was placed and whose response can be replayed.
	StatePlaced State = "placed"
)

// PlacedOrder is the order reference returned by a successful submission.
type PlacedOrder struct {
	OrderID     string
	IncrementID string
}

// Response is the HTTP response replayed for a placed submission.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Submission is the stored state of one order submission.
type Submission struct {
	Scope       Scope
	Fingerprint string
	State       State
	Order       PlacedOrder
	Response    Response
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

func (s Submission) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Outcome describes what a caller must do after reserving a key.
type Outcome int

const (
	// OutcomeNew means the caller owns the key and must place the order.
	OutcomeNew Outcome = iota
	// OutcomeReplay means the order was already placed and Submission.Response must be replayed.
	OutcomeReplay
	// OutcomeInFlight means another request is still placing the order.
	OutcomeInFlight
)

// Reservation is the result of reserving a key.
type Reservation struct {
	Outcome    Outcome
	Submission Submission
}

// Store persists order submissions.
type Store interface {
	// Reserve claims the scope for lease unless a live submission already holds it.
	Reserve(ctx context.Context, scope Scope, fingerprint string, now time.Time, lease time.Duration) (Reservation, error)
	// Complete records the placed order and keeps it replayable for ttl.
	Complete(ctx context.Context, scope Scope, fingerprint string, order PlacedOrder, resp Response, now time.Time, ttl time.Duration) error
	// Release drops the submission so the shopper can submit again.
	Release(ctx context.Context, scope Scope) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// reserve applies the reservation rule shared by every store. It returns the submission to
// write when the caller takes ownership of the key.
func reserve(existing Submission, found bool, scope Scope, fingerprint string, now time.Time, lease time.Duration) (Reservation, *Submission, error) {
	if lease <= 0 {
		lease = DefaultPendingTTL
	}
	if !found || existing.expired(now) {
		fresh := Submission{
			Scope:       scope,
			Fingerprint: fingerprint,
			State:       StatePending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(lease),
		}
		return Reservation{Outcome: OutcomeNew, Submission: fresh}, &fresh, nil
	}
	if existing.Fingerprint != fingerprint {
		return Reservation{}, nil, ErrFingerprintMismatch
	}
	if existing.State == StatePlaced {
		return Reservation{Outcome: OutcomeReplay, Submission: existing}, nil, nil
	}
	return Reservation{Outcome: OutcomeInFlight, Submission: existing}, nil, nil
}

// complete builds the placed submission from the pending one.
func complete(existing Submission, found bool, scope Scope, fingerprint string, order PlacedOrder, resp Response, now time.Time, ttl time.Duration) (Submission, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if found && existing.Fingerprint != fingerprint {
		return Submission{}, ErrFingerprintMismatch
	}
	placed := Submission{
		Scope:       scope,
		Fingerprint: fingerprint,
		State:       StatePlaced,
		Order:       order,
		Response: Response{
			Status:  resp.Status,
			Headers: replayableHeaders(resp.Headers),
		},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if found && !existing.CreatedAt.IsZero() {
		placed.CreatedAt = existing.CreatedAt
	}
	if len(resp.Body) > 0 {
		placed.Response.Body = append([]byte(nil), resp.Body...)
	}
	return placed, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// replayableHeaders copies the headers worth replaying. Hop-by-hop headers, the request id and
// the length are produced again for every response.
func replayableHeaders(header http.Header) http.Header {
	out := make(http.Header, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch canonical {
		case "Content-Length", "Date", "Connection", "Keep-Alive", "Proxy-Authenticate",
			"Proxy-Authorization", "Te", "Trailers", "Transfer-Encoding", "Upgrade", "X-Request-Id":
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	return out
}
