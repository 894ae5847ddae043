package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/easyorder/quickorder/internal/platform/firestore"
)

const (
	defaultCollection  = "orderSubmissions"
	defaultMaxAttempts = 5
	defaultCleanupSize = 100
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*firestoreOptions)

type firestoreOptions struct {
	collection  string
	maxAttempts int
}

// WithCollection overrides the collection holding order submissions.
func WithCollection(name string) FirestoreOption {
	return func(opts *firestoreOptions) {
		if name != "" {
			opts.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(opts *firestoreOptions) {
		if attempts > 0 {
			opts.maxAttempts = attempts
		}
	}
}

// FirestoreStore keeps order submissions in Firestore so replays work across instances.
type FirestoreStore struct {
	provider    *pfirestore.Provider
	submissions *pfirestore.Collection[submissionDocument]
	maxAttempts int
}

func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	cfg := firestoreOptions{collection: defaultCollection, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &FirestoreStore{
		provider:    provider,
		submissions: pfirestore.NewCollection[submissionDocument](provider, cfg.collection, nil, nil),
		maxAttempts: cfg.maxAttempts,
	}, nil
}

func (s *FirestoreStore) Reserve(ctx context.Context, scope Scope, fingerprint string, now time.Time, lease time.Duration) (Reservation, error) {
	var result Reservation
	err := s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := s.load(ctx, tx, scope)
		if err != nil {
			return err
		}
		reservation, write, err := reserve(existing, found, scope, fingerprint, now.UTC(), lease)
		if err != nil {
			return err
		}
		result = reservation
		if write == nil {
			return nil
		}
		return s.submissions.SetTx(ctx, tx, scope.documentID(), newSubmissionDocument(*write))
	}, pfirestore.WithTxAttempts(s.maxAttempts))
	if errors.Is(err, ErrFingerprintMismatch) {
		return Reservation{}, ErrFingerprintMismatch
	}
	return result, err
}

func (s *FirestoreStore) Complete(ctx context.Context, scope Scope, fingerprint string, order PlacedOrder, resp Response, now time.Time, ttl time.Duration) error {
	err := s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := s.load(ctx, tx, scope)
		if err != nil {
			return err
		}
		placed, err := complete(existing, found, scope, fingerprint, order, resp, now.UTC(), ttl)
		if err != nil {
			return err
		}
		return s.submissions.SetTx(ctx, tx, scope.documentID(), newSubmissionDocument(placed))
	}, pfirestore.WithTxAttempts(s.maxAttempts))
	if errors.Is(err, ErrFingerprintMismatch) {
		return ErrFingerprintMismatch
	}
	return err
}

func (s *FirestoreStore) Release(ctx context.Context, scope Scope) error {
	ref, err := s.submissions.DocumentRef(ctx, scope.documentID())
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil {
		if wrapped := pfirestore.WrapError("orderSubmissions.release", err); !isNotFound(wrapped) {
			return wrapped
		}
	}
	return nil
}

// CleanupExpired deletes expired submissions in one bulk write, at most limit at a time.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultCleanupSize
	}
	docs, err := s.submissions.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("expiresAt", "<=", now.UTC()).Limit(limit)
	})
	if err != nil || len(docs) == 0 {
		return 0, err
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	writer := client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(docs))
	for _, doc := range docs {
		ref, err := s.submissions.DocumentRef(ctx, doc.ID)
		if err != nil {
			writer.End()
			return 0, err
		}
		job, err := writer.Delete(ref)
		if err != nil {
			writer.End()
			return 0, pfirestore.WrapError("orderSubmissions.cleanup", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	removed := 0
	for _, job := range jobs {
		if _, err := job.Results(); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *FirestoreStore) load(ctx context.Context, tx *firestore.Transaction, scope Scope) (Submission, bool, error) {
	doc, err := s.submissions.GetTx(ctx, tx, scope.documentID())
	if isNotFound(err) {
		return Submission{}, false, nil
	}
	if err != nil {
		return Submission{}, false, err
	}
	return doc.Data.toSubmission(), true, nil
}

func isNotFound(err error) bool {
	var repoErr *pfirestore.Error
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

type submissionDocument struct {
	Store           string              `firestore:"store"`
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	State           string              `firestore:"state"`
	OrderID         string              `firestore:"orderId,omitempty"`
	IncrementID     string              `firestore:"incrementId,omitempty"`
	ResponseStatus  int                 `firestore:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders,omitempty"`
	ResponseBody    []byte              `firestore:"responseBody,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func newSubmissionDocument(s Submission) submissionDocument {
	return submissionDocument{
		Store:           s.Scope.Store,
		Key:             s.Scope.Key,
		Fingerprint:     s.Fingerprint,
		State:           string(s.State),
		OrderID:         s.Order.OrderID,
		IncrementID:     s.Order.IncrementID,
		ResponseStatus:  s.Response.Status,
		ResponseHeaders: s.Response.Headers,
		ResponseBody:    s.Response.Body,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		ExpiresAt:       s.ExpiresAt,
	}
}

func (d submissionDocument) toSubmission() Submission {
	return Submission{
		Scope:       Scope{Store: d.Store, Key: d.Key},
		Fingerprint: d.Fingerprint,
		State:       State(d.State),
		Order:       PlacedOrder{OrderID: d.OrderID, IncrementID: d.IncrementID},
		Response: Response{
			Status:  d.ResponseStatus,
			Headers: d.ResponseHeaders,
			Body:    d.ResponseBody,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}
