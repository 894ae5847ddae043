package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/easyorder/quickorder/internal/platform/httpx"
	"github.com/easyorder/quickorder/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"

	// formKeyField is a single use token, so a resubmission may carry a fresh one.
	formKeyField = "form_key"
)

// Logger abstracts the logging dependency used inside the middleware.
type Logger interface {
	Printf(format string, args ...any)
}

type clockFunc func() time.Time

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	pendingTTL time.Duration
	methods    map[string]struct{}
	requireKey bool
	clock      clockFunc
	logger     Logger
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header name used to extract the idempotency key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		name = strings.TrimSpace(name)
		if name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL configures how long a placed order can be replayed.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithPendingTTL configures the lease held by a submission whose order is still being placed.
// Once it lapses another request with the same key takes over.
func WithPendingTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.pendingTTL = ttl
		}
	}
}

// WithMethods restricts the HTTP methods guarded by the middleware.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if len(methods) == 0 {
			return
		}
		cfg.methods = make(map[string]struct{}, len(methods))
		for _, method := range methods {
			method = strings.ToUpper(strings.TrimSpace(method))
			if method == "" {
				continue
			}
			cfg.methods[method] = struct{}{}
		}
	}
}

// WithRequiredKey rejects guarded requests that carry no key.
func WithRequiredKey() MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.requireKey = true
	}
}

func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock clockFunc) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware replays the placed order of a submission repeated with the same key in the same
// store. Requests without the key header pass through untouched unless WithRequiredKey is set.
// Only a response whose envelope reports success is kept; any other outcome releases the key so
// the shopper can submit again.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		pendingTTL: DefaultPendingTTL,
		methods:    map[string]struct{}{http.MethodPost: {}},
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(cfg.methods) == 0 {
		cfg.methods = map[string]struct{}{http.MethodPost: {}}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := cfg.methods[r.Method]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				if cfg.requireKey {
					respondError(ctx, w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			body, err := readAndReplayBody(r)
			if err != nil {
				respondError(ctx, w, http.StatusBadRequest, "idempotency_read_body_failed", "unable to read request body")
				return
			}

			scope := NewScope(requestctx.Store(ctx), key)
			fingerprint := submissionFingerprint(r, body)

			reservation, err := store.Reserve(ctx, scope, fingerprint, cfg.clock().UTC(), cfg.pendingTTL)
			if err != nil {
				handleStoreError(ctx, w, cfg.logger, err)
				return
			}

			switch reservation.Outcome {
			case OutcomeReplay:
				placed := reservation.Submission
				logf(cfg.logger, "idempotency: replaying order %s (%s) for store %s", placed.Order.IncrementID, placed.Order.OrderID, scope.Store)
				writeReplay(w, placed.Response)
				return
			case OutcomeInFlight:
				respondError(ctx, w, http.StatusConflict, "idempotency_in_progress", "this order is still being placed")
				return
			case OutcomeNew:
			default:
				respondError(ctx, w, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
				return
			}

			recorder := newResponseRecorder(w)
			next.ServeHTTP(recorder, r)

			response := Response{
				Status:  recorder.Status(),
				Headers: recorder.HeaderSnapshot(),
				Body:    recorder.Body(),
			}

			if order, ok := placedOrder(response); !ok {
				release(ctx, store, cfg.logger, scope)
			} else if err := store.Complete(ctx, scope, fingerprint, order, response, cfg.clock().UTC(), cfg.ttl); err != nil {
				logf(cfg.logger, "idempotency: failed to record order %s for store %s: %v", order.IncrementID, scope.Store, err)
				release(ctx, store, cfg.logger, scope)
			}

			if err := recorder.Commit(); err != nil {
				logf(cfg.logger, "idempotency: failed to flush response for store %s: %v", scope.Store, err)
			}
		})
	}
}

// placedOrder extracts the order reference from a successful order envelope.
func placedOrder(resp Response) (PlacedOrder, bool) {
	if resp.Status < http.StatusOK || resp.Status >= http.StatusMultipleChoices {
		return PlacedOrder{}, false
	}
	var envelope struct {
		Success     bool   `json:"success"`
		OrderID     string `json:"order_id"`
		IncrementID string `json:"increment_id"`
	}
	if err := json.Unmarshal(resp.Body, &envelope); err != nil || !envelope.Success {
		return PlacedOrder{}, false
	}
	return PlacedOrder{OrderID: envelope.OrderID, IncrementID: envelope.IncrementID}, true
}

func release(ctx context.Context, store Store, logger Logger, scope Scope) {
	if err := store.Release(ctx, scope); err != nil {
		logf(logger, "idempotency: failed to release key for store %s: %v", scope.Store, err)
	}
}

func logf(logger Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// submissionFingerprint identifies what is being ordered. The store is part of the scope so
// it is not repeated here.
func submissionFingerprint(r *http.Request, body []byte) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		hashBody(canonicalBody(r.Header.Get("Content-Type"), body)),
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

// canonicalBody drops the form key and normalises field order for form and JSON bodies.
// Bodies that do not parse are fingerprinted as sent.
func canonicalBody(contentType string, body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return body
		}
		values.Del(formKeyField)
		return []byte(values.Encode())
	case "application/json":
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.UseNumber()
		var fields map[string]any
		if err := decoder.Decode(&fields); err != nil {
			return body
		}
		delete(fields, formKeyField)
		canonical, err := json.Marshal(fields)
		if err != nil {
			return body
		}
		return canonical
	default:
		return body
	}
}

func hashBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return sha256Hex(body)
}

func handleStoreError(ctx context.Context, w http.ResponseWriter, logger Logger, err error) {
	if errors.Is(err, ErrFingerprintMismatch) {
		respondError(ctx, w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different order")
		return
	}
	logf(logger, "idempotency: store error: %v", err)
	respondError(ctx, w, http.StatusServiceUnavailable, "idempotency_store_error", "unable to process idempotency key")
}

func writeReplay(w http.ResponseWriter, resp Response) {
	for key := range w.Header() {
		w.Header().Del(key)
	}
	for key, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, message, status))
}

// responseRecorder buffers the order response so it can be inspected before it is sent.
type responseRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder(parent http.ResponseWriter) *responseRecorder {
	return &responseRecorder{
		parent: parent,
		header: make(http.Header),
	}
}

func (r *responseRecorder) Header() http.Header {
	return r.header
}

func (r *responseRecorder) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	r.status = status
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(data)
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Body() []byte {
	if r.body.Len() == 0 {
		return nil
	}
	return r.body.Bytes()
}

func (r *responseRecorder) HeaderSnapshot() http.Header {
	return r.header.Clone()
}

func (r *responseRecorder) Commit() error {
	dst := r.parent.Header()
	for key := range dst {
		dst.Del(key)
	}
	for key, values := range r.header {
		for _, value := range values {
			dst.Add(key, value)
		}
	}
	r.parent.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body.Bytes())
	return err
}
