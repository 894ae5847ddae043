package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rr := httptest.NewRecorder()

	WriteError(ctx, rr, NewError("invalid_request", "Invalid request payload.\n", http.StatusBadRequest).
		WithDetails(map[string]any{"field": "product_id"}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["success"] != false {
		t.Fatalf("expected success false, got %#v", body["success"])
	}
	if body["message"] != "Invalid request payload." {
		t.Fatalf("unexpected message %#v", body["message"])
	}
	if body["request_id"] != "req-1" {
		t.Fatalf("expected request id, got %#v", body["request_id"])
	}
	if body["field"] != "product_id" {
		t.Fatalf("expected details merged, got %#v", body)
	}
}

func TestRejectUsesStatusOK(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, Reject("disabled", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != MessageUnexpected {
		t.Fatalf("expected fallback message, got %#v", body["message"])
	}
}
