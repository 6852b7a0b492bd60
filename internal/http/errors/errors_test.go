package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError_AppError(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteError(rec, ErrInvalidCode.WithDetail("code must be 6 digits"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "Invalid code" || body["code"] != "INVALID_CODE" || body["detail"] != "code must be 6 digits" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestWriteError_UnknownErrorIsOpaque(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("redis: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["detail"] != "" || body["code"] != "INTERNAL_SERVER_ERROR" {
		t.Fatalf("internal detail leaked: %v", body)
	}
}

func TestWithDetailDoesNotMutateCatalogue(t *testing.T) {
	t.Parallel()
	_ = ErrBadRequest.WithDetail("x")
	if ErrBadRequest.Detail != "" {
		t.Fatalf("catalogue entry mutated")
	}
}

func TestFromErrorUnwrapsWrapped(t *testing.T) {
	t.Parallel()
	wrapped := fmt.Errorf("ctx: %w", ErrRateLimitExceeded)
	if got := FromError(wrapped); got.Code != "RATE_LIMIT_EXCEEDED" {
		t.Fatalf("got %s", got.Code)
	}
}
