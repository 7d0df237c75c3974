package httputil

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestReadLimitedBody_AllowsWithinLimit(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader("hello"), 10)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("unexpected body: %s", string(body))
	}
}

func TestReadLimitedBody_RejectsOversize(t *testing.T) {
	body, err := ReadLimitedBody(strings.NewReader("helloworld"), 5)
	if !errors.Is(err, ErrResponseBodyTooLarge) {
		t.Fatalf("expected ErrResponseBodyTooLarge, got %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("unexpected body: %s", string(body))
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		ID int64 `json:"id"`
	}

	t.Run("decodes", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id": 42}`))
		var p payload
		if err := DecodeJSONBody(req, &p, 1024, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.ID != 42 {
			t.Fatalf("ID = %d, want 42", p.ID)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id":`))
		var p payload
		if err := DecodeJSONBody(req, &p, 1024, false); err == nil {
			t.Fatal("expected error for truncated JSON")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(""))
		var p payload
		if err := DecodeJSONBody(req, &p, 1024, false); !errors.Is(err, ErrEmptyBody) {
			t.Fatalf("expected ErrEmptyBody, got %v", err)
		}
		if err := DecodeJSONBody(req, &p, 1024, true); err != nil {
			t.Fatalf("allowEmpty should accept an empty body, got %v", err)
		}
	})

	t.Run("oversize", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"id": 1234567890}`))
		var p payload
		if err := DecodeJSONBody(req, &p, 4, false); !errors.Is(err, ErrResponseBodyTooLarge) {
			t.Fatalf("expected ErrResponseBodyTooLarge, got %v", err)
		}
	})
}
