package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewStandardClient(t *testing.T) {
	c := NewStandardClient(3 * time.Second)
	if c.Timeout != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", c.Timeout)
	}
	var _ HTTPClient = c
}

func TestMockHTTPClient_Queue(t *testing.T) {
	mock := NewMockHTTPClient(
		MockResponse{StatusCode: http.StatusCreated, Body: `{"id": 1}`},
		MockResponse{Error: errors.New("connection refused")},
	)

	req, _ := http.NewRequest(http.MethodPost, "http://detector/v1/detect", strings.NewReader("jpeg"))
	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated || string(body) != `{"id": 1}` {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
	if string(mock.Body(0)) != "jpeg" {
		t.Errorf("recorded body = %q", mock.Body(0))
	}

	req, _ = http.NewRequest(http.MethodGet, "http://detector/health", nil)
	if _, err := mock.Do(req); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Errorf("expected queued error, got %v", err)
	}

	// Drained queue answers 200.
	resp, err = mock.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("default response = %v, %v", resp, err)
	}
	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", mock.RequestCount())
	}
	if mock.Request(1).URL.Path != "/health" {
		t.Errorf("Request(1) = %v", mock.Request(1).URL)
	}
	if mock.Request(5) != nil || mock.Body(-1) != nil {
		t.Error("out of range lookups should return nil")
	}
}

func TestMockHTTPClient_CancelledContext(t *testing.T) {
	mock := NewMockHTTPClient(MockResponse{StatusCode: http.StatusOK})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://detector/", nil)
	if _, err := mock.Do(req); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDecodeJSONResponse(t *testing.T) {
	mk := func(code int, body string) *http.Response {
		return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body))}
	}

	var v struct{ Count int }
	if err := DecodeJSONResponse(mk(200, `{"count": 4}`), &v, 1024); err != nil || v.Count != 4 {
		t.Errorf("got %+v, %v", v, err)
	}

	err := DecodeJSONResponse(mk(503, "model loading\n"), &v, 1024)
	if err == nil || !strings.Contains(err.Error(), "503: model loading") {
		t.Errorf("err = %v", err)
	}
	if err := DecodeJSONResponse(mk(200, `{"count":`), &v, 1024); err == nil {
		t.Error("expected decode error")
	}
	if err := DecodeJSONResponse(mk(200, `{"count": 12345}`), &v, 5); err == nil {
		t.Error("expected error for truncated body")
	}
}
