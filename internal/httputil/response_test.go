package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSONError(w, http.StatusNotFound, "violation not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["error"] != "violation not found" {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, []int{1, 2})
	if w.Body.String() != "[1,2]\n" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestAllowMethods(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{http.MethodGet, true},
		{http.MethodHead, true},
		{http.MethodPost, false},
		{http.MethodDelete, false},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(tt.method, "/evidence/x", nil)
			if got := AllowMethods(w, r, http.MethodGet, http.MethodHead); got != tt.want {
				t.Fatalf("AllowMethods() = %v, want %v", got, tt.want)
			}
			if tt.want {
				return
			}
			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d", w.Code)
			}
			if allow := w.Header().Get("Allow"); allow != "GET, HEAD" {
				t.Errorf("Allow = %q", allow)
			}
		})
	}
}

func TestSetAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	SetAttachment(w, "violations_day.csv", "text/csv; charset=utf-8")
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=violations_day.csv" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}
