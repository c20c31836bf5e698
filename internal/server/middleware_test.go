package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/54b3r/resumechat/internal/logging"
)

func TestRequestLogger_AssignsAndEchoesID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxLogged bool
	h := requestLogger(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside")
		ctxLogged = true
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	id := w.Header().Get(requestIDHeader)
	if len(id) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", id)
	}
	if !ctxLogged {
		t.Fatal("handler not called")
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, l := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(l), &rec); err != nil {
			t.Fatalf("log line not JSON: %v", err)
		}
		if rec["request_id"] != id {
			t.Errorf("log line missing request id: %s", l)
		}
	}
	var final map[string]any
	_ = json.Unmarshal([]byte(lines[1]), &final)
	if final["status"] != float64(http.StatusTeapot) || final["bytes"] != float64(len("short and stout")) {
		t.Errorf("unexpected completion record: %v", final)
	}
}

func TestRequestLogger_ReusesClientID(t *testing.T) {
	t.Parallel()

	h := requestLogger(quietLog, okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "trace-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "trace-123" {
		t.Errorf("want client id echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); len(got) > maxRequestIDLen {
		t.Errorf("oversized client id should be replaced, got %q", got)
	}
}
