package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// postChat sends body to POST /chat through the full handler tree.
func postChat(t *testing.T, env *testEnv, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	return w
}

// ndjsonLines decodes every line of an NDJSON body into a generic map.
func ndjsonLines(t *testing.T, body string) []map[string]string {
	t.Helper()
	var out []map[string]string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m map[string]string
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %q is not JSON: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestHandleChat_InvalidJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	w := postChat(t, env, "not-json")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChat_MissingMessage(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	w := postChat(t, env, `{"message":"   "}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleChat_NoAgent verifies that chat before the first successful
// agent build is rejected with 503 and a JSON error body.
func TestHandleChat_NoAgent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	w := postChat(t, env, `{"message":"who knows Go?"}`)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	var body errorBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" {
		t.Error("expected non-empty error")
	}
	if got := testutil.ToFloat64(env.srv.metrics.chatRequestsTotal.WithLabelValues("unavailable")); got != 1 {
		t.Errorf("unavailable counter: want 1, got %v", got)
	}
}

// TestHandleChat_Streams verifies each fragment arrives as its own NDJSON
// line, in order.
func TestHandleChat_Streams(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.chatter = &fakeChatter{collection: "batch-1", deltas: []string{"Alice ", "knows ", "Go."}}

	w := postChat(t, env, `{"message":"who knows Go?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("Content-Type: want application/x-ndjson, got %q", ct)
	}
	lines := ndjsonLines(t, w.Body.String())
	want := []string{"Alice ", "knows ", "Go."}
	if len(lines) != len(want) {
		t.Fatalf("want %d lines, got %d: %v", len(want), len(lines), lines)
	}
	for i, l := range lines {
		if l["chunk"] != want[i] {
			t.Errorf("line %d: want %q, got %q", i, want[i], l["chunk"])
		}
	}
	if env.chatter.seen != "who knows Go?" {
		t.Errorf("agent saw %q", env.chatter.seen)
	}
	if got := testutil.ToFloat64(env.srv.metrics.chatRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok counter: want 1, got %v", got)
	}
	if got := testutil.ToFloat64(env.srv.metrics.chatActiveStreams); got != 0 {
		t.Errorf("active streams after completion: want 0, got %v", got)
	}
}

func TestHandleChat_NonStreaming(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.chatter = &fakeChatter{collection: "batch-1", deltas: []string{"Alice ", "knows ", "Go."}}

	w := postChat(t, env, `{"message":"who knows Go?","stream":false}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	lines := ndjsonLines(t, w.Body.String())
	if len(lines) != 1 || lines[0]["chunk"] != "Alice knows Go." {
		t.Errorf("want single aggregated chunk, got %v", lines)
	}
}

// TestHandleChat_FailsBeforeFirstChunk verifies an agent failure with no
// output yet is reported as 502 with a single error line.
func TestHandleChat_FailsBeforeFirstChunk(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.chatter = &fakeChatter{collection: "batch-1", err: errors.New("model unavailable")}

	w := postChat(t, env, `{"message":"who knows Go?"}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	lines := ndjsonLines(t, w.Body.String())
	if len(lines) != 1 || !strings.Contains(lines[0]["error"], "model unavailable") {
		t.Errorf("want one error line, got %v", lines)
	}
	if got := testutil.ToFloat64(env.srv.metrics.chatRequestsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("error counter: want 1, got %v", got)
	}
}

// TestHandleChat_FailsMidStream verifies a failure after output has started
// keeps the 200 status and ends the stream with an error line.
func TestHandleChat_FailsMidStream(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.chatter = &fakeChatter{collection: "batch-1", deltas: []string{"Alice"}, err: errors.New("tool failed")}

	w := postChat(t, env, `{"message":"who knows Go?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	lines := ndjsonLines(t, w.Body.String())
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %v", lines)
	}
	if lines[0]["chunk"] != "Alice" {
		t.Errorf("first line: want chunk Alice, got %v", lines[0])
	}
	if lines[1]["error"] == "" {
		t.Errorf("last line: want error, got %v", lines[1])
	}
}

func TestHandleChat_EmptyAnswer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.chatter = &fakeChatter{collection: "batch-1"}

	w := postChat(t, env, `{"message":"anything?"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("expected empty body, got %q", w.Body.String())
	}
}

// TestHandleChat_OutlivesServerWriteTimeout runs a real listener whose
// WriteTimeout is shorter than the agent's answer.
func TestHandleChat_OutlivesServerWriteTimeout(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(c *Config) { c.ChatTimeout = 10 * time.Second })
	env.chatter = &fakeChatter{collection: "batch-1", deltas: []string{"slow ", "answer"}, delay: 150 * time.Millisecond}

	ts := httptest.NewUnstartedServer(env.srv.Handler())
	ts.Config.WriteTimeout = 100 * time.Millisecond
	ts.Start()
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"message":"hello"}`))
	if err != nil {
		t.Fatalf("POST /chat: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	lines := ndjsonLines(t, string(body))
	if len(lines) != 2 || lines[1]["chunk"] != "answer" {
		t.Errorf("unexpected stream: %q", body)
	}
}

func TestHandleChat_RequiresAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(c *Config) { c.APIKey = "secret" })
	env.chatter = &fakeChatter{collection: "batch-1", deltas: []string{"hi"}}

	w := postChat(t, env, `{"message":"hello"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`))
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

// TestCORS_Preflight verifies allowed browser origins get CORS headers and
// unknown origins do not.
func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"http://localhost:3000", true},
		{"http://frontend:3000", true},
		{"http://evil.example", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
		req.Header.Set("Origin", tc.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		env.srv.Handler().ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin")
		if tc.allowed && got != tc.origin {
			t.Errorf("origin %s: want allow-origin %q, got %q", tc.origin, tc.origin, got)
		}
		if !tc.allowed && got != "" {
			t.Errorf("origin %s: want no allow-origin, got %q", tc.origin, got)
		}
	}
}
