package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/store"
)

func getBatch(t *testing.T, env *testEnv, id string) (*httptest.ResponseRecorder, batchResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/batches/"+id, nil)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)
	var resp batchResponse
	if w.Code == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return w, resp
}

func TestHandleBatch_Unknown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	w, _ := getBatch(t, env, "nope")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHandleBatch_PendingActive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	env.ledger.batches["b1"] = store.Batch{ID: "b1", JobID: "j1", FilePaths: []string{"/tmp/a.pdf"}, CreatedAt: created}
	env.results.results["b1"] = queue.Result{JobID: "j1", BatchID: "b1", Status: queue.StatusPending}
	env.registry.Set("b1")

	w, resp := getBatch(t, env, "b1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Status != "pending" || !resp.Active || resp.JobID != "j1" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Files != 1 || resp.CreatedAt == nil || !resp.CreatedAt.Equal(created) {
		t.Errorf("ledger fields not merged: %+v", resp)
	}
	if resp.FinishedAt != nil {
		t.Error("pending batch must not report finished_at")
	}
}

func TestHandleBatch_FinishedInactive(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.results.results["b1"] = queue.Result{
		JobID: "j1", BatchID: "b1", Status: queue.StatusSuccess,
		Summary: "Ingested 12 chunks from 2 PDFs", Files: 2, Chunks: 12, FinishedAt: time.Now(),
	}
	env.registry.Set("b2")

	w, resp := getBatch(t, env, "b1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Active {
		t.Error("superseded batch must not be active")
	}
	if resp.Status != "success" || resp.Chunks != 12 || resp.Summary == "" || resp.FinishedAt == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

// TestHandleBatch_ResultBackendDown verifies a ledger hit is still served
// with status unknown when the result backend errors.
func TestHandleBatch_ResultBackendDown(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.ledger.batches["b1"] = store.Batch{ID: "b1", JobID: "j1", CreatedAt: time.Now()}
	env.results.err = errors.New("redis: connection refused")

	w, resp := getBatch(t, env, "b1")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Status != "unknown" || resp.JobID != "j1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
