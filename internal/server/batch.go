package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/54b3r/resumechat/internal/logging"
	"github.com/54b3r/resumechat/internal/queue"
	"github.com/54b3r/resumechat/internal/store"
)

// handleBatch handles GET /batches/{id}. It merges the ledger record with
// the ingestion result from the result backend. A batch neither source
// knows is 404.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	resp := batchResponse{BatchID: id, Status: "unknown"}
	known := false

	if s.deps.Ledger != nil {
		b, err := s.deps.Ledger.Get(r.Context(), id)
		switch {
		case err == nil:
			known = true
			resp.JobID = b.JobID
			resp.FilePaths = b.FilePaths
			resp.Files = len(b.FilePaths)
			created := b.CreatedAt
			resp.CreatedAt = &created
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("batch: ledger lookup failed", slog.String("batch_id", id), slog.Any("error", err))
		}
	}

	res, err := s.deps.Results.BatchResult(r.Context(), id)
	switch {
	case err == nil:
		known = true
		resp.JobID = res.JobID
		resp.Status = string(res.Status)
		resp.Summary = res.Summary
		resp.Error = res.Error
		if res.Status != queue.StatusPending {
			resp.Files = res.Files
			resp.Chunks = res.Chunks
			finished := res.FinishedAt
			resp.FinishedAt = &finished
		}
	case errors.Is(err, queue.ErrUnknownBatch):
	default:
		log.Warn("batch: result lookup failed", slog.String("batch_id", id), slog.Any("error", err))
	}

	if !known {
		writeError(w, r, http.StatusNotFound, "unknown batch")
		return
	}
	if s.deps.Registry != nil {
		resp.Active = s.deps.Registry.Current().Collection == id
	}
	writeJSON(w, r, http.StatusOK, resp)
}
