package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/54b3r/resumechat/internal/logging"
)

// chatWriteGrace is added to ChatTimeout so the terminal error line of a
// timed-out stream can still be written.
const chatWriteGrace = 30 * time.Second

// handleChat handles POST /chat. The agent's answer is streamed as NDJSON,
// one {"chunk": ...} line per fragment. The agent handle is captured once,
// so an agent swap during the stream does not affect this request.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}

	h, err := s.deps.Agents()
	if err != nil {
		s.observeChat("unavailable", start)
		log.Warn("chat rejected: agent not ready", slog.Any("error", err))
		writeError(w, r, http.StatusServiceUnavailable, "agent not initialized")
		return
	}

	ctx := r.Context()
	if s.cfg.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ChatTimeout)
		defer cancel()
	}

	// A stream may outlive the server-wide WriteTimeout; ChatTimeout bounds it.
	if err := http.NewResponseController(w).SetWriteDeadline(s.chatWriteDeadline()); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Warn("chat: could not extend write deadline", slog.Any("error", err))
	}

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()

	nw := newNDJSONWriter(w)
	stream := req.Stream == nil || *req.Stream

	if stream {
		err = h.Stream(ctx, req.Message, nw.Chunk)
	} else {
		var sb strings.Builder
		err = h.Stream(ctx, req.Message, func(delta string) error {
			sb.WriteString(delta)
			return nil
		})
		if err == nil {
			err = nw.Chunk(sb.String())
		}
	}

	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			outcome = "timeout"
		case r.Context().Err() != nil:
			outcome = "canceled"
		}
		s.observeChat(outcome, start)
		log.Error("chat failed",
			slog.String("collection", h.Collection()),
			slog.String("outcome", outcome),
			slog.Bool("streaming_started", nw.Started()),
			slog.Any("error", err),
		)
		if outcome != "canceled" {
			nw.Fail(err.Error())
		}
		return
	}

	if !nw.Started() {
		// An empty answer still commits a well-formed NDJSON response.
		nw.Begin(http.StatusOK)
	}
	s.observeChat("ok", start)
	log.Info("chat completed",
		slog.String("collection", h.Collection()),
		slog.Int("chunks", nw.Lines()),
		slog.Duration("duration", time.Since(start)),
	)
}

// chatWriteDeadline is the write deadline of one /chat response. The zero
// time means no deadline.
func (s *Server) chatWriteDeadline() time.Time {
	if s.cfg.ChatTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.ChatTimeout + chatWriteGrace)
}

func (s *Server) observeChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// ndjsonWriter writes newline-delimited JSON objects and flushes after each.
// The status line is committed lazily so a failure before the first chunk
// can still be reported with an error status.
type ndjsonWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	enc     *json.Encoder
	started bool
	lines   int
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	return &ndjsonWriter{w: w, rc: http.NewResponseController(w), enc: json.NewEncoder(w)}
}

// Begin commits the response headers with status.
func (n *ndjsonWriter) Begin(status int) {
	if n.started {
		return
	}
	n.w.Header().Set("Content-Type", "application/x-ndjson")
	n.w.Header().Set("Cache-Control", "no-cache")
	n.w.Header().Set("X-Accel-Buffering", "no")
	n.w.WriteHeader(status)
	n.started = true
}

// Started reports whether the headers have been committed.
func (n *ndjsonWriter) Started() bool { return n.started }

// Lines returns the number of chunk lines written.
func (n *ndjsonWriter) Lines() int { return n.lines }

// Chunk writes one {"chunk": delta} line and flushes it.
func (n *ndjsonWriter) Chunk(delta string) error {
	n.Begin(http.StatusOK)
	if err := n.enc.Encode(chatChunk{Chunk: delta}); err != nil {
		return err
	}
	n.lines++
	return n.flush()
}

// Fail writes the terminal {"error": msg} line. Before any chunk the
// response is committed as 502 Bad Gateway.
func (n *ndjsonWriter) Fail(msg string) {
	n.Begin(http.StatusBadGateway)
	_ = n.enc.Encode(errorBody{Error: msg})
	_ = n.flush()
}

func (n *ndjsonWriter) flush() error {
	if err := n.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	return nil
}
