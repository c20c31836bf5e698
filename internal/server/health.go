package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/resumechat/internal/logging"
)

// probeTimeout bounds each dependency probe of a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency that can report its own reachability.
// Implementations must be safe to call from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is usable.
	Ping(ctx context.Context) error

	// Name returns a short label used in readiness responses
	// (e.g. "redis", "search_tool").
	Name() string
}

// readyCheck holds the per-dependency result of a readiness probe.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every probe succeeded.
	Ready bool `json:"ready"`
	// Checks are in registration order.
	Checks []readyCheck `json:"checks"`
}

// handleReady handles GET /api/ready. All probes run concurrently, each
// under probeTimeout, so one slow dependency does not delay the others.
// Responds 200 when every probe passes and 503 otherwise. The "agent" probe
// fails until the first agent is built, which keeps the service out of
// rotation while /chat would still answer 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	checks := make([]readyCheck, len(s.pingers))
	var wg sync.WaitGroup
	for i, p := range s.pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(ctx)
			checks[i] = readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				checks[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness probe failed", slog.String("dependency", c.Name), slog.String("error", c.Error))
		}
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
