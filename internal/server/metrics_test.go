package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("want 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_ChatCounterIncremented(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.srv.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()

	mfs, err := env.reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "resumechat_chat_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
					if m.GetCounter().GetValue() != 1 {
						t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
					}
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("resumechat_chat_requests_total{outcome=\"ok\"} not found in gathered metrics")
	}
}

func Test_Metrics_ActiveStreamsGauge(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	env.srv.metrics.chatActiveStreams.Inc()
	env.srv.metrics.chatActiveStreams.Inc()

	if v := testutil.ToFloat64(env.srv.metrics.chatActiveStreams); v != 2 {
		t.Errorf("want active_streams=2, got %v", v)
	}
}

// Test_Metrics_InstrumentUsesHandlerName verifies requests are labelled by
// logical handler, not by raw path.
func Test_Metrics_InstrumentUsesHandlerName(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil)

	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodGet, "/batches/"+id, nil)
		env.srv.Handler().ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(env.srv.metrics.httpRequestsTotal.WithLabelValues(http.MethodGet, "batch", "404"))
	if got != 3 {
		t.Errorf("want 3 batch 404s, got %v", got)
	}
}
