package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/resumechat/internal/collection"
)

// ErrNoAgent is returned by Current before the first successful initialization.
var ErrNoAgent = errors.New("agent: not initialized")

// ErrSuperseded is returned by Initialize when the handle it built is older
// than the one already installed. The newer handle stays in place.
var ErrSuperseded = errors.New("agent: build superseded by a newer scope")

// HandleBuilder constructs a Handle for a scope. *Builder satisfies it.
type HandleBuilder interface {
	Build(ctx context.Context, scope collection.Scope) (*Handle, error)
}

// Manager owns the process-wide agent Handle. Initializations are serialized;
// readers load the current handle without locking.
type Manager struct {
	// registry supplies the scope each initialization binds to.
	registry *collection.Registry

	// builder constructs new handles.
	builder HandleBuilder

	// log receives initialization outcomes.
	log *slog.Logger

	// metrics records initialization outcomes.
	metrics *managerMetrics

	// initMu serializes Initialize calls.
	initMu sync.Mutex

	// current is the installed handle, nil until the first success.
	current atomic.Pointer[Handle]
}

// NewManager returns a Manager in the not-ready state.
func NewManager(registry *collection.Registry, builder HandleBuilder, reg prometheus.Registerer, log *slog.Logger) *Manager {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Manager{
		registry: registry,
		builder:  builder,
		log:      log,
		metrics:  newManagerMetrics(reg),
	}
	m.metrics.ready.Set(0)
	return m
}

// Initialize builds a handle for the registry's current scope and installs
// it. On failure the previous handle is left in place. A build whose scope
// is older than the installed handle's is discarded with ErrSuperseded. If
// the installed handle is already bound to the current scope, Initialize
// returns nil without building, so a burst of uploads costs one build per
// distinct scope observed.
func (m *Manager) Initialize(ctx context.Context) error {
	m.initMu.Lock()
	defer m.initMu.Unlock()

	scope := m.registry.Current()
	if cur := m.current.Load(); cur != nil && cur.scope == scope {
		m.metrics.inits.WithLabelValues("current").Inc()
		m.log.Debug("agent already bound to the current scope",
			slog.String("collection", scope.Collection),
			slog.Uint64("scope_version", scope.Version),
		)
		return nil
	}

	start := time.Now()
	h, err := m.builder.Build(ctx, scope)
	if err != nil {
		m.metrics.inits.WithLabelValues("failure").Inc()
		m.log.Error("agent initialization failed, keeping previous agent",
			slog.String("collection", scope.Collection),
			slog.Uint64("scope_version", scope.Version),
			slog.Bool("has_previous", m.current.Load() != nil),
			slog.Any("error", err),
		)
		return fmt.Errorf("agent: initialize %q: %w", scope.Collection, err)
	}

	if cur := m.current.Load(); cur != nil && cur.scope.Newer(h.scope) {
		m.metrics.inits.WithLabelValues("superseded").Inc()
		m.log.Warn("agent build discarded, a newer agent is installed",
			slog.String("collection", scope.Collection),
			slog.Uint64("scope_version", scope.Version),
			slog.Uint64("installed_version", cur.scope.Version),
		)
		return ErrSuperseded
	}

	// The registry may have moved on while building. The handle is still
	// installed because it is newer than whatever is live; the initialization
	// queued by that newer upload will replace it.
	m.current.Store(h)
	m.metrics.inits.WithLabelValues("success").Inc()
	m.metrics.lastSuccess.SetToCurrentTime()
	m.metrics.ready.Set(1)
	m.log.Info("agent initialized",
		slog.String("collection", scope.Collection),
		slog.Uint64("scope_version", scope.Version),
		slog.Any("tools", h.tools),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Current returns the installed handle, or ErrNoAgent before the first
// successful initialization.
func (m *Manager) Current() (*Handle, error) {
	h := m.current.Load()
	if h == nil {
		return nil, ErrNoAgent
	}
	return h, nil
}

// Ready reports whether a handle is installed.
func (m *Manager) Ready() bool { return m.current.Load() != nil }

// Name identifies the manager in readiness output.
func (m *Manager) Name() string { return "agent" }

// Ping reports ErrNoAgent until a handle is installed.
func (m *Manager) Ping(context.Context) error {
	if !m.Ready() {
		return ErrNoAgent
	}
	return nil
}

// Reinitialize runs Initialize on a context detached from parent's
// cancellation and bounded by timeout. It is the entry point for
// asynchronous re-initialization after an upload.
func (m *Manager) Reinitialize(parent context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()
	return m.Initialize(ctx)
}
