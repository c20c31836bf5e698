package server

import (
	"context"
	"fmt"
)

// PingFunc adapts a plain probe function into a named Pinger, so components
// like the queue client or vector store can be probed without importing
// this package.
type PingFunc struct {
	// Label is the dependency name reported by /api/ready.
	Label string
	// Probe checks reachability.
	Probe func(ctx context.Context) error
}

// Name returns the dependency label used in readiness responses.
func (p PingFunc) Name() string { return p.Label }

// Ping runs the probe.
func (p PingFunc) Ping(ctx context.Context) error {
	if p.Probe == nil {
		return fmt.Errorf("no probe configured")
	}
	return p.Probe(ctx)
}

// Probe is anything with a context-aware Ping method, such as the queue
// client, the search tool connector, or the agent manager.
type Probe interface {
	Ping(ctx context.Context) error
}

// NamedPinger returns a Pinger labelled name that delegates to p.
func NamedPinger(name string, p Probe) Pinger {
	return PingFunc{Label: name, Probe: p.Ping}
}
