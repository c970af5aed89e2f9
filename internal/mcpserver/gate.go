package mcpserver

import (
	"context"
	"time"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
	"github.com/haasonsaas/deskmcp/internal/observability"
)

// gate serialises workflow execution behind a bounded semaphore, the
// enforcement point spec §5 names for "serialised through the MCP request
// gate with a configurable max-concurrent, default 1". Status() backs the
// /status endpoint.
type gate struct {
	slots       chan struct{}
	waitTimeout time.Duration
	metrics     *observability.Metrics

	max  int
	last time.Time
}

func newGate(maxActive int, waitTimeout time.Duration, metrics *observability.Metrics) *gate {
	if maxActive < 1 {
		maxActive = 1
	}
	return &gate{
		slots:       make(chan struct{}, maxActive),
		waitTimeout: waitTimeout,
		metrics:     metrics,
		max:         maxActive,
	}
}

// acquire blocks until a slot is free or waitTimeout elapses, returning a
// release function to call once the caller's work completes.
func (g *gate) acquire(ctx context.Context) (func(), error) {
	start := time.Now()
	waitCtx := ctx
	var cancel context.CancelFunc
	if g.waitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, g.waitTimeout)
		defer cancel()
	}

	select {
	case g.slots <- struct{}{}:
		if g.metrics != nil {
			g.metrics.RecordConcurrencyGateWait(time.Since(start).Seconds())
			g.metrics.OperationStarted()
		}
		g.last = time.Now()
		return func() {
			<-g.slots
			if g.metrics != nil {
				g.metrics.OperationEnded()
			}
		}, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, deskerr.Wrap(deskerr.KindCancelled, ctx.Err(), "request cancelled waiting for the concurrency gate")
		}
		return nil, deskerr.New(deskerr.KindTimeout, "timed out waiting for a free concurrency slot (max_active=%d)", g.max)
	}
}

// status reports the fields spec §6's /status endpoint returns.
type gateStatus struct {
	Busy           bool      `json:"busy"`
	ActiveRequests int       `json:"activeRequests"`
	MaxConcurrent  int       `json:"maxConcurrent"`
	LastActivity   time.Time `json:"lastActivity"`
}

func (g *gate) status() gateStatus {
	active := len(g.slots)
	return gateStatus{
		Busy:           active >= g.max,
		ActiveRequests: active,
		MaxConcurrent:  g.max,
		LastActivity:   g.last,
	}
}
