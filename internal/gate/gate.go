package gate

import (
	"context"
	"time"

	"go.uber.org/atomic"

	"studyplan.app/cloud/internal/logger"
	"studyplan.app/cloud/models"
)

// Result is one observation of a user's entitlement.
type Result struct {
	Status    models.Status
	IsActive  bool
	CheckedAt time.Time
}

// FetchFunc asks the reconciliation reader for the current entitlement.
type FetchFunc func(ctx context.Context) (Result, error)

// Poller refreshes an entitlement observation on a timer and caches the
// latest result. The access gate reads the cache between refreshes instead
// of hitting the reader on every page load. A failed refresh keeps the
// previous observation.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	current  atomic.Pointer[Result]
	failures atomic.Int64
}

func NewPoller(fetch FetchFunc, interval time.Duration) *Poller {
	return &Poller{
		fetch:    fetch,
		interval: interval,
	}
}

// Run polls until the context is canceled. The first refresh happens
// immediately so callers don't wait a full interval for an observation.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	result, err := p.fetch(ctx)
	if err != nil {
		p.failures.Inc()
		logger.Warn("Entitlement refresh failed", map[string]interface{}{
			"error":    err.Error(),
			"failures": p.failures.Load(),
		})
		return
	}

	p.failures.Store(0)
	p.current.Store(&result)
}

// Current returns the latest observation, or false if no refresh has
// succeeded yet.
func (p *Poller) Current() (Result, bool) {
	result := p.current.Load()
	if result == nil {
		return Result{}, false
	}
	return *result, true
}

// Failures reports consecutive failed refreshes since the last success.
func (p *Poller) Failures() int64 {
	return p.failures.Load()
}
