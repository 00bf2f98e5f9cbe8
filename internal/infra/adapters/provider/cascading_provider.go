// File: internal/infra/adapters/provider/cascading_provider.go
package provider

import (
	"context"
	"math/rand"
	"time"

	"github.com/imagerestore/controlplane/internal/domain/ports/adapter"
	"github.com/imagerestore/controlplane/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.RestorationProvider = (*CascadingProvider)(nil)

// CascadingProvider tries backends in order, retrying each with jittered
// backoff before falling through to the next (spec.md §4.7: "3 attempts,
// exponential backoff with 30% jitter", provider-local).
type CascadingProvider struct {
	backends []adapter.RestorationProvider
	attempts int
	base     time.Duration
	jitter   float64
	logger   *zerolog.Logger
}

func NewCascadingProvider(logger *zerolog.Logger, backends ...adapter.RestorationProvider) *CascadingProvider {
	return &CascadingProvider{backends: backends, attempts: 3, base: 500 * time.Millisecond, jitter: 0.3, logger: logger}
}

func (p *CascadingProvider) Name() string {
	if len(p.backends) == 0 {
		return "none"
	}
	return p.backends[0].Name()
}

func (p *CascadingProvider) Restore(ctx context.Context, prompt string, image []byte) (adapter.RestoreResult, error) {
	var lastErr error
	for _, backend := range p.backends {
		result, err := p.restoreWithRetry(ctx, backend, prompt, image)
		if err == nil {
			metrics.IncProviderCall(backend.Name(), "success")
			return result, nil
		}
		lastErr = err
		metrics.IncProviderCall(backend.Name(), "exhausted")
		p.logger.Warn().Err(err).Str("provider", backend.Name()).Msg("provider exhausted, falling through")
	}
	return adapter.RestoreResult{}, lastErr
}

func (p *CascadingProvider) restoreWithRetry(ctx context.Context, backend adapter.RestorationProvider, prompt string, image []byte) (adapter.RestoreResult, error) {
	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		start := time.Now()
		result, err := backend.Restore(ctx, prompt, image)
		metrics.ObserveProviderLatency(backend.Name(), time.Since(start).Milliseconds())
		if err == nil {
			return result, nil
		}
		lastErr = err
		metrics.IncProviderCall(backend.Name(), "retry")

		if attempt == p.attempts {
			break
		}
		delay := backoffDelay(p.base, attempt, p.jitter)
		select {
		case <-ctx.Done():
			return adapter.RestoreResult{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return adapter.RestoreResult{}, lastErr
}

func backoffDelay(base time.Duration, attempt int, jitter float64) time.Duration {
	factor := 1 << uint(attempt-1)
	raw := base * time.Duration(factor)
	spread := 1 + (rand.Float64()*2-1)*jitter
	d := time.Duration(float64(raw) * spread)
	if d < 0 {
		d = 0
	}
	return d
}
