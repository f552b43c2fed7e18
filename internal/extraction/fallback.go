package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"docfill/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackGenerator tries generators in order, skipping those with open circuits.
// It implements port.StructuredGenerator.
type FallbackGenerator struct {
	generators []port.StructuredGenerator
	circuits   []*circuitState
	names      []string
	now        func() time.Time
}

// NewFallbackGenerator creates a FallbackGenerator from an ordered list of generators and their names.
func NewFallbackGenerator(generators []port.StructuredGenerator, names []string) *FallbackGenerator {
	circuits := make([]*circuitState, len(generators))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackGenerator{
		generators: generators,
		circuits:   circuits,
		names:      names,
		now:        time.Now,
	}
}

func (f *FallbackGenerator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, g := range f.generators {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("extraction.FallbackGenerator: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := g.Generate(ctx, input)
		if err == nil {
			return out, nil
		}

		log.Printf("extraction.FallbackGenerator: %s failed: %v", f.names[i], err)
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("generation canceled: %w", ctx.Err())
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds()))
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
