// Package mock implements ports.ProviderGateway without any network I/O.
// It simulates provider latency and an optional failure rate so the
// engine can be exercised end to end for free.
package mock

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sms-campaign-engine/internal/domain"
	"sms-campaign-engine/internal/ports"
)

// Gateway is a simulated SMS provider.
type Gateway struct {
	failureRate float64
	latency     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a mock gateway. failureRate in [0,1] is the probability a
// send reports a simulated delivery failure.
func New(failureRate float64, latency time.Duration) *Gateway {
	return &Gateway{
		failureRate: failureRate,
		latency:     latency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Send pretends to submit an SMS. It honours ctx during the simulated
// latency window.
func (g *Gateway) Send(ctx context.Context, to, body string, _ domain.ProviderConfig) (ports.Outcome, error) {
	if g.latency > 0 {
		t := time.NewTimer(g.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ports.Outcome{}, ctx.Err()
		case <-t.C:
		}
	}

	g.mu.Lock()
	fail := g.rng.Float64() < g.failureRate
	g.mu.Unlock()

	if fail {
		return ports.Outcome{Success: false, Error: "simulated network error"}, nil
	}

	return ports.Outcome{
		Success:           true,
		ProviderMessageID: fmt.Sprintf("mock-%d", time.Now().UnixMilli()),
	}, nil
}
