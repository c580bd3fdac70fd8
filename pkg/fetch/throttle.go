package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Throttle enforces the inter-request politeness delay per host. The crawl is
// sequential, but last-request times are still tracked per host under a mutex
// so the throttle stays correct if callers ever overlap.
type Throttle struct {
	hostLastRequest   map[string]time.Time // hostname -> last request attempt time
	hostLastRequestMu sync.Mutex           // Protects hostLastRequest map
	delay             time.Duration        // Minimum gap between requests to one host
	log               *logrus.Logger
}

// NewThrottle creates a Throttle with the configured inter-request delay.
func NewThrottle(delay time.Duration, log *logrus.Logger) *Throttle {
	return &Throttle{
		hostLastRequest: make(map[string]time.Time),
		delay:           delay,
		log:             log,
	}
}

// Wait sleeps until the configured delay since the last request to the host
// has elapsed. The sleep respects context cancellation. The first request to
// a host proceeds immediately.
func (t *Throttle) Wait(ctx context.Context, host string) error {
	if t.delay <= 0 {
		return nil
	}

	t.hostLastRequestMu.Lock()
	lastReqTime, exists := t.hostLastRequest[host]
	t.hostLastRequestMu.Unlock() // Unlock before potentially sleeping

	if !exists {
		return nil
	}

	elapsed := time.Since(lastReqTime)
	if elapsed >= t.delay {
		return nil
	}

	sleepDuration := t.delay - elapsed
	t.log.WithFields(logrus.Fields{
		"host": host, "sleep": sleepDuration, "required_delay": t.delay, "elapsed": elapsed,
	}).Debug("Throttle applying sleep")

	select {
	case <-time.After(sleepDuration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateLastRequestTime records the current time as the last request attempt
// time for the host. Call this *after* an HTTP request attempt to the host.
func (t *Throttle) UpdateLastRequestTime(host string) {
	t.hostLastRequestMu.Lock()
	t.hostLastRequest[host] = time.Now()
	t.hostLastRequestMu.Unlock()
}
