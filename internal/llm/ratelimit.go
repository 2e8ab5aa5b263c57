package llm

import (
	"context"
	"sync"
	"time"
)

// pacer spaces provider calls so they average at most rps per second. Each
// caller reserves the next free slot under the mutex and sleeps outside it,
// so reservations are handed out in arrival order and a canceled waiter
// never blocks the others. A nil pacer admits everything.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newPacer(rps float64) *pacer {
	if rps <= 0 {
		return nil
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	return &pacer{interval: interval}
}

// Wait blocks until this call's reserved slot arrives or ctx ends. A slot
// abandoned on cancellation stays consumed; the pacing error is at most one
// interval.
func (p *pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
