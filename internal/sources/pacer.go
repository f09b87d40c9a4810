package sources

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between consecutive outbound requests
// to the same source. The clock and sleep function are injectable so tests
// can verify the spacing without real waits.
type Pacer struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewPacer creates a Pacer with the given minimum interval between
// requests. A non-positive interval disables pacing.
func NewPacer(minInterval time.Duration) *Pacer {
	return NewPacerWithClock(minInterval, time.Now, sleepContext)
}

// NewPacerWithClock creates a Pacer driven by an explicit clock and sleep
// function (for testing).
func NewPacerWithClock(minInterval time.Duration, now func() time.Time, sleep func(context.Context, time.Duration) error) *Pacer {
	p := &Pacer{now: now, sleep: sleep}
	if minInterval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	}
	return p
}

// Wait blocks until the next request may start. The first call never waits;
// each subsequent call waits out whatever remains of the minimum interval.
// A nil Pacer never waits.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res := p.limiter.ReserveN(p.now(), 1)
	delay := res.DelayFrom(p.now())
	if delay <= 0 {
		return nil
	}
	return p.sleep(ctx, delay)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
