package sources

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeClock advances only when the pacer sleeps, so pacing can be asserted
// without real waits.
type fakeClock struct {
	current time.Time
	slept   []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{current: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.current = c.current.Add(d)
	return nil
}

func TestPacerFirstCallDoesNotWait(t *testing.T) {
	clk := newFakeClock()
	p := NewPacerWithClock(time.Second, clk.Now, clk.Sleep)

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clk.slept) != 0 {
		t.Fatalf("expected no sleep on first call, got %v", clk.slept)
	}
}

func TestPacerEnforcesMinimumInterval(t *testing.T) {
	const minInterval = time.Second

	clk := newFakeClock()
	p := NewPacerWithClock(minInterval, clk.Now, clk.Sleep)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.Wait(ctx); err != nil {
			t.Fatalf("wait %d: unexpected error: %v", i, err)
		}
	}

	// Four waits after the first, each must cover the full interval since
	// no time passes between calls.
	if len(clk.slept) != 4 {
		t.Fatalf("expected 4 sleeps, got %d (%v)", len(clk.slept), clk.slept)
	}
	for i, d := range clk.slept {
		if d < minInterval {
			t.Errorf("sleep %d was %v, want >= %v", i, d, minInterval)
		}
	}
}

func TestPacerAccountsForElapsedTime(t *testing.T) {
	const minInterval = time.Second

	clk := newFakeClock()
	p := NewPacerWithClock(minInterval, clk.Now, clk.Sleep)
	ctx := context.Background()

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a slow request taking longer than the interval; the next
	// wait should not sleep at all.
	clk.current = clk.current.Add(2 * minInterval)

	if err := p.Wait(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clk.slept) != 0 {
		t.Fatalf("expected no sleep after a long gap, got %v", clk.slept)
	}
}

func TestPacerDisabled(t *testing.T) {
	clk := newFakeClock()
	p := NewPacerWithClock(0, clk.Now, clk.Sleep)

	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(clk.slept) != 0 {
		t.Fatalf("expected no sleeps with pacing disabled, got %v", clk.slept)
	}
}

func TestPacerNilNeverWaits(t *testing.T) {
	var p *Pacer
	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPacerCancelledContext(t *testing.T) {
	clk := newFakeClock()
	p := NewPacerWithClock(time.Second, clk.Now, clk.Sleep)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
