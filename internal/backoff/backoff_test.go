package backoff_test

import (
	"testing"
	"time"

	"github.com/charq/charq/internal/backoff"
)

func TestDelayGrowsWithAttempt(t *testing.T) {
	c := backoff.Counter{Config: backoff.Config{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0,
	}}

	d1 := c.Delay(1)
	d2 := c.Delay(2)
	d3 := c.Delay(3)

	if d1 != 100*time.Millisecond {
		t.Fatalf("expected first delay to equal the initial interval, got %v", d1)
	}
	if d2 <= d1 || d3 <= d2 {
		t.Fatalf("expected delays to grow with attempt number, got %v, %v, %v", d1, d2, d3)
	}
}

func TestDelayCapsAtMaxInterval(t *testing.T) {
	c := backoff.Counter{Config: backoff.Config{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          10,
		RandomizationFactor: 0,
	}}

	d := c.Delay(5)
	if d != time.Second {
		t.Fatalf("expected delay to cap at MaxInterval, got %v", d)
	}
}

func TestDelayJitterStaysInBounds(t *testing.T) {
	c := backoff.Counter{Config: backoff.Config{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          1,
		RandomizationFactor: 0.5,
	}}

	for i := 0; i < 50; i++ {
		d := c.Delay(1)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("delay %v outside expected jitter bounds [50ms, 150ms]", d)
		}
	}
}

func TestDelayTreatsZeroAttemptAsFirst(t *testing.T) {
	c := backoff.Counter{Config: backoff.Config{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         time.Second,
		Multiplier:          2,
		RandomizationFactor: 0,
	}}

	if got, want := c.Delay(0), c.Delay(1); got != want {
		t.Fatalf("expected Delay(0) to behave like Delay(1), got %v vs %v", got, want)
	}
}
