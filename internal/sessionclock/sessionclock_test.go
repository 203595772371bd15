package sessionclock

import (
	"sync"
	"testing"
	"time"
)

func TestClockTicksDownToZeroAndStops(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var ticks []time.Duration

	c := New(time.Now().Add(25*time.Millisecond), func(left time.Duration) {
		mu.Lock()
		ticks = append(ticks, left)
		mu.Unlock()
	})
	c.interval = 10 * time.Millisecond
	c.Start()

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-deadline:
			t.Fatal("clock never reached zero")
		default:
		}
		mu.Lock()
		n := len(ticks)
		last := time.Duration(-1)
		if n > 0 {
			last = ticks[n-1]
		}
		mu.Unlock()
		if last == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(ticks); i++ {
		if ticks[i] > ticks[i-1] {
			t.Fatalf("remaining time increased: tick %d = %v, tick %d = %v", i-1, ticks[i-1], i, ticks[i])
		}
	}
}

func TestClockStopBeforeExpiry(t *testing.T) {
	t.Parallel()

	c := New(time.Now().Add(time.Hour), nil)
	c.interval = 5 * time.Millisecond
	c.Start()
	c.Stop()
	// Stop again must not panic or block.
	c.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	c := New(time.Now().Add(time.Minute), nil)
	c.Stop()
}

func TestRemainingFloorsAtZero(t *testing.T) {
	t.Parallel()

	c := New(time.Now().Add(-time.Minute), nil)
	if got := c.Remaining(); got != 0 {
		t.Fatalf("Remaining() = %v for a past deadline, want 0", got)
	}
}
