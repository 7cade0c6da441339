package syncer

import "time"

// speedTracker measures throughput over a reporting window and decides when
// a transport callback should surface as a progress event.
type speedTracker struct {
	now      func() time.Time
	interval time.Duration

	windowStart time.Time
	windowBytes uint64
	speed       float64
}

func newSpeedTracker(now func() time.Time, interval time.Duration) *speedTracker {
	return &speedTracker{now: now, interval: interval, windowStart: now()}
}

// observe records delta bytes and reports whether the window has elapsed.
func (t *speedTracker) observe(delta uint64) bool {
	now := t.now()
	t.windowBytes += delta

	elapsed := now.Sub(t.windowStart)
	if elapsed > 0 {
		t.speed = float64(t.windowBytes) / elapsed.Seconds()
	}
	if elapsed < t.interval {
		return false
	}

	t.windowStart = now
	t.windowBytes = 0
	return true
}

func (t *speedTracker) bytesPerSec() float64 {
	return t.speed
}

// eta estimates seconds left for the current file, prorated by fraction,
// plus every file not yet started. Returns 0 when speed is unknown.
func eta(currentSize uint64, fraction float64, pendingBytes uint64, speed float64) float64 {
	if speed <= 0 {
		return 0
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	remaining := float64(currentSize)*(1-fraction) + float64(pendingBytes)
	return remaining / speed
}
