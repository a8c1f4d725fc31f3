// Package timer implements the engine's wall-clock / musical-clock split:
// a fast-forwardable monotonic clock (spec §4.1 step 1-2, §6 Fastforward)
// and tempo-map-aware beat/cycle arithmetic (spec §4.5).
package timer

import (
	"sync"
	"time"
)

// Clock is a fast-forwardable monotonic clock. It mirrors the
// anchor-plus-elapsed-offset pattern the engine's main loop uses to sample
// `current_time`: a fixed anchor taken once, plus an accumulated offset
// that fast-forward can advance without touching wall-clock time.
type Clock struct {
	mu     sync.RWMutex
	anchor time.Time
	offset time.Duration

	ffRemainingSlices int
	ffSliceDuration   time.Duration
}

// NewClock returns a Clock anchored at the given time (use time.Now() in
// production, a fixed time in tests).
func NewClock(anchor time.Time) *Clock {
	return &Clock{anchor: anchor}
}

// Now returns the clock's current virtual time: anchor + accumulated
// offset. It does not itself advance with wall-clock time between calls;
// the engine main loop is responsible for calling Advance once per tick
// (spec §4.1 step 1: "current_time = monotonic_ns() + time_offset").
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anchor.Add(c.offset)
}

// Advance moves the virtual clock forward by d, driven by the real elapsed
// wall-clock time between ticks. If a fast-forward is active, one slice of
// it is additionally folded in (spec §4.1 step 2, §6 Fastforward: "divided
// into 100 equal slices applied across the next 100 ticks").
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
	if c.ffRemainingSlices > 0 {
		c.offset += c.ffSliceDuration
		c.ffRemainingSlices--
	}
}

// FastForwardSlices is the number of ticks a fast-forward request is
// divided across (spec §6).
const FastForwardSlices = 100

// ErrFastForwardActive is returned by BeginFastForward when a
// fast-forward is already in progress (spec §5: "Fast-forward is bounded
// (100 slices) and rejects a new request while active").
type fastForwardActiveError struct{}

func (fastForwardActiveError) Error() string { return "timer: fast-forward already active" }

// ErrFastForwardActive is the sentinel for fastForwardActiveError.
var ErrFastForwardActive error = fastForwardActiveError{}

// BeginFastForward starts advancing virtual time by duration, divided into
// FastForwardSlices equal slices applied on the next FastForwardSlices
// ticks. Only one fast-forward may run at a time.
func (c *Clock) BeginFastForward(duration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ffRemainingSlices > 0 {
		return ErrFastForwardActive
	}
	c.ffRemainingSlices = FastForwardSlices
	c.ffSliceDuration = duration / FastForwardSlices
	return nil
}

// FastForwarding reports whether a fast-forward is currently in progress.
func (c *Clock) FastForwarding() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ffRemainingSlices > 0
}

// TempoSegment is one entry of the engine's tempo map: the tempo and cycle
// length (in quarter notes) that took effect at Timestamp, until the next
// segment's Timestamp.
type TempoSegment struct {
	Timestamp   time.Time
	Tempo       float64 // beats per minute
	CycleLength float64 // quarter notes per cycle
}

// TempoMap is an ordered sequence of TempoSegment, oldest first, as
// maintained by the Engine across tempo changes.
type TempoMap []TempoSegment

// BeatDuration converts beatCount beats to a time.Duration at the given
// tempo (spec §4.2: "beats multiplies duration by 60/tempo").
func BeatDuration(beats float64, tempoBPM float64) time.Duration {
	if tempoBPM <= 0 {
		tempoBPM = 120
	}
	seconds := beats * 60 / tempoBPM
	return time.Duration(seconds * float64(time.Second))
}

// CurrentCycle walks tm and returns the elapsed cycle count (possibly
// fractional) at `at`, summing the (fractional) cycles elapsed in each
// tempo segment in turn (spec §4.5: "get_current_cycle walks the engine's tempo-map ...
// and sums elapsed cycles across segments").
func CurrentCycle(tm TempoMap, at time.Time) float64 {
	var cycles float64
	for i, seg := range tm {
		segStart := seg.Timestamp
		var segEnd time.Time
		if i+1 < len(tm) {
			segEnd = tm[i+1].Timestamp
		} else {
			segEnd = at
		}
		if segEnd.After(at) {
			segEnd = at
		}
		if !segEnd.After(segStart) {
			continue
		}
		elapsedBeats := segEnd.Sub(segStart).Seconds() * seg.Tempo / 60
		cycleLen := seg.CycleLength
		if cycleLen <= 0 {
			cycleLen = 4
		}
		cycles += elapsedBeats / cycleLen
	}
	return cycles
}

// RescaleRemaining rescales the remaining duration of an in-progress
// beat-mode wait when tempo changes from oldTempo to newTempo (spec §4.5
// and §8's tempo-change property). remaining is the wall-clock duration
// left before the wait would have elapsed at oldTempo; it is multiplied by
// oldTempo/newTempo, so a faster tempo shortens the wait.
func RescaleRemaining(remaining time.Duration, oldTempo, newTempo float64) time.Duration {
	if oldTempo <= 0 || newTempo <= 0 {
		return remaining
	}
	return time.Duration(float64(remaining) * oldTempo / newTempo)
}
