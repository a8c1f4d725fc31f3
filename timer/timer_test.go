package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockAdvance(t *testing.T) {
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewClock(anchor)
	assert.Equal(t, anchor, c.Now())
	c.Advance(time.Second)
	assert.Equal(t, anchor.Add(time.Second), c.Now())
}

func TestFastForwardAppliesSlicesAndRejectsConcurrent(t *testing.T) {
	c := NewClock(time.Now())
	require.NoError(t, c.BeginFastForward(time.Second))
	require.ErrorIs(t, c.BeginFastForward(time.Second), ErrFastForwardActive)

	start := c.Now()
	for i := 0; i < FastForwardSlices; i++ {
		c.Advance(0)
	}
	assert.True(t, c.Now().Sub(start) >= time.Second-time.Millisecond)
	assert.False(t, c.FastForwarding())
}

func TestBeatDuration(t *testing.T) {
	// 1 beat at 60bpm == 1 second.
	assert.Equal(t, time.Second, BeatDuration(1, 60))
	// 1 beat at 120bpm == 0.5 second.
	assert.Equal(t, 500*time.Millisecond, BeatDuration(1, 120))
}

func TestRescaleRemainingMatchesTempoChangeProperty(t *testing.T) {
	// spec §8: wall clock duration == f*d*60/tau0 + (1-f)*d*60/tau1
	d := 1.0 // beats
	tau0, tau1 := 60.0, 120.0
	f := 0.5

	total := BeatDuration(d, tau0)
	elapsed := time.Duration(f * float64(total))
	remaining := total - elapsed

	rescaled := RescaleRemaining(remaining, tau0, tau1)
	realized := elapsed + rescaled

	expected := time.Duration((f*d*60/tau0 + (1-f)*d*60/tau1) * float64(time.Second))
	assert.InDelta(t, float64(expected), float64(realized), float64(time.Millisecond))
}

func TestCurrentCycleSumsAcrossSegments(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tm := TempoMap{
		{Timestamp: base, Tempo: 60, CycleLength: 4},
		{Timestamp: base.Add(4 * time.Second), Tempo: 120, CycleLength: 4},
	}
	// First segment: 4s @ 60bpm = 4 beats = 1 cycle (cycle len 4).
	// Then 2s more into the second segment @ 120bpm = 4 beats = 1 cycle.
	at := base.Add(6 * time.Second)
	cycles := CurrentCycle(tm, at)
	assert.InDelta(t, 2.0, cycles, 0.001)
}
