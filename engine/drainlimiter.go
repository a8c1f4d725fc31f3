// Package engine provides small, independently-testable helpers used by
// the root mentat package's single-writer main loop (spec §4.1): a
// per-destination outbound send-rate limiter and a dirty-module
// notification batcher for diagnostics. The loop itself — the module
// tree, mapping graph, and scene scheduler assembly — lives in the root
// package, since those types are mutually recursive with Engine.
package engine

import (
	"time"

	"github.com/joeycumines/go-catrate"
)

// DrainLimiter bounds how many outbound-send attempts a single tick makes
// against one destination port, so a burst of dirty parameters on a stalled
// transport can't make step 8 of the tick ("drain outbound queues") block
// the loop beyond a short attempt (spec §4.1 step 8, §7 "transient I/O").
//
// One category per (protocol, port) destination keeps a congested MIDI port
// from throttling sends to an unrelated OSC client.
type DrainLimiter struct {
	limiter *catrate.Limiter
}

// NewDrainLimiter returns a DrainLimiter allowing at most maxPerTick send
// attempts to a given destination within window (e.g. one tick's worth of
// wall-clock time).
func NewDrainLimiter(window time.Duration, maxPerTick int) *DrainLimiter {
	return &DrainLimiter{
		limiter: catrate.NewLimiter(map[time.Duration]int{
			window: maxPerTick,
		}),
	}
}

// Allow reports whether a send attempt to destination may proceed now. When
// false, the caller requeues the pending outbound message for a later tick
// rather than losing it (spec §5 "Suspension points").
func (d *DrainLimiter) Allow(destination string) bool {
	if d == nil || d.limiter == nil {
		return true
	}
	_, ok := d.limiter.Allow(destination)
	return ok
}
