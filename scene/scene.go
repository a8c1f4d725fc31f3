// Package scene implements the cooperative scene scheduler (spec §4.5):
// user functions that run on their own goroutine but can only mutate
// engine state indirectly, by enqueuing actions for the main loop, and
// that suspend themselves at explicit Wait/WaitNextCycle points.
//
// Cancellation uses context.Context instead of the source system's
// injected-exception model (spec Design Notes: "scene cancellation via a
// dedicated kill signal checked at each wait") — the idiomatic Go
// equivalent of a cooperative kill signal checked at each suspension
// point.
package scene

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jean-emmanuel/mentat/timer"
)

// WaitMode selects whether a Wait duration is expressed in beats or
// seconds (spec §4.2/§4.5).
type WaitMode string

// Wait modes.
const (
	WaitBeats   WaitMode = "beats"
	WaitSeconds WaitMode = "seconds"
)

// Enqueuer defers a function to run on the engine's main loop, the
// trampoline every public mutator a scene calls must go through (spec
// §4.1 "single-writer model", §4.5 "every public mutator they call is
// deferred via the action trampoline").
type Enqueuer interface {
	EnqueueAction(fn func())
}

// TempoProvider answers the scene scheduler's tempo questions: the
// engine's current tempo/cycle length and tempo-map, used for beat-mode
// waits and wait_next_cycle (spec §4.5).
type TempoProvider interface {
	CurrentTempo() (bpm, cycleLength float64)
	TempoMap() timer.TempoMap
	Now() time.Time
}

// Func is a scene body. It receives a *Context to wait/enqueue/observe
// cancellation, and returns when the scene is done (naturally or via
// cancellation — the latter should be detected by checking ctx.Err()
// after a Wait call and returning promptly).
type Func func(ctx *Context)

// Context is passed to a running scene body.
type Context struct {
	name   string
	sched  *Scheduler
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	waitStart time.Time // accumulates as each wait completes, spec §4.5 "preserving the original schedule"
}

// Name returns the scene's hierarchical name.
func (c *Context) Name() string { return c.name }

// Done returns a channel closed when the scene has been asked to stop.
func (c *Context) Done() <-chan struct{} { return c.ctx.Done() }

// Cancelled reports whether the scene has been asked to stop.
func (c *Context) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Enqueue defers fn to run on the engine main loop (spec §4.5: scene
// mutators are confined to the main loop via the action trampoline).
func (c *Context) Enqueue(fn func()) {
	c.sched.enqueuer.EnqueueAction(fn)
}

// Wait suspends the calling goroutine for `amount` units (beats or
// seconds, per mode), honoring tempo changes mid-wait for beat-mode waits
// (spec §4.5, §8 tempo-change property). It returns context.Canceled if
// the scene is stopped while waiting.
//
// Successive waits do not drift: each wait's deadline is computed from
// the previous wait's intended completion time, not from when the caller
// happened to resume (spec §4.5: "the timer accumulates start_time as
// each wait completes").
func (c *Context) Wait(amount float64, mode WaitMode) error {
	bpm, _ := c.sched.tempo.CurrentTempo()

	c.mu.Lock()
	if c.waitStart.IsZero() {
		c.waitStart = c.sched.tempo.Now()
	}
	base := c.waitStart
	c.mu.Unlock()

	var total time.Duration
	if mode == WaitBeats {
		total = timer.BeatDuration(amount, bpm)
	} else {
		total = time.Duration(amount * float64(time.Second))
	}

	deadline := base.Add(total)
	remaining := deadline.Sub(c.sched.tempo.Now())
	if remaining < 0 {
		remaining = 0
	}

	t := newRescalableTimer(remaining)
	defer t.Stop()

	if mode == WaitBeats {
		c.sched.registerBeatWait(c, t, bpm, deadline)
		defer c.sched.unregisterBeatWait(c)
	}

	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-t.C():
		c.mu.Lock()
		c.waitStart = deadline
		c.mu.Unlock()
		return nil
	}
}

// WaitNextCycle suspends until the engine's current musical cycle index
// changes (spec §4.5: "wait_next_cycle polls for the cycle index to
// change").
func (c *Context) WaitNextCycle() error {
	tm := c.sched.tempo.TempoMap()
	start := int64(timer.CurrentCycle(tm, c.sched.tempo.Now()))
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-ticker.C:
			tm := c.sched.tempo.TempoMap()
			if int64(timer.CurrentCycle(tm, c.sched.tempo.Now())) != start {
				return nil
			}
		}
	}
}

// rescalableTimer wraps time.Timer with the ability to have its remaining
// duration rescaled in place (spec §4.5: beat-mode waits rescale on tempo
// change).
type rescalableTimer struct {
	mu      sync.Mutex
	timer   *time.Timer
	fired   chan struct{}
	stopped bool
}

func newRescalableTimer(d time.Duration) *rescalableTimer {
	rt := &rescalableTimer{fired: make(chan struct{})}
	rt.timer = time.AfterFunc(d, func() { close(rt.fired) })
	return rt
}

func (rt *rescalableTimer) C() <-chan struct{} { return rt.fired }

func (rt *rescalableTimer) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.stopped {
		rt.stopped = true
		rt.timer.Stop()
	}
}

func (rt *rescalableTimer) Rescale(remaining time.Duration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.stopped {
		return
	}
	rt.timer.Stop()
	rt.timer = time.AfterFunc(remaining, func() { close(rt.fired) })
}

// beatWait tracks one in-progress beat-mode Wait so OnTempoChange can
// rescale its remaining duration in place.
type beatWait struct {
	timer    *rescalableTimer
	tempo    float64   // tempo in effect since the last rescale (or wait start)
	deadline time.Time // absolute deadline at `tempo`
}

// Scheduler runs and tracks named scenes (spec §4.5).
type Scheduler struct {
	enqueuer Enqueuer
	tempo    TempoProvider

	mu        sync.Mutex
	scenes    map[string]*handle
	beatWaits map[*Context]*beatWait
}

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Scheduler. enqueuer is used to confine every scene
// mutator to the main loop; tempo answers beat/cycle questions.
func New(enqueuer Enqueuer, tempo TempoProvider) *Scheduler {
	return &Scheduler{
		enqueuer:  enqueuer,
		tempo:     tempo,
		scenes:    make(map[string]*handle),
		beatWaits: make(map[*Context]*beatWait),
	}
}

// Start launches fn under name, stopping any scene already running under
// that exact name first (spec §4.5: "Starting a scene whose name already
// runs stops the prior instance first").
func (s *Scheduler) Start(name string, fn Func) {
	s.stopExact(name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.scenes[name] = &handle{cancel: cancel, done: done}
	s.mu.Unlock()

	sc := &Context{name: name, sched: s, ctx: ctx, cancel: cancel}
	go func() {
		defer close(done)
		defer s.forget(name)
		fn(sc)
	}()
}

// Restart resets the named scene's timer by stopping and re-starting it
// with the same body. Callers typically pass the same fn they started
// with; the Scheduler does not retain bodies across a full Stop.
func (s *Scheduler) Restart(name string, fn Func) {
	s.Start(name, fn)
}

func (s *Scheduler) forget(name string) {
	s.mu.Lock()
	delete(s.scenes, name)
	s.mu.Unlock()
}

func (s *Scheduler) stopExact(name string) {
	s.mu.Lock()
	h, ok := s.scenes[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	h.cancel()
	<-h.done
}

// Stop cancels every running scene whose name matches the fnmatch
// pattern (spec §4.5: "support fnmatch wildcards in stop/restart"). It
// waits for each matched scene to unwind.
func (s *Scheduler) Stop(pattern string) error {
	names, err := s.matching(pattern)
	if err != nil {
		return err
	}
	for _, name := range names {
		s.stopExact(name)
	}
	return nil
}

// Running returns the names of all currently running scenes.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.scenes))
	for name := range s.scenes {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) matching(pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for name := range s.scenes {
		ok, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("scene: bad pattern %q: %w", pattern, err)
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// RouteSceneName builds the hierarchical name for a scene started by a
// route (spec §4.5: "/route/<route_name>/<scene_name>").
func RouteSceneName(routeName, sceneName string) string {
	return "/route/" + routeName + "/" + sceneName
}

// ModuleSceneName builds the hierarchical name for a scene started by a
// module (spec §4.5: "/module/<module_path>/<scene_name>").
func ModuleSceneName(modulePath []string, sceneName string) string {
	path := "/module"
	for _, p := range modulePath {
		path += "/" + p
	}
	return path + "/" + sceneName
}

// OnTempoChange rescales every in-progress beat-mode wait (spec §4.5 and
// §8's tempo-change property): the wall-clock time each wait has left is
// multiplied by old/new tempo, so a faster tempo ends it sooner.
func (s *Scheduler) OnTempoChange(newTempo float64) {
	s.mu.Lock()
	waits := make([]*beatWait, 0, len(s.beatWaits))
	for _, w := range s.beatWaits {
		waits = append(waits, w)
	}
	s.mu.Unlock()

	now := s.tempo.Now()
	for _, w := range waits {
		remainingOld := w.deadline.Sub(now)
		if remainingOld <= 0 {
			continue
		}
		remainingNew := timer.RescaleRemaining(remainingOld, w.tempo, newTempo)
		w.timer.Rescale(remainingNew)
		w.deadline = now.Add(remainingNew)
		w.tempo = newTempo
	}
}

func (s *Scheduler) registerBeatWait(c *Context, t *rescalableTimer, tempo float64, deadline time.Time) {
	s.mu.Lock()
	s.beatWaits[c] = &beatWait{timer: t, tempo: tempo, deadline: deadline}
	s.mu.Unlock()
}

func (s *Scheduler) unregisterBeatWait(c *Context) {
	s.mu.Lock()
	delete(s.beatWaits, c)
	s.mu.Unlock()
}
