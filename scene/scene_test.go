package scene

import (
	"sync"
	"testing"
	"time"

	"github.com/jean-emmanuel/mentat/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	mu  sync.Mutex
	fns []func()
}

func (f *fakeEnqueuer) EnqueueAction(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
	fn() // run immediately for test simplicity
}

type fakeTempo struct {
	mu   sync.Mutex
	bpm  float64
	clk  *timer.Clock
	tm   timer.TempoMap
}

func (f *fakeTempo) CurrentTempo() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bpm, 4
}
func (f *fakeTempo) TempoMap() timer.TempoMap { return f.tm }
func (f *fakeTempo) Now() time.Time           { return f.clk.Now() }
func (f *fakeTempo) setTempo(bpm float64)     { f.mu.Lock(); f.bpm = bpm; f.mu.Unlock() }

func TestStartStopsPriorInstance(t *testing.T) {
	enq := &fakeEnqueuer{}
	tp := &fakeTempo{bpm: 120, clk: timer.NewClock(time.Now())}
	s := New(enq, tp)

	firstStopped := make(chan struct{})
	s.Start("x", func(ctx *Context) {
		<-ctx.Done()
		close(firstStopped)
	})
	// give the goroutine a moment to register
	time.Sleep(10 * time.Millisecond)

	secondRan := make(chan struct{})
	s.Start("x", func(ctx *Context) { close(secondRan) })

	select {
	case <-firstStopped:
	case <-time.After(time.Second):
		t.Fatal("first scene was not stopped")
	}
	select {
	case <-secondRan:
	case <-time.After(time.Second):
		t.Fatal("second scene did not run")
	}
}

func TestStopMatchesWildcard(t *testing.T) {
	enq := &fakeEnqueuer{}
	tp := &fakeTempo{bpm: 120, clk: timer.NewClock(time.Now())}
	s := New(enq, tp)

	done := make(chan struct{}, 2)
	s.Start("/route/a/one", func(ctx *Context) { <-ctx.Done(); done <- struct{}{} })
	s.Start("/route/a/two", func(ctx *Context) { <-ctx.Done(); done <- struct{}{} })
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, s.Stop("/route/a/*"))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("scene not stopped by wildcard")
		}
	}
}

func TestBeatWaitRescalesOnTempoChange(t *testing.T) {
	enq := &fakeEnqueuer{}
	start := time.Now()
	clk := timer.NewClock(start)
	tp := &fakeTempo{bpm: 60, clk: clk}
	s := New(enq, tp)

	waitDone := make(chan time.Duration, 1)
	s.Start("x", func(ctx *Context) {
		t0 := time.Now()
		_ = ctx.Wait(1, WaitBeats) // 1 beat @ 60bpm = 1s
		waitDone <- time.Since(t0)
	})

	// advance the virtual clock by 0.5s (only ~50ms of real time passes),
	// then double the tempo, halving the remaining 0.5s wait.
	time.Sleep(50 * time.Millisecond)
	clk.Advance(500 * time.Millisecond)
	tp.setTempo(120)
	s.OnTempoChange(120)

	select {
	case d := <-waitDone:
		// real elapsed should be ~0.3s (50ms + 0.25s rescaled remainder),
		// not the 1s an unrescaled timer would take.
		assert.True(t, d < 900*time.Millisecond, "got %s", d)
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not complete")
	}
}
