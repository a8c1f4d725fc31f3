package mentat

import (
	"testing"
	"time"

	"github.com/jean-emmanuel/mentat/mlog"
	"github.com/jean-emmanuel/mentat/parameter"
	"github.com/jean-emmanuel/mentat/scene"
	"github.com/jean-emmanuel/mentat/timer"
	"github.com/jean-emmanuel/mentat/transport"
	"github.com/jean-emmanuel/mentat/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRejectsSecondInstance(t *testing.T) {
	e := newTestEngine(t)

	_, err := NewEngine(DefaultConfig(), mlog.New(nil), timer.NewClock(fixedNow))
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ErrKindConfigFatal, merr.Kind)

	_ = e
}

func TestDispatchGenericAPISetsParameter(t *testing.T) {
	e := newTestEngine(t)
	sub, err := e.AddModule("sub", transport.ProtoOSC, "")
	require.NoError(t, err)
	p, err := sub.AddParameter("level", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	ok := e.dispatchGenericAPI("/"+e.Name()+"/sub/level", []any{0.5})
	require.True(t, ok)
	assert.Equal(t, 0.5, p.Values()[0].F)

	ok = e.dispatchGenericAPI("/unknown/address", nil)
	assert.False(t, ok)
}

func TestRouteOSCHonorsModuleVeto(t *testing.T) {
	e := newTestEngine(t)
	sub, err := e.AddModule("sub", transport.ProtoOSC, "9100")
	require.NoError(t, err)
	p, err := sub.AddParameter("level", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	vetoed := false
	sub.SetRoute(func(msg RouteMessage) bool {
		vetoed = true
		return true
	})

	e.routeOSC(transport.InboundOSC{
		Address: "/" + e.Name() + "/sub/level",
		Args:    []any{9.0},
		Src:     transport.Source{Protocol: transport.ProtoOSC, Port: "9100"},
	})

	assert.True(t, vetoed)
	assert.Equal(t, 0.0, p.Values()[0].F, "generic API must not run once the module route vetoes")
}

func TestRouteOSCFallsThroughToGenericAPI(t *testing.T) {
	e := newTestEngine(t)
	sub, err := e.AddModule("sub", transport.ProtoOSC, "9101")
	require.NoError(t, err)
	p, err := sub.AddParameter("level", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	e.routeOSC(transport.InboundOSC{
		Address: "/" + e.Name() + "/sub/level",
		Args:    []any{3.5},
		Src:     transport.Source{Protocol: transport.ProtoOSC, Port: "9101"},
	})

	assert.Equal(t, 3.5, p.Values()[0].F)
}

func TestModuleForSourceResolvesByProtocolAndPort(t *testing.T) {
	e := newTestEngine(t)
	sub, err := e.AddModule("sub", transport.ProtoOSC, "9102")
	require.NoError(t, err)

	got := e.moduleForSource(transport.Source{Protocol: transport.ProtoOSC, Port: "9102"})
	assert.Same(t, sub, got)

	got = e.moduleForSource(transport.Source{Protocol: transport.ProtoOSC, Port: "nowhere"})
	assert.Same(t, e.Module, got)
}

func TestTickEmitsOutboundOnlyOnChange(t *testing.T) {
	e := newTestEngine(t)
	p, err := e.AddParameter("level", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{Address: "/level"})
	require.NoError(t, err)

	require.NoError(t, p.Set(e.clock.Now(), []any{0.0})) // unchanged: must not enqueue
	e.drainDirty()
	select {
	case <-e.outbound:
		t.Fatal("unexpected outbound message for an unchanged set")
	default:
	}

	require.NoError(t, p.Set(e.clock.Now(), []any{1.0}))
	e.drainDirty()
	select {
	case msg := <-e.outbound:
		assert.Equal(t, "/level", msg.address)
	default:
		t.Fatal("expected an outbound message for a changed set")
	}
}

func TestSetTempoRescalesInProgressBeatWait(t *testing.T) {
	e := newTestEngine(t)
	e.SetTempo(120)

	started := make(chan struct{})
	done := make(chan struct{})
	e.StartScene("probe", func(ctx *scene.Context) {
		close(started)
		_ = ctx.Wait(4, scene.WaitBeats) // 2s at 120bpm
		close(done)
	})
	<-started
	time.Sleep(10 * time.Millisecond)

	e.SetTempo(480) // 4x tempo: remaining time should shrink to roughly a quarter

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("beat-mode wait did not rescale down after a tempo increase")
	}
}

func TestAnimateBeatsModeUsesCurrentTempo(t *testing.T) {
	e := newTestEngine(t)
	e.SetTempo(120) // 1 beat == 0.5s, so 4 beats == 2s

	p, err := e.AddParameter("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	require.NoError(t, e.Animate(p, 4, scene.WaitBeats, parameter.AnimateOptions{To: []float64{1.0}}))
	assert.True(t, p.Animating())

	p.Advance(fixedNow.Add(1 * time.Second)) // halfway through a 2s duration
	assert.InDelta(t, 0.5, p.Values()[0].F, 1e-9)

	completed := p.Advance(fixedNow.Add(2 * time.Second))
	assert.True(t, completed)
	assert.Equal(t, 1.0, p.Values()[0].F)
}

func TestUseJSONFileStoreSaveLoadRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	sub, err := e.AddModule("sub", transport.ProtoOSC, "")
	require.NoError(t, err)
	p, err := sub.AddParameter("greeting", []value.Tag{value.TagString}, 0, []value.Value{value.String("")}, parameter.Options{})
	require.NoError(t, err)
	require.NoError(t, p.Set(e.clock.Now(), []any{"hi"}))

	require.NoError(t, e.UseJSONFileStore(t.TempDir()))
	require.NoError(t, e.Save("snap", e.Module))

	fresh, err := NewModule(e.Name(), transport.ProtoNil, "", nil)
	require.NoError(t, err)
	freshSub, err := fresh.AddModule("sub", transport.ProtoOSC, "")
	require.NoError(t, err)
	_, err = freshSub.AddParameter("greeting", []value.Tag{value.TagString}, 0, []value.Value{value.String("")}, parameter.Options{})
	require.NoError(t, err)

	require.NoError(t, e.Load("snap", fresh))
	got, _ := freshSub.Param("greeting")
	assert.Equal(t, "hi", got.Values()[0].S)
}

func TestRequestRestartFailsFatalWithoutRestarter(t *testing.T) {
	e := newTestEngine(t)
	err := e.teardownAndRestart()
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, ErrKindConfigFatal, merr.Kind)
}
