package mentat

import (
	"testing"

	"github.com/jean-emmanuel/mentat/mlog"
	"github.com/jean-emmanuel/mentat/parameter"
	"github.com/jean-emmanuel/mentat/timer"
	"github.com/jean-emmanuel/mentat/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig(), mlog.New(nil), timer.NewClock(fixedNow))
	require.NoError(t, err)
	t.Cleanup(func() { ReleaseEngine(e) })
	return e
}

func TestAddMappingPropagatesOnSourceChange(t *testing.T) {
	e := newTestEngine(t)

	src, err := e.AddParameter("src", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	dst, err := e.AddParameter("dst", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	_, err = e.AddMapping([]string{"src"}, []string{"dst"}, func(sources []value.Value) [][]any {
		return [][]any{{sources[0].F * 2}}
	}, "")
	require.NoError(t, err)

	require.NoError(t, src.Set(e.clock.Now(), []any{3.0}))
	e.drainDirty()

	assert.Equal(t, 6.0, dst.Values()[0].F)
}

func TestMappingConditionGatesTransform(t *testing.T) {
	e := newTestEngine(t)

	enabled, err := e.AddParameter("enabled", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	src, err := e.AddParameter("src", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	dst, err := e.AddParameter("dst", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	_, err = e.AddMapping([]string{"src"}, []string{"dst"}, func(sources []value.Value) [][]any {
		return [][]any{{sources[0].F}}
	}, "enabled")
	require.NoError(t, err)

	require.NoError(t, src.Set(e.clock.Now(), []any{7.0}))
	e.drainDirty()
	assert.Equal(t, 0.0, dst.Values()[0].F, "mapping must stay gated while condition is false")

	require.NoError(t, enabled.Set(e.clock.Now(), []any{1.0}))
	e.drainDirty()
	assert.Equal(t, 7.0, dst.Values()[0].F, "mapping fires once its condition parameter is truthy")
}

func TestMappingFiresOnceExactlyPerTick(t *testing.T) {
	e := newTestEngine(t)

	src, err := e.AddParameter("src", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	calls := 0
	_, err = e.AddMapping([]string{"src"}, []string{"src"}, func(sources []value.Value) [][]any {
		calls++
		return [][]any{{sources[0].F}} // writes back to its own source: would loop without the fired-once guard
	}, "")
	require.NoError(t, err)

	calls = 0 // ignore the initial-update fire triggered by registration
	require.NoError(t, src.Set(e.clock.Now(), []any{1.0}))
	e.drainDirty()

	assert.Equal(t, 1, calls)
}

func TestMetaParameterGetterRecomputesFromSources(t *testing.T) {
	e := newTestEngine(t)

	x, err := e.AddParameter("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	y, err := e.AddParameter("y", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)
	_ = y

	mp, err := e.AddMetaParameter("sum", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{},
		[]string{"x", "y"},
		func(sources []value.Value) []any { return []any{sources[0].F + sources[1].F} },
		nil,
	)
	require.NoError(t, err)

	require.NoError(t, x.Set(e.clock.Now(), []any{2.0}))
	e.drainDirty()

	assert.Equal(t, 2.0, mp.Param().Values()[0].F)
}

func TestMetaParameterSetDecomposesToSources(t *testing.T) {
	e := newTestEngine(t)

	x, err := e.AddParameter("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{})
	require.NoError(t, err)

	mp, err := e.AddMetaParameter("doubled", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{},
		[]string{"x"},
		func(sources []value.Value) []any { return []any{sources[0].F * 2} },
		func(e *Engine, owner *Module, args []any) error {
			p, _ := owner.Param("x")
			v := args[0].(float64) / 2
			return p.Set(e.clock.Now(), []any{v})
		},
	)
	require.NoError(t, err)

	require.NoError(t, mp.Set(e, []any{10.0}))
	assert.Equal(t, 5.0, x.Values()[0].F)
}

func TestMappingTriggeredReDirtyStillEmitsOutbound(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.AddParameter("a", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{Address: "/a"})
	require.NoError(t, err)
	b, err := e.AddParameter("b", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, parameter.Options{Address: "/b"})
	require.NoError(t, err)

	_, err = e.AddMapping([]string{"a"}, []string{"b"}, func(sources []value.Value) [][]any {
		return [][]any{{sources[0].F * 2}}
	}, "")
	require.NoError(t, err)

	require.NoError(t, a.Set(e.clock.Now(), []any{3.0}))
	e.drainDirty()

	assert.Equal(t, 6.0, b.Values()[0].F)

	seen := map[string]bool{}
	for {
		select {
		case msg := <-e.outbound:
			seen[msg.address] = true
		default:
			assert.True(t, seen["/a"], "source parameter's own outbound message must still be emitted")
			assert.True(t, seen["/b"], "mapping-triggered re-dirty of the same module must not drop the destination's outbound message")
			return
		}
	}
}

func TestSortMappingsOrdersByDependency(t *testing.T) {
	a := &Mapping{sourcePaths: []string{"p"}, destPaths: []string{"q"}}
	b := &Mapping{sourcePaths: []string{"q"}, destPaths: []string{"r"}}
	mappings := []*Mapping{b, a}

	sortMappings(mappings)

	assert.Same(t, a, mappings[0])
	assert.Same(t, b, mappings[1])
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.True(t, isTruthy([]value.Value{value.Bool(true)}))
	assert.False(t, isTruthy([]value.Value{value.Bool(false)}))
	assert.True(t, isTruthy([]value.Value{value.Double(1)}))
	assert.False(t, isTruthy([]value.Value{value.Double(0)}))
	assert.True(t, isTruthy([]value.Value{value.String("x")}))
}
