package parameter

import (
	"testing"
	"time"

	"github.com/jean-emmanuel/mentat/easing"
	"github.com/jean-emmanuel/mentat/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotifier struct{ notified []string }

func (f *fakeNotifier) NotifyDirty(p *Parameter) { f.notified = append(f.notified, p.Name()) }

func TestSetNoChangeDoesNotDirty(t *testing.T) {
	n := &fakeNotifier{}
	p, err := New("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, n, Options{Address: "/x"})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, p.Set(now, []any{0.0}))
	assert.False(t, p.Dirty())
	assert.Empty(t, n.notified)

	require.NoError(t, p.Set(now, []any{0.5}))
	assert.True(t, p.Dirty())
	assert.Equal(t, []string{"x"}, n.notified)
}

func TestSetCancelsAnimation(t *testing.T) {
	p, err := New("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, nil, Options{})
	require.NoError(t, err)

	require.NoError(t, p.Animate(time.Now(), time.Second, AnimateOptions{To: []float64{1}, Easing: easing.Linear, Mode: easing.ModeIn}))
	assert.True(t, p.Animating())

	require.NoError(t, p.Set(time.Now(), []any{0.2}))
	assert.False(t, p.Animating())
}

func TestAnimationReachesFinalValue(t *testing.T) {
	p, err := New("x", []value.Tag{value.TagDouble}, 0, []value.Value{value.Double(0)}, nil, Options{})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Animate(start, time.Second, AnimateOptions{To: []float64{1}, Easing: easing.Linear, Mode: easing.ModeIn}))

	prev := -1.0
	for i := 0; i < 10; i++ {
		now := start.Add(time.Duration(i) * 100 * time.Millisecond)
		p.Advance(now)
		v := p.Values()[0].F
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
	completed := p.Advance(start.Add(2 * time.Second))
	assert.True(t, completed)
	assert.Equal(t, 1.0, p.Values()[0].F)
	assert.False(t, p.Animating())
}

func TestWrongArgCountErrors(t *testing.T) {
	p, err := New("x", []value.Tag{value.TagDouble, value.TagDouble}, 0, []value.Value{value.Double(0), value.Double(0)}, nil, Options{})
	require.NoError(t, err)
	err = p.Set(time.Now(), []any{1.0})
	require.Error(t, err)
}

func TestStaticPrefixNeverChanges(t *testing.T) {
	p, err := New("x", []value.Tag{value.TagString, value.TagDouble}, 1,
		[]value.Value{value.String("fixed"), value.Double(0)}, nil, Options{})
	require.NoError(t, err)
	require.NoError(t, p.Set(time.Now(), []any{1.0}))
	all := p.All()
	assert.Equal(t, "fixed", all[0].S)
	assert.Equal(t, 1.0, all[1].F)
}
