package easing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointsExactAcrossFamilies(t *testing.T) {
	for _, name := range []Name{Linear, Sine, Quadratic, Cubic, Quartic, Quintic, Exponential, Elastic, Random} {
		for _, mode := range []Mode{ModeIn, ModeOut, ModeInOut, ModeMirror} {
			fn := Resolve(name, mode)
			assert.Equal(t, 0.0, Value(fn, name, 0, 1, 0), "%s/%s p=0", name, mode)
			assert.Equal(t, 1.0, Value(fn, name, 0, 1, 1), "%s/%s p=1", name, mode)
		}
	}
}

func TestUnknownEasingFallsBackToLinear(t *testing.T) {
	fn := Resolve(Name("not-a-family"), ModeIn)
	assert.Equal(t, 0.5, Value(fn, Linear, 0, 1, 0.5))
}

func TestMirrorReturnsTowardStart(t *testing.T) {
	fn := Resolve(Linear, ModeMirror)
	// Mirror plays forward then backward: at p just under 1 we should be
	// back near `from`, not `to`.
	v := Value(fn, Linear, 0, 10, 0.99)
	assert.Less(t, v, 1.0)
}

func TestLinearMonotonicIncrease(t *testing.T) {
	fn := Resolve(Linear, ModeIn)
	prev := -1.0
	for i := 0; i <= 10; i++ {
		p := float64(i) / 10
		v := Value(fn, Linear, 0, 1, p)
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}
