package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDrainLimiterAllowsUpToMax(t *testing.T) {
	l := NewDrainLimiter(time.Minute, 2)

	assert.True(t, l.Allow("osc:9000"))
	assert.True(t, l.Allow("osc:9000"))
	assert.False(t, l.Allow("osc:9000"))
}

func TestDrainLimiterCategoriesAreIndependent(t *testing.T) {
	l := NewDrainLimiter(time.Minute, 1)

	assert.True(t, l.Allow("osc:9000"))
	assert.True(t, l.Allow("midi:out-1"))
	assert.False(t, l.Allow("osc:9000"))
}

func TestNilDrainLimiterAlwaysAllows(t *testing.T) {
	var l *DrainLimiter
	assert.True(t, l.Allow("anything"))
}
