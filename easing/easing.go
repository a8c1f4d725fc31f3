// Package easing implements the interpolation function families used by
// Parameter animations (spec §4.2): linear, sine, quadratic, cubic,
// quartic, quintic, exponential, random, and elastic, each with in/out/
// inout/mirror variants derived from the base "in" curve.
package easing

import (
	"math"
	"math/rand/v2"
)

// Name identifies an easing family. Unknown names fall back to Linear
// (spec §7, "unknown easing falls back to linear").
type Name string

// Family names.
const (
	Linear      Name = "linear"
	Sine        Name = "sine"
	Quadratic   Name = "quadratic"
	Cubic       Name = "cubic"
	Quartic     Name = "quartic"
	Quintic     Name = "quintic"
	Exponential Name = "exponential"
	Random      Name = "random"
	Elastic     Name = "elastic"
)

// Mode selects how the base "in" curve of a family is transformed.
type Mode string

// Modes, per §3's animation descriptor.
const (
	ModeIn          Mode = "in"
	ModeOut         Mode = "out"
	ModeInOut       Mode = "inout"
	ModeMirror      Mode = "mirror"
	ModeMirrorIn    Mode = "mirror-in"
	ModeMirrorOut   Mode = "mirror-out"
	ModeMirrorInOut Mode = "mirror-inout"
)

// Func maps progress p in [0,1] to eased progress, not necessarily in
// [0,1] for overshoot families like Elastic.
type Func func(p float64) float64

var baseCurves = map[Name]Func{
	Linear:      func(p float64) float64 { return p },
	Sine:        func(p float64) float64 { return 1 - math.Cos(p*math.Pi/2) },
	Quadratic:   func(p float64) float64 { return p * p },
	Cubic:       func(p float64) float64 { return p * p * p },
	Quartic:     func(p float64) float64 { return p * p * p * p },
	Quintic:     func(p float64) float64 { return p * p * p * p * p },
	Exponential: expoIn,
	Random:      func(p float64) float64 { return p }, // progress mapping is identity; value jitter applied in Value
	Elastic:     elasticIn,
}

func expoIn(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return math.Pow(2, 10*(p-1))
}

func elasticIn(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	const period = 0.3
	s := period / 4
	p -= 1
	return -math.Pow(2, 10*p) * math.Sin((p-s)*(2*math.Pi)/period)
}

// Resolve returns the progress-shaping function for name/mode, falling
// back to Linear/ModeIn for unrecognized inputs (§7 user-input error:
// "unknown easing falls back to linear").
func Resolve(name Name, mode Mode) Func {
	base, ok := baseCurves[name]
	if !ok {
		base = baseCurves[Linear]
	}
	switch mode {
	case ModeOut:
		return outOf(base)
	case ModeInOut:
		return inOutOf(base)
	case ModeMirror, ModeMirrorInOut:
		return mirrorOf(inOutOf(base))
	case ModeMirrorIn:
		return mirrorOf(base)
	case ModeMirrorOut:
		return mirrorOf(outOf(base))
	case ModeIn:
		fallthrough
	default:
		return base
	}
}

func outOf(base Func) Func {
	return func(p float64) float64 { return 1 - base(1-p) }
}

func inOutOf(base Func) Func {
	return func(p float64) float64 {
		if p < 0.5 {
			return base(p*2) / 2
		}
		return 1 - base((1-p)*2)/2
	}
}

// mirrorOf plays the wrapped curve forward over [0,0.5] and backward over
// [0.5,1], landing back at progress 0 at p=1 (a there-and-back animation).
func mirrorOf(base Func) Func {
	return func(p float64) float64 {
		if p < 0.5 {
			return base(p * 2)
		}
		return base((1 - p) * 2)
	}
}

// Value applies an eased interpolation between from and to at progress p,
// using fn's progress mapping. Endpoints are always exact (p<=0 returns
// from, p>=1 returns to), satisfying the "random" family's requirement
// that intermediate values may be non-deterministic but endpoints are
// exact.
func Value(fn Func, name Name, from, to float64, p float64) float64 {
	if p <= 0 {
		return from
	}
	if p >= 1 {
		return to
	}
	eased := fn(p)
	base := from + (to-from)*eased
	if name == Random {
		// Jitter within the remaining span, without ever overshooting past
		// `to` or landing before `from`'s direction of travel.
		span := to - from
		jitter := (rand.Float64() - 0.5) * span * 0.1
		lo, hi := math.Min(from, to), math.Max(from, to)
		return math.Max(lo, math.Min(hi, base+jitter))
	}
	return base
}
