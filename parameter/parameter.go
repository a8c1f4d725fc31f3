// Package parameter implements the typed value slot and its animation
// state (spec §3 "Parameter", §3 "Animation descriptor", §4.2).
//
// A Parameter knows nothing about the Module that owns it or the Engine:
// it calls back through a small Notifier interface supplied at
// construction, the same decoupling the teacher corpus uses to keep leaf
// packages free of the mutually-recursive core types.
package parameter

import (
	"fmt"
	"sync"
	"time"

	"github.com/jean-emmanuel/mentat/easing"
	"github.com/jean-emmanuel/mentat/value"
)

// Notifier is implemented by the owning Module. It is called whenever a
// Parameter's current values change, so the owner can enqueue itself on
// the engine's dirty-module queue (spec §4.1 step 6).
type Notifier interface {
	NotifyDirty(p *Parameter)
}

// TransformFunc is a user-supplied value-transform applied before
// type-casting (spec §3).
type TransformFunc func(args []any) []any

// Animation holds the running state of an in-flight animate() call (spec
// §3 "Animation descriptor").
type Animation struct {
	StartNanos   int64 // UnixNano of the start time passed to Animate
	DurationNanos int64
	From         []float64
	To           []float64
	Easing       easing.Name
	Mode         easing.Mode
	Loop         bool

	fn easing.Func
}

// Parameter is a typed, named value slot, optionally mirrored to an
// outbound address (spec §3).
type Parameter struct {
	mu sync.Mutex

	name       string
	typetags   []value.Tag // full tag sequence: static prefix + dynamic suffix
	staticLen  int         // number of leading static values, never changed at runtime
	address    string      // outbound OSC address; "" means internal-only
	transform  TransformFunc
	metadata   map[string]any

	current  []value.Value
	lastSent []value.Value
	dirty    bool
	dirtyAt  time.Time
	forced   bool // a ForceSend set is waiting to be published

	anim *Animation

	notifier Notifier
}

// Options configures New.
type Options struct {
	Address   string
	Transform TransformFunc
	Metadata  map[string]any
}

// New constructs a Parameter named name with the given typetag sequence,
// where staticLen of the leading tags are "static" (set once, from
// defaults, never changed at runtime — spec §3). defaults must have the
// same length as tags.
func New(name string, tags []value.Tag, staticLen int, defaults []value.Value, notifier Notifier, opts Options) (*Parameter, error) {
	if len(defaults) != len(tags) {
		return nil, fmt.Errorf("parameter %q: %d typetags but %d defaults", name, len(tags), len(defaults))
	}
	p := &Parameter{
		name:      name,
		typetags:  append([]value.Tag(nil), tags...),
		staticLen: staticLen,
		address:   opts.Address,
		transform: opts.Transform,
		metadata:  opts.Metadata,
		current:   append([]value.Value(nil), defaults...),
		lastSent:  make([]value.Value, len(defaults)),
		notifier:  notifier,
	}
	copy(p.lastSent, p.current)
	return p, nil
}

// Name returns the parameter's name, unique within its owning module.
func (p *Parameter) Name() string { return p.name }

// Address returns the outbound OSC address, or "" if internal-only.
func (p *Parameter) Address() string { return p.address }

// Typetags returns the full (static+dynamic) typetag sequence.
func (p *Parameter) Typetags() []value.Tag { return append([]value.Tag(nil), p.typetags...) }

// DynamicTags returns just the dynamic (settable) suffix of the typetag
// sequence.
func (p *Parameter) DynamicTags() []value.Tag { return append([]value.Tag(nil), p.typetags[p.staticLen:]...) }

// Metadata returns the parameter's metadata bag.
func (p *Parameter) Metadata() map[string]any { return p.metadata }

// Values returns a copy of the current dynamic values.
func (p *Parameter) Values() []value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]value.Value(nil), p.current[p.staticLen:]...)
}

// All returns a copy of all current values, static prefix included.
func (p *Parameter) All() []value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]value.Value(nil), p.current...)
}

// LastSent returns a copy of the dynamic values as of the last outbound
// emission.
func (p *Parameter) LastSent() []value.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]value.Value(nil), p.lastSent[p.staticLen:]...)
}

// Dirty reports whether the parameter has pending changes not yet
// published (spec §3 invariant).
func (p *Parameter) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// DirtyAt returns the wall-clock timestamp the parameter became dirty.
func (p *Parameter) DirtyAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirtyAt
}

// setOpts collects the options of one Set call: whether a running
// animation is kept, and whether a send is forced.
type setOpts struct {
	preserveAnimation bool
	force             bool
}

// SetOption configures a single Set call.
type SetOption func(*setOpts)

// PreserveAnimation keeps a running animation alive across this Set call,
// overriding the default cancel-on-set behavior (spec §4.2 tie-break).
func PreserveAnimation() SetOption { return func(o *setOpts) { o.preserveAnimation = true } }

// ForceSend marks the parameter dirty even if the cast values are
// unchanged, so the next drain emits regardless (spec §3: "unless
// force_send is explicitly requested").
func ForceSend() SetOption { return func(o *setOpts) { o.force = true } }

// Set type-casts args per the dynamic typetag sequence and, if the result
// differs from the current dynamic values (or ForceSend is given), marks
// the parameter dirty at now and notifies its owner (spec §4.2).
func (p *Parameter) Set(now time.Time, args []any, opts ...SetOption) error {
	var o setOpts
	for _, fn := range opts {
		fn(&o)
	}

	if p.transform != nil {
		args = p.transform(args)
	}

	dyn := p.typetags[p.staticLen:]
	if len(args) != len(dyn) {
		return fmt.Errorf("parameter %q: expected %d argument(s), got %d", p.name, len(dyn), len(args))
	}

	cast := make([]value.Value, len(dyn))
	for i, tag := range dyn {
		v, err := value.Cast(tag, args[i])
		if err != nil {
			return fmt.Errorf("parameter %q arg %d: %w", p.name, i, err)
		}
		cast[i] = v
	}

	p.mu.Lock()
	changed := o.force
	if !changed {
		for i, v := range cast {
			if !p.current[p.staticLen+i].Equal(v) {
				changed = true
				break
			}
		}
	}
	if changed {
		copy(p.current[p.staticLen:], cast)
		p.dirty = true
		p.dirtyAt = now
		if o.force {
			p.forced = true
		}
	}
	if !o.preserveAnimation {
		p.anim = nil
	}
	notifier := p.notifier
	p.mu.Unlock()

	if changed && notifier != nil {
		notifier.NotifyDirty(p)
	}
	return nil
}

// MarkSent copies current into lastSent and clears the dirty flag. Called
// by the engine after emitting an outbound message (spec §4.1 step 6).
func (p *Parameter) MarkSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(p.lastSent, p.current)
	p.dirty = false
	p.forced = false
}

// HasChangedSinceSent reports whether current differs from lastSent over
// the dynamic suffix (spec §8: emit iff current != last_sent), or whether
// a ForceSend set is still waiting to be published.
func (p *Parameter) HasChangedSinceSent() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.forced {
		return true
	}
	for i := p.staticLen; i < len(p.current); i++ {
		if !p.current[i].Equal(p.lastSent[i]) {
			return true
		}
	}
	return false
}

// AnimateOptions configures Animate.
type AnimateOptions struct {
	From   []float64 // nil borrows current (single-value parameters only)
	To     []float64 // nil borrows current (single-value parameters only)
	Easing easing.Name
	Mode   easing.Mode
	Loop   bool
}

// Animate starts (or replaces) an animation running from From to To over
// duration, using easing Name/Mode (spec §4.2). duration is always a
// concrete time.Duration: converting a beats-denominated amount using the
// tempo in effect at animation start is the caller's responsibility, since
// a bare Parameter has no notion of engine tempo (see Engine.Animate).
func (p *Parameter) Animate(now time.Time, duration time.Duration, opts AnimateOptions) error {
	dyn := p.typetags[p.staticLen:]
	if len(dyn) != 1 && (opts.From == nil || opts.To == nil) {
		return fmt.Errorf("parameter %q: animate() without explicit from/to requires a single-value parameter", p.name)
	}

	p.mu.Lock()
	from := opts.From
	if from == nil {
		from = []float64{numericOf(p.current[p.staticLen])}
	}
	to := opts.To
	if to == nil {
		to = []float64{numericOf(p.current[p.staticLen])}
	}
	if len(from) != len(dyn) || len(to) != len(dyn) {
		p.mu.Unlock()
		return fmt.Errorf("parameter %q: animate() arity mismatch", p.name)
	}

	anim := &Animation{
		StartNanos:    now.UnixNano(),
		DurationNanos: duration.Nanoseconds(),
		From:          from,
		To:            to,
		Easing:        opts.Easing,
		Mode:          opts.Mode,
		Loop:          opts.Loop,
		fn:            easing.Resolve(opts.Easing, opts.Mode),
	}
	p.anim = anim
	p.mu.Unlock()
	return nil
}

// Animating reports whether an animation is currently running.
func (p *Parameter) Animating() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.anim != nil
}

// Advance steps a running animation forward to `now`, applying the eased
// interpolated values via the same dirtying path as Set. It returns true
// if the animation completed (and was not looping, so was removed).
func (p *Parameter) Advance(now time.Time) (completed bool) {
	p.mu.Lock()
	anim := p.anim
	if anim == nil {
		p.mu.Unlock()
		return false
	}
	if anim.DurationNanos <= 0 {
		anim.DurationNanos = 1
	}
	elapsed := now.UnixNano() - anim.StartNanos
	progress := float64(elapsed) / float64(anim.DurationNanos)

	dyn := p.typetags[p.staticLen:]
	cast := make([]value.Value, len(dyn))
	changed := false
	for i, tag := range dyn {
		nv := easing.Value(anim.fn, anim.Easing, anim.From[i], anim.To[i], progress)
		v, err := value.Cast(tag, nv)
		if err != nil {
			continue
		}
		cast[i] = v
		if !p.current[p.staticLen+i].Equal(v) {
			changed = true
		}
	}
	if changed {
		copy(p.current[p.staticLen:], cast)
		p.dirty = true
		p.dirtyAt = now
	}

	done := progress >= 1
	if done {
		if anim.Loop {
			anim.StartNanos = now.UnixNano()
		} else {
			p.anim = nil
		}
	}
	notifier := p.notifier
	p.mu.Unlock()

	if changed && notifier != nil {
		notifier.NotifyDirty(p)
	}
	return done && !anim.Loop
}

func numericOf(v value.Value) float64 {
	switch v.Tag {
	case value.TagInt, value.TagLong, value.TagChar:
		return float64(v.I)
	default:
		return v.F
	}
}
