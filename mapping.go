package mentat

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jean-emmanuel/mentat/mlog"
	"github.com/jean-emmanuel/mentat/parameter"
	"github.com/jean-emmanuel/mentat/value"
	"golang.org/x/exp/slices"
)

// MappingFunc computes a Mapping's destination values from its sources'
// current primary value, one slice of Set arguments per destination path,
// in the same order as the Mapping's destination paths (spec §3
// "Mapping").
type MappingFunc func(sources []value.Value) [][]any

// Mapping is a directed propagation edge: source-parameter paths to
// destination-parameter paths, with a transform and an optional
// condition (spec §3 "Mapping", §4.4).
type Mapping struct {
	owner       *Module
	sourcePaths []string
	destPaths   []string
	condition   string
	transform   MappingFunc

	mu    sync.Mutex
	fired bool
}

// AddMapping registers a Mapping owned by m. Paths are "/"-separated,
// resolved relative to m (e.g. "x" for an own parameter, "sub/y" for a
// submodule's). If every source already resolves to a live parameter,
// the mapping computes its destinations immediately (spec §4.4 "initial
// update"); otherwise the first compute is deferred until one of its
// sources (or its condition parameter) changes once it resolves.
func (m *Module) AddMapping(sources, destinations []string, transform MappingFunc, condition string) (*Mapping, error) {
	if len(sources) == 0 || len(destinations) == 0 {
		return nil, NewError(ErrKindUserInput, "AddMapping", fmt.Errorf("mapping needs at least one source and one destination"))
	}
	mp := &Mapping{owner: m, sourcePaths: sources, destPaths: destinations, condition: condition, transform: transform}

	if m.engine != nil {
		m.engine.registerMapping(mp)
	}
	return mp, nil
}

func (mp *Mapping) sourceCount() int { return len(mp.sourcePaths) }

// tryFire runs the mapping's transform if it hasn't already fired this
// tick and every source/condition parameter currently resolves (spec
// §4.4: per-tick lock, conditional mappings, initial-update deferral all
// share this one code path).
func (mp *Mapping) tryFire(e *Engine) {
	mp.mu.Lock()
	if mp.fired {
		mp.mu.Unlock()
		return
	}
	mp.fired = true
	mp.mu.Unlock()

	if mp.condition != "" {
		cond, err := e.resolveParam(mp.owner, mp.condition)
		if err == nil {
			if !isTruthy(cond.Values()) {
				return
			}
		}
	}

	sources := make([]value.Value, len(mp.sourcePaths))
	for i, path := range mp.sourcePaths {
		p, err := e.resolveParam(mp.owner, path)
		if err != nil {
			return // dependency still missing: stays deferred
		}
		vals := p.Values()
		if len(vals) > 0 {
			sources[i] = vals[0]
		}
	}

	var outputs [][]any
	e.guardUserCode("mapping", func() { outputs = mp.transform(sources) })
	if len(outputs) != len(mp.destPaths) {
		return
	}
	for i, path := range mp.destPaths {
		dst, err := e.resolveParam(mp.owner, path)
		if err != nil {
			continue
		}
		if err := dst.Set(e.clock.Now(), outputs[i]); err != nil {
			e.log.Error("mapping.Set", err, mlog.F("path", path))
		}
	}
}

func (mp *Mapping) resetFired() {
	mp.mu.Lock()
	mp.fired = false
	mp.mu.Unlock()
}

// MetaParameterFunc computes a meta-parameter's own derived value from
// its sources' primary values.
type MetaParameterFunc func(sources []value.Value) []any

// MetaSetterFunc decomposes a user assignment to a meta-parameter into
// writes on its source parameters.
type MetaSetterFunc func(e *Engine, owner *Module, args []any) error

// MetaParameter is a parameter whose value is a pure function of one or
// more source parameters, plus a user setter that decomposes an
// assignment into source-parameter writes (spec §3 "MetaParameter").
type MetaParameter struct {
	owner       *Module
	name        string
	sourcePaths []string
	getter      MetaParameterFunc
	setter      MetaSetterFunc
	param       *parameter.Parameter // backing slot for the derived value

	mu      sync.Mutex
	fired   bool
	running bool // re-entrancy lock while setter is running
}

// AddMetaParameter registers a derived parameter named name on m, backed
// by tags/defaults/staticLen exactly like AddParameter, but whose value
// is recomputed from sourcePaths via getter whenever one of them changes
// (spec §3, §4.4).
func (m *Module) AddMetaParameter(name string, tags []value.Tag, staticLen int, defaults []value.Value, opts parameter.Options, sourcePaths []string, getter MetaParameterFunc, setter MetaSetterFunc) (*MetaParameter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, exists := m.params[name]; exists {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddMetaParameter", fmt.Errorf("name %q already used by a parameter", name))
	}
	if _, exists := m.metaParams[name]; exists {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddMetaParameter", fmt.Errorf("duplicate meta-parameter name %q", name))
	}
	p, err := parameter.New(name, tags, staticLen, defaults, m, opts)
	if err != nil {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddMetaParameter", err)
	}
	mp := &MetaParameter{owner: m, name: name, sourcePaths: sourcePaths, getter: getter, setter: setter, param: p}
	m.metaParams[name] = mp
	m.mu.Unlock()

	if m.engine != nil {
		m.engine.registerMetaParameter(mp)
	}
	return mp, nil
}

// Param returns the meta-parameter's backing Parameter (read-only from
// the outside; writes should go through Set, which honors the setter's
// re-entrancy lock).
func (mp *MetaParameter) Param() *parameter.Parameter { return mp.param }

// Set decomposes args into source-parameter writes via the registered
// setter, guarded by the re-entrancy lock (spec §3: "a re-entrancy lock
// used while the setter is running" — prevents the resulting source
// writes from recursing back into this same Set call).
func (mp *MetaParameter) Set(e *Engine, args []any) error {
	mp.mu.Lock()
	if mp.running {
		mp.mu.Unlock()
		return nil
	}
	mp.running = true
	mp.mu.Unlock()

	defer func() {
		mp.mu.Lock()
		mp.running = false
		mp.mu.Unlock()
	}()

	if mp.setter == nil {
		return NewError(ErrKindUserInput, "MetaParameter.Set", fmt.Errorf("meta-parameter %q has no setter", mp.name))
	}
	return mp.setter(e, mp.owner, args)
}

func (mp *MetaParameter) tryFire(e *Engine) {
	mp.mu.Lock()
	if mp.fired || mp.running {
		mp.mu.Unlock()
		return
	}
	mp.fired = true
	mp.mu.Unlock()

	sources := make([]value.Value, len(mp.sourcePaths))
	for i, path := range mp.sourcePaths {
		p, err := e.resolveParam(mp.owner, path)
		if err != nil {
			return
		}
		vals := p.Values()
		if len(vals) > 0 {
			sources[i] = vals[0]
		}
	}

	var out []any
	e.guardUserCode("metaparameter", func() { out = mp.getter(sources) })
	if out == nil {
		return
	}
	if err := mp.param.Set(e.clock.Now(), out); err != nil {
		e.log.Error("metaparameter.getter", err, mlog.F("name", mp.name))
	}
}

func (mp *MetaParameter) resetFired() {
	mp.mu.Lock()
	mp.fired = false
	mp.mu.Unlock()
}

func isTruthy(vals []value.Value) bool {
	if len(vals) == 0 {
		return false
	}
	v := vals[0]
	switch v.Tag {
	case value.TagTrue:
		return true
	case value.TagFalse, value.TagNil:
		return false
	case value.TagInt, value.TagLong, value.TagChar:
		return v.I != 0
	case value.TagFloat, value.TagDouble, value.TagTime:
		return v.F != 0
	case value.TagString:
		return v.S != ""
	default:
		return true
	}
}

// resolveParam resolves a "/"-separated path relative to owner into a
// live Parameter.
func (e *Engine) resolveParam(owner *Module, path string) (*parameter.Parameter, error) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	mod, err := owner.Resolve(segs[:len(segs)-1])
	if err != nil {
		return nil, err
	}
	p, ok := mod.Param(segs[len(segs)-1])
	if !ok {
		return nil, NewError(ErrKindUserInput, "resolveParam", fmt.Errorf("unknown parameter %q", path))
	}
	return p, nil
}

// sortMappings orders mappings lazily (spec §4.4 "Mapping ordering"): if
// A's destinations overlap B's sources, A runs first; ties broken by
// fewer sources first. x/exp/slices.SortFunc mirrors the same sort
// helper the pack's catrate package uses internally for its own
// ordering needs.
func sortMappings(mappings []*Mapping) {
	slices.SortFunc(mappings, func(a, b *Mapping) int {
		if overlaps(a.destPaths, b.sourcePaths) {
			return -1
		}
		if overlaps(b.destPaths, a.sourcePaths) {
			return 1
		}
		return a.sourceCount() - b.sourceCount()
	})
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
