// Package mentat implements the Module tree, the Mapping/MetaParameter
// derived-value graph, and the Engine main loop (spec §3, §4.1, §4.3,
// §4.4). These three live in one package because they are mutually
// recursive: a Module's route dispatch needs the Engine, a Mapping needs
// to resolve arbitrary module paths via the Engine, and the Engine needs
// to walk the Module tree on every tick — the same reasoning the teacher
// corpus's eventloop package uses to keep its Loop, timerHeap and
// EventTarget usage in one package rather than forcing an artificial
// interface boundary between pieces that already share a lifecycle.
package mentat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jean-emmanuel/mentat/eventbus"
	"github.com/jean-emmanuel/mentat/parameter"
	"github.com/jean-emmanuel/mentat/transport"
	"github.com/jean-emmanuel/mentat/value"
)

// RouteFunc is a user-defined per-module message routing hook (spec §4.3,
// GLOSSARY "Route"). Returning true vetoes all further processing of the
// message (the generic control API and the active route's own hook).
type RouteFunc func(msg RouteMessage) (veto bool)

// RouteMessage is the message a Module's RouteFunc or an active Route's
// dispatch receives (spec §4.3).
type RouteMessage struct {
	Protocol transport.Protocol
	Address  string
	Args     []any
	Src      transport.Source
}

func validateName(name string) error {
	if name == "" {
		return NewError(ErrKindConfigFatal, "validateName", fmt.Errorf("name must not be empty"))
	}
	if strings.ContainsAny(name, "*[") {
		return NewError(ErrKindConfigFatal, "validateName", fmt.Errorf("name %q contains a forbidden character (* or [)", name))
	}
	return nil
}

// Module is a node in the tree rooted at the Engine (spec §3 "Module").
type Module struct {
	name     string
	protocol transport.Protocol
	port     string
	parent   *Module
	engine   *Engine
	emitter  *eventbus.Emitter
	route    RouteFunc

	mu         sync.Mutex
	params     map[string]*parameter.Parameter
	metaParams map[string]*MetaParameter
	children   map[string]*Module
	aliases    map[string]string
}

// NewModule constructs a standalone module node, not yet attached to any
// parent. parent may be nil for a root module (the Engine's own module
// uses this). Call parent.Attach(m) to place it in the tree (spec §3
// invariant: "a submodule's parent set at construction must equal the
// module it is added to").
func NewModule(name string, protocol transport.Protocol, port string, parent *Module) (*Module, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	m := &Module{
		name:       name,
		protocol:   protocol,
		port:       port,
		parent:     parent,
		params:     make(map[string]*parameter.Parameter),
		metaParams: make(map[string]*MetaParameter),
		children:   make(map[string]*Module),
		aliases:    make(map[string]string),
	}
	if parent != nil {
		m.emitter = eventbus.NewChild(parent.emitter)
		m.engine = parent.engine
	} else {
		m.emitter = eventbus.New()
	}
	return m, nil
}

// Attach places child into m's children map under its own name. It is
// fatal (spec §3 invariant, §7 "configuration-fatal") if child's
// constructed parent does not equal m, or if m already has a child with
// that name.
func (m *Module) Attach(child *Module) error {
	if child.parent != m {
		return NewError(ErrKindConfigFatal, "Attach", fmt.Errorf("module %q was constructed with a different parent", child.name))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.children[child.name]; exists {
		return NewError(ErrKindConfigFatal, "Attach", fmt.Errorf("duplicate module name %q", child.name))
	}
	if _, exists := m.params[child.name]; exists {
		return NewError(ErrKindConfigFatal, "Attach", fmt.Errorf("name %q already used by a parameter", child.name))
	}
	child.engine = m.engine
	m.children[child.name] = child
	m.emitter.Emit(eventbus.EventModuleAdded, child)
	return nil
}

// AddModule is a convenience combining NewModule and Attach for the
// common case of building the tree top-down. port, if empty, is
// inherited from m.
func (m *Module) AddModule(name string, protocol transport.Protocol, port string) (*Module, error) {
	child, err := NewModule(name, protocol, port, m)
	if err != nil {
		return nil, err
	}
	if err := m.Attach(child); err != nil {
		return nil, err
	}
	return child, nil
}

// Name returns the module's own name.
func (m *Module) Name() string { return m.name }

// Protocol returns the module's protocol tag.
func (m *Module) Protocol() transport.Protocol { return m.protocol }

// Port returns the module's port, inherited from the nearest ancestor
// that sets one if this module leaves it empty (spec §3: "port inherited
// from parent if absent").
func (m *Module) Port() string {
	for mod := m; mod != nil; mod = mod.parent {
		if mod.port != "" {
			return mod.port
		}
	}
	return ""
}

// Parent returns m's parent module, or nil at the root.
func (m *Module) Parent() *Module { return m.parent }

// Events returns the module's event emitter (spec §4.6).
func (m *Module) Events() *eventbus.Emitter { return m.emitter }

// Path returns the module path from the root (the Engine's own module,
// named after the engine) to m, inclusive (spec §4.3: "[engine_name,
// mod_name, submod_name, …]").
func (m *Module) Path() []string {
	var rev []string
	for mod := m; mod != nil; mod = mod.parent {
		rev = append(rev, mod.name)
	}
	out := make([]string, len(rev))
	for i, n := range rev {
		out[len(rev)-1-i] = n
	}
	return out
}

// SetRoute installs the module's user route hook (spec §4.3). A nil fn
// clears it.
func (m *Module) SetRoute(fn RouteFunc) {
	m.mu.Lock()
	m.route = fn
	m.mu.Unlock()
	m.emitter.Emit(eventbus.EventRouteChanged, m)
}

func (m *Module) runRoute(msg RouteMessage) (veto bool) {
	m.mu.Lock()
	fn := m.route
	m.mu.Unlock()
	if fn == nil || m.engine == nil {
		if fn != nil {
			veto = fn(msg)
		}
		return veto
	}
	m.engine.guardUserCode("route", func() { veto = fn(msg) })
	return veto
}

// Child returns the named submodule, resolving aliases first.
func (m *Module) Child(name string) (*Module, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if real, ok := m.aliases[name]; ok {
		name = real
	}
	c, ok := m.children[name]
	return c, ok
}

// Children returns the names of every direct submodule, sorted.
func (m *Module) Children() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.children))
	for n := range m.children {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Alias registers alt as an alternate name for an existing child.
func (m *Module) Alias(alt, childName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.children[childName]; !ok {
		return NewError(ErrKindUserInput, "Alias", fmt.Errorf("unknown submodule %q", childName))
	}
	m.aliases[alt] = childName
	return nil
}

// Resolve walks path (submodule names only, no trailing parameter name)
// starting from m, returning the module it reaches.
func (m *Module) Resolve(path []string) (*Module, error) {
	mod := m
	for _, seg := range path {
		child, ok := mod.Child(seg)
		if !ok {
			return nil, NewError(ErrKindUserInput, "Resolve", fmt.Errorf("unknown submodule %q", seg))
		}
		mod = child
	}
	return mod, nil
}

// AddParameter creates and owns a new Parameter named name (spec §3
// "Parameter"). Defaults are assigned immediately; per the resolved Open
// Question (DESIGN.md), this does not by itself emit an outbound message
// (mirrors spec §8 scenario 1: "no outbound message emitted" on an
// unchanged set) — callers wanting one should ForceSend on a follow-up
// Set.
func (m *Module) AddParameter(name string, tags []value.Tag, staticLen int, defaults []value.Value, opts parameter.Options) (*parameter.Parameter, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	if _, exists := m.params[name]; exists {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddParameter", fmt.Errorf("duplicate parameter name %q", name))
	}
	if _, exists := m.metaParams[name]; exists {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddParameter", fmt.Errorf("name %q already used by a meta-parameter", name))
	}
	p, err := parameter.New(name, tags, staticLen, defaults, m, opts)
	if err != nil {
		m.mu.Unlock()
		return nil, NewError(ErrKindConfigFatal, "AddParameter", err)
	}
	m.params[name] = p
	m.mu.Unlock()
	m.emitter.Emit(eventbus.EventParameterAdded, p)
	return p, nil
}

// Param returns the named owned Parameter, falling back to a
// meta-parameter's backing Parameter if name isn't a plain parameter
// (spec §3: a Mapping or the generic control API addresses either kind
// the same way — only AddParameter/AddMetaParameter themselves need to
// distinguish them).
func (m *Module) Param(name string) (*parameter.Parameter, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.params[name]; ok {
		return p, true
	}
	if mp, ok := m.metaParams[name]; ok {
		return mp.param, true
	}
	return nil, false
}

// Params returns the names of every owned parameter, sorted. Meta-
// parameters are excluded: their value is derived from other parameters,
// so a State snapshot already captures the information needed to
// reconstruct them, and ApplyState writing straight into a derived slot
// would fight with the next recompute (spec §3, §6).
func (m *Module) Params() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.params))
	for n := range m.params {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MetaParams returns the names of every owned meta-parameter, sorted.
func (m *Module) MetaParams() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.metaParams))
	for n := range m.metaParams {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// NotifyDirty implements parameter.Notifier: it enqueues m on the
// engine's dirty-module queue (spec §4.1 step 6). Modules constructed
// without a live Engine (e.g. in unit tests) simply drop the
// notification, matching a parameter with no owner to publish through.
func (m *Module) NotifyDirty(p *parameter.Parameter) {
	if m.engine != nil {
		m.engine.enqueueDirty(m)
	}
}

// State returns every owned parameter's and submodule's current dynamic
// values as a flat []transport.Entry, formatted per spec §6: one entry per
// parameter, the entry's Path ending in the parameter name and prefixed
// by the chain of submodule names leading to it. Static leading values are
// not included, since they never change and Set does not accept them.
func (m *Module) State() []transport.Entry {
	var out []transport.Entry
	for _, name := range m.Params() {
		p, _ := m.Param(name)
		values := make([]any, len(p.Values()))
		for i, v := range p.Values() {
			values[i] = valueToAny(v)
		}
		out = append(out, transport.Entry{Path: []string{name}, Values: values})
	}
	for _, name := range m.Children() {
		child, _ := m.Child(name)
		for _, e := range child.State() {
			out = append(out, transport.Entry{
				Path:   append([]string{name}, e.Path...),
				Values: e.Values,
			})
		}
	}
	return out
}

// ApplyState restores parameter values from entries previously produced
// by State (spec §6, §8 snapshot round-trip property).
func (m *Module) ApplyState(entries []transport.Entry) error {
	for _, e := range entries {
		if len(e.Path) == 0 {
			return NewError(ErrKindUserInput, "ApplyState", fmt.Errorf("entry has empty path"))
		}
		mod, err := m.Resolve(e.Path[:len(e.Path)-1])
		if err != nil {
			return err
		}
		name := e.Path[len(e.Path)-1]
		p, ok := mod.Param(name)
		if !ok {
			return NewError(ErrKindUserInput, "ApplyState", fmt.Errorf("unknown parameter %q", name))
		}
		now := time.Now()
		if mod.engine != nil {
			now = mod.engine.clock.Now()
		}
		if err := p.Set(now, e.Values, parameter.ForceSend()); err != nil {
			return NewError(ErrKindUserInput, "ApplyState", err)
		}
	}
	return nil
}

// PathDepth reports whether candidate fully resolves to an existing
// parameter path rooted at m, for use as a statestore/jsonfile.PathDepth
// resolver (DESIGN.md's Open Question decision on §6's path/value
// ambiguity): only the module tree knows which names are submodules vs.
// parameter names, so it is best placed to disambiguate a raw JSON row.
func (m *Module) PathDepth(candidate []string) bool {
	if len(candidate) == 0 {
		return false
	}
	mod, err := m.Resolve(candidate[:len(candidate)-1])
	if err != nil {
		return false
	}
	_, ok := mod.Param(candidate[len(candidate)-1])
	return ok
}

func valueToAny(v value.Value) any {
	switch v.Tag {
	case value.TagInt, value.TagLong, value.TagChar:
		return v.I
	case value.TagFloat, value.TagDouble, value.TagTime:
		return v.F
	case value.TagString:
		return v.S
	case value.TagTrue:
		return true
	case value.TagFalse:
		return false
	case value.TagMIDI, value.TagBlob:
		return append([]byte(nil), v.B...)
	default:
		return nil
	}
}

