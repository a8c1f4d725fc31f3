package mentat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jean-emmanuel/mentat/codec"
	"github.com/jean-emmanuel/mentat/engine"
	"github.com/jean-emmanuel/mentat/eventbus"
	"github.com/jean-emmanuel/mentat/mlog"
	"github.com/jean-emmanuel/mentat/parameter"
	"github.com/jean-emmanuel/mentat/scene"
	"github.com/jean-emmanuel/mentat/statestore/jsonfile"
	"github.com/jean-emmanuel/mentat/timer"
	"github.com/jean-emmanuel/mentat/transport"
)

// instance guards the "exactly one Engine exists process-wide" invariant
// (spec §3).
var (
	instanceMu sync.Mutex
	instance   *Engine
)

type outboundMsg struct {
	destination string // "protocol:port", used for drain-limiter categorization
	protocol    transport.Protocol
	port        string
	address     string
	args        []any
	enqueuedAt  time.Time
}

// Engine is the single-writer runtime core (spec §4.1). It embeds its own
// root Module, so engine methods and Module methods compose naturally
// (the engine's own name is also the root module's name, per spec §4.3's
// "[engine_name, mod_name, ...]" addressing).
type Engine struct {
	*Module

	cfg   Config
	log   *mlog.Logger
	clock *timer.Clock

	scheduler *scene.Scheduler

	tempoMu     sync.RWMutex
	tempo       float64
	cycleLength float64
	tempoMap    timer.TempoMap

	oscTransports map[string]transport.OSCTransport // keyed by protocol+":"+port
	midiTransport transport.MIDITransport
	stateStore    transport.StateStore
	restarter     transport.Restarter
	watcher       transport.Watcher

	inputOSC  chan transport.InboundOSC
	inputMIDI chan transport.InboundMIDI
	dirty     chan *Module
	actions   chan func()
	outbound  chan outboundMsg

	mappingsMu     sync.Mutex
	allMappings    []*Mapping
	allMeta        []*MetaParameter
	mappingsSorted bool

	drainLimiter *engine.DrainLimiter
	dirtyBatcher *engine.DirtyBatcher

	restartRequested int32 // accessed only from the main loop goroutine
	running          bool

	animAccum time.Duration
	lastTick  time.Time
}

// NewEngine constructs the single process-wide Engine (spec §3: "exactly
// one Engine exists process-wide" — config-fatal otherwise). clock may be
// nil to use a real wall-clock anchored at time.Now().
func NewEngine(cfg Config, log *mlog.Logger, clock *timer.Clock) (*Engine, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return nil, NewError(ErrKindConfigFatal, "NewEngine", fmt.Errorf("an Engine already exists in this process"))
	}
	cfg.applyDefaults()
	if log == nil {
		log = mlog.New(nil)
	}
	if clock == nil {
		clock = timer.NewClock(time.Now())
	}

	root, err := NewModule(cfg.Name, transport.ProtoNil, "", nil)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Module:        root,
		cfg:           cfg,
		log:           log.With("engine"),
		clock:         clock,
		tempo:         cfg.Tempo,
		cycleLength:   cfg.CycleLength,
		oscTransports: make(map[string]transport.OSCTransport),
		inputOSC:      make(chan transport.InboundOSC, 256),
		inputMIDI:     make(chan transport.InboundMIDI, 256),
		dirty:         make(chan *Module, 256),
		actions:       make(chan func(), 256),
		outbound:      make(chan outboundMsg, 256),
		drainLimiter:  engine.NewDrainLimiter(cfg.MainLoopPeriod(), 32),
	}
	e.dirtyBatcher = engine.NewDirtyBatcher(32, 50*time.Millisecond, e.logDirtyBatch)
	e.Module.engine = e
	e.tempoMap = timer.TempoMap{{Timestamp: clock.Now(), Tempo: cfg.Tempo, CycleLength: cfg.CycleLength}}
	e.scheduler = scene.New(e, e)

	instance = e
	return e, nil
}

// ReleaseEngine clears the process-wide Engine singleton, for tests that
// construct multiple Engines in the same process.
func ReleaseEngine(e *Engine) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == e {
		instance = nil
	}
	if e.dirtyBatcher != nil {
		_ = e.dirtyBatcher.Close()
	}
}

// RegisterOSCTransport wires an OSC transport keyed by its own
// (protocol, port) for port-based module resolution (spec §4.3).
func (e *Engine) RegisterOSCTransport(t transport.OSCTransport) {
	e.oscTransports[transportKey(t.Protocol(), t.Port())] = t
}

// RegisterMIDITransport wires the engine's single MIDI sequencer
// facility (spec §6 "MIDI").
func (e *Engine) RegisterMIDITransport(t transport.MIDITransport) { e.midiTransport = t }

// SetStateStore wires the snapshot store consumed by Save/Load.
func (e *Engine) SetStateStore(s transport.StateStore) { e.stateStore = s }

// UseJSONFileStore wires the reference jsonfile.Store rooted at dir as
// the engine's StateStore, with its Resolver set to the root module's
// own PathDepth — the module tree is the only thing that actually knows
// where a snapshot row's path ends and its values begin (spec §6,
// DESIGN.md's Open Question decision on the format's path/value
// ambiguity).
func (e *Engine) UseJSONFileStore(dir string) error {
	store, err := jsonfile.New(dir)
	if err != nil {
		return NewError(ErrKindConfigFatal, "UseJSONFileStore", err)
	}
	store.Resolver = e.Module.PathDepth
	e.stateStore = store
	return nil
}

// SetRestarter wires the external restart collaborator (spec §6).
func (e *Engine) SetRestarter(r transport.Restarter) { e.restarter = r }

// SetWatcher wires the external filesystem watcher (spec §6).
func (e *Engine) SetWatcher(w transport.Watcher) { e.watcher = w }

func transportKey(p transport.Protocol, port string) string { return string(p) + ":" + port }

// EnqueueAction implements scene.Enqueuer: it defers fn to run on the
// main loop (spec §4.1 "single-writer model", §4.5 action trampoline).
// Safe to call from any goroutine, including the main loop itself.
func (e *Engine) EnqueueAction(fn func()) {
	select {
	case e.actions <- fn:
	default:
		e.log.Warn("EnqueueAction", fmt.Errorf("action queue full, dropping"))
	}
}

// CurrentTempo implements scene.TempoProvider.
func (e *Engine) CurrentTempo() (bpm, cycleLength float64) {
	e.tempoMu.RLock()
	defer e.tempoMu.RUnlock()
	return e.tempo, e.cycleLength
}

// TempoMap implements scene.TempoProvider.
func (e *Engine) TempoMap() timer.TempoMap {
	e.tempoMu.RLock()
	defer e.tempoMu.RUnlock()
	return append(timer.TempoMap(nil), e.tempoMap...)
}

// Now implements scene.TempoProvider.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// SetTempo changes the engine's tempo, appending a new segment to the
// tempo map and rescaling in-progress beat-mode scene waits (spec §4.5,
// §8 tempo-change property). Must be called from the main loop, or
// wrapped in EnqueueAction otherwise.
func (e *Engine) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	e.tempoMu.Lock()
	old := e.tempo
	e.tempo = bpm
	e.tempoMap = append(e.tempoMap, timer.TempoSegment{Timestamp: e.clock.Now(), Tempo: bpm, CycleLength: e.cycleLength})
	e.tempoMu.Unlock()
	if old != bpm {
		e.scheduler.OnTempoChange(bpm)
	}
}

// FastForward advances virtual time per spec §6 "Fastforward".
func (e *Engine) FastForward(amount float64, mode scene.WaitMode) error {
	bpm, _ := e.CurrentTempo()
	var d time.Duration
	if mode == scene.WaitBeats {
		d = timer.BeatDuration(amount, bpm)
	} else {
		d = time.Duration(amount * float64(time.Second))
	}
	if err := e.clock.BeginFastForward(d); err != nil {
		return NewError(ErrKindUserInput, "FastForward", err)
	}
	return nil
}

// Animate starts (or replaces) an animation on p, converting amount to a
// concrete time.Duration from the engine's current tempo when mode is
// scene.WaitBeats (spec §4.2: "beats multiplies duration by 60/tempo at
// animation start"). A tempo change mid-animation is not retroactively
// applied to an already-running animation's duration (DESIGN.md's Open
// Question decision) — only the scene scheduler's in-flight waits rescale.
func (e *Engine) Animate(p *parameter.Parameter, amount float64, mode scene.WaitMode, opts parameter.AnimateOptions) error {
	var d time.Duration
	if mode == scene.WaitBeats {
		bpm, _ := e.CurrentTempo()
		d = timer.BeatDuration(amount, bpm)
	} else {
		d = time.Duration(amount * float64(time.Second))
	}
	if err := p.Animate(e.clock.Now(), d, opts); err != nil {
		return NewError(ErrKindUserInput, "Animate", err)
	}
	return nil
}

// StartScene starts a scene under name (spec §4.5).
func (e *Engine) StartScene(name string, fn scene.Func) { e.scheduler.Start(name, fn) }

// StopScene stops every scene matching the fnmatch pattern.
func (e *Engine) StopScene(pattern string) error {
	if err := e.scheduler.Stop(pattern); err != nil {
		return NewError(ErrKindUserInput, "StopScene", err)
	}
	return nil
}

// Save snapshots m's (and its submodules') parameter tree to the
// configured StateStore under name (spec §6).
func (e *Engine) Save(name string, m *Module) error {
	if e.stateStore == nil {
		return NewError(ErrKindConfigFatal, "Save", fmt.Errorf("no state store configured"))
	}
	return e.stateStore.Save(name, m.State())
}

// Load restores m's parameter tree from a previously saved snapshot.
// Load is all-or-nothing: a parse failure leaves m untouched (spec §6).
func (e *Engine) Load(name string, m *Module) error {
	if e.stateStore == nil {
		return NewError(ErrKindConfigFatal, "Load", fmt.Errorf("no state store configured"))
	}
	entries, err := e.stateStore.Load(name)
	if err != nil {
		return NewError(ErrKindTransientIO, "Load", err)
	}
	return m.ApplyState(entries)
}

// RequestRestart marks the engine for teardown + re-exec on the next
// tick (spec §6 "Restart contract").
func (e *Engine) RequestRestart() {
	e.EnqueueAction(func() { e.restartRequested = 1 })
	e.Events().Emit(eventbus.EventRestarting)
}

// guardUserCode runs fn, recovering any panic and logging it as a
// user-code fault (spec §7 fourth bucket: "caught at the dispatch
// boundary; logged with traceback; the current tick continues").
func (e *Engine) guardUserCode(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(op, fmt.Errorf("panic: %v", r), mlog.F("recovered", r))
		}
	}()
	fn()
}

func (e *Engine) enqueueDirty(m *Module) {
	select {
	case e.dirty <- m:
	default:
		e.log.Warn("enqueueDirty", fmt.Errorf("dirty queue full, dropping notification for %q", m.name))
	}
	if e.dirtyBatcher != nil {
		_ = e.dirtyBatcher.MarkDirty(context.Background(), strings.Join(m.Path(), "/"))
	}
}

// logDirtyBatch is the DirtyBatcher's flush callback: it coalesces a burst
// of per-parameter dirty notifications into one debug log line per window,
// instead of one line per changed parameter (SPEC_FULL "Microbatched
// dirty-module wakeups"). It is purely diagnostic — the tick's own
// synchronous dirty channel (enqueueDirty/drainDirty) is what actually
// drives step 6's propagation, so this runs off the main loop without
// affecting its single-tick guarantees.
func (e *Engine) logDirtyBatch(mods []engine.DirtyModule) {
	if len(mods) == 0 {
		return
	}
	paths := make([]string, len(mods))
	for i, dm := range mods {
		paths[i] = dm.Path
	}
	e.log.Debug("dirtyBatch", mlog.F("modules", paths))
}

func (e *Engine) registerMapping(mp *Mapping) {
	e.mappingsMu.Lock()
	e.allMappings = append(e.allMappings, mp)
	e.mappingsSorted = false
	e.mappingsMu.Unlock()
	mp.tryFire(e) // initial update, deferred internally if deps missing
	mp.resetFired()
}

func (e *Engine) registerMetaParameter(mp *MetaParameter) {
	e.mappingsMu.Lock()
	e.allMeta = append(e.allMeta, mp)
	e.mappingsMu.Unlock()
	mp.tryFire(e)
	mp.resetFired()
}

func (e *Engine) ensureMappingsSorted() {
	e.mappingsMu.Lock()
	defer e.mappingsMu.Unlock()
	if e.mappingsSorted {
		return
	}
	sortMappings(e.allMappings)
	e.mappingsSorted = true
}

// Run drives the main loop until ctx is cancelled (spec §4.1 "Tick
// procedure"). It is the only goroutine that mutates Module/Parameter
// state directly.
func (e *Engine) Run(ctx context.Context) error {
	readerCtx, cancelReaders := context.WithCancel(ctx)
	defer cancelReaders()
	e.startReaders(readerCtx)

	var restartSignal <-chan struct{}
	if e.watcher != nil {
		restartSignal = e.watcher.RestartRequested()
	}

	e.running = true
	e.Events().Emit(eventbus.EventStarted)
	defer func() {
		e.running = false
		e.Events().Emit(eventbus.EventStopped)
	}()

	e.lastTick = time.Now()
	period := e.cfg.MainLoopPeriod()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Events().Emit(eventbus.EventStopping)
			return ctx.Err()
		case <-restartSignal:
			e.RequestRestart()
		case <-ticker.C:
			e.tick()
			if e.restartRequested != 0 {
				return e.teardownAndRestart()
			}
		}
	}
}

// startReaders launches one goroutine per registered transport, each
// blocking on Receive and forwarding into the engine's bounded input
// queues (spec §5: "one reader per OSC server, pushing into a bounded
// input queue"). Readers exit when ctx is cancelled.
func (e *Engine) startReaders(ctx context.Context) {
	for _, t := range e.oscTransports {
		t := t
		go func() {
			for {
				in, err := t.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					e.log.Warn("oscTransport.Receive", err)
					continue
				}
				e.PushOSC(in)
			}
		}()
	}
	if e.midiTransport != nil {
		go func() {
			for {
				in, err := e.midiTransport.Receive(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					e.log.Warn("midiTransport.Receive", err)
					continue
				}
				e.PushMIDI(in)
			}
		}()
	}
}

// tick performs the 10-step procedure of spec §4.1.
func (e *Engine) tick() {
	now := time.Now()
	elapsed := now.Sub(e.lastTick)
	e.lastTick = now
	e.clock.Advance(elapsed) // steps 1-2: sample current_time, fold in one fast-forward slice

	e.drainOSCInput()  // step 3
	e.drainMIDIInput() // step 4

	e.animAccum += elapsed
	animPeriod := e.cfg.AnimationPeriod()
	if e.animAccum >= animPeriod { // step 5
		e.animAccum = 0
		e.advanceAnimations(e.Module)
	}

	e.drainDirty() // step 6
	e.drainActions() // step 7
	e.flushOutbound() // step 8
}

func (e *Engine) drainOSCInput() {
	for {
		select {
		case in := <-e.inputOSC:
			e.routeOSC(in)
		default:
			return
		}
	}
}

func (e *Engine) drainMIDIInput() {
	for {
		select {
		case in := <-e.inputMIDI:
			e.routeMIDI(in)
		default:
			return
		}
	}
}

// routeOSC implements spec §4.3's routing order: (1) receiving module's
// route hook may veto everything; (2) the generic control API; (3) the
// active route's own dispatch.
func (e *Engine) routeOSC(in transport.InboundOSC) {
	mod := e.moduleForSource(in.Src)
	msg := RouteMessage{Protocol: transport.ProtoOSC, Address: in.Address, Args: in.Args, Src: in.Src}

	if mod.runRoute(msg) {
		return
	}
	if e.dispatchGenericAPI(in.Address, in.Args) {
		return
	}
	e.guardUserCode("route.active", func() {
		if mod.route != nil {
			mod.route(msg)
		}
	})
}

func (e *Engine) routeMIDI(in transport.InboundMIDI) {
	osc, ok := codec.MIDIToOSC(in.Event)
	if !ok {
		return
	}
	e.routeOSC(transport.InboundOSC{
		Address: osc.Address,
		Args:    osc.Args,
		Src:     transport.Source{Protocol: transport.ProtoMIDI, Port: in.Dest},
	})
}

func (e *Engine) moduleForSource(src transport.Source) *Module {
	key := transportKey(src.Protocol, src.Port)
	var found *Module
	e.walk(e.Module, func(m *Module) bool {
		if transportKey(m.Protocol(), m.Port()) == key {
			found = m
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	return e.Module
}

func (e *Engine) walk(m *Module, visit func(*Module) bool) {
	if !visit(m) {
		return
	}
	for _, name := range m.Children() {
		child, _ := m.Child(name)
		e.walk(child, visit)
	}
}

// dispatchGenericAPI implements the generic OSC control surface: a
// message at "/<engine_name>/<mod>/.../<method_or_parameter>" resolves
// into the module tree and assigns a parameter (spec §4.3, §8 scenario
// 6). It reports whether the address resolved.
func (e *Engine) dispatchGenericAPI(address string, args []any) bool {
	segs := strings.Split(strings.Trim(address, "/"), "/")
	if len(segs) < 2 || segs[0] != e.Name() {
		return false
	}
	modPath := segs[1 : len(segs)-1]
	paramName := segs[len(segs)-1]

	mod, err := e.Resolve(modPath)
	if err != nil {
		return false
	}
	p, ok := mod.Param(paramName)
	if !ok {
		return false
	}
	if err := p.Set(e.clock.Now(), args); err != nil {
		e.log.Error("dispatchGenericAPI", err, mlog.F("address", address))
	}
	return true
}

func (e *Engine) advanceAnimations(m *Module) {
	now := e.clock.Now()
	for _, name := range m.Params() {
		p, _ := m.Param(name)
		if p.Animating() {
			p.Advance(now)
		}
	}
	for _, name := range m.Children() {
		child, _ := m.Child(name)
		e.advanceAnimations(child)
	}
}

// drainDirty implements spec §4.1 step 6 / §4.4: for each dirty
// parameter, emit an outbound message iff it changed, then propagate to
// any mapping/meta-parameter whose sources (or, for a mapping, whose
// condition parameter) include a parameter that changed. Mappings fired
// this way may enqueue more parameter changes, which join the same
// drain (spec: "drained FIFO" within the tick).
//
// A module is reprocessed every time it is dequeued, even if it was
// already processed earlier in this same drain: a module-level dedup
// would be wrong here, since a mapping fired from an earlier dequeue can
// dirty another parameter on a module already considered "done", and that
// dirty notification re-enqueues the same module. Skipping it on dedup
// would drop that parameter's outbound emission and MarkSent for the rest
// of the tick (spec §8 scenario 3). Per-parameter Dirty()/MarkSent() plus
// each mapping/meta-parameter's own per-tick fired-bit already guarantee
// both termination and at-most-once emission per parameter, so
// reprocessing an already-clean module is just a cheap no-op scan.
func (e *Engine) drainDirty() {
	e.ensureMappingsSorted()

	changed := map[*parameter.Parameter]bool{}
	process := func(m *Module) {
		names := m.Params()
		names = append(names, m.MetaParams()...)
		for _, name := range names {
			p, _ := m.Param(name)
			if !p.Dirty() {
				continue
			}
			if p.HasChangedSinceSent() {
				e.enqueueOutbound(m, p)
				m.Events().Emit(eventbus.EventParameterChanged, p)
				changed[p] = true
			}
			p.MarkSent()
		}
	}
	// touched reports whether any of paths (resolved relative to owner)
	// names a parameter that changed during this drain.
	touched := func(owner *Module, paths []string) bool {
		for _, path := range paths {
			if p, err := e.resolveParam(owner, path); err == nil && changed[p] {
				return true
			}
		}
		return false
	}

	for {
		select {
		case m := <-e.dirty:
			process(m)
		default:
			e.mappingsMu.Lock()
			mappings := append([]*Mapping(nil), e.allMappings...)
			metas := append([]*MetaParameter(nil), e.allMeta...)
			e.mappingsMu.Unlock()
			for _, mp := range mappings {
				if touched(mp.owner, append(mp.sourcePaths[:len(mp.sourcePaths):len(mp.sourcePaths)], mp.condition)) {
					mp.tryFire(e)
				}
			}
			for _, mp := range metas {
				if touched(mp.owner, mp.sourcePaths) {
					mp.tryFire(e)
				}
			}
			select {
			case m := <-e.dirty:
				process(m)
				continue
			default:
			}
			for _, mp := range mappings {
				mp.resetFired()
			}
			for _, mp := range metas {
				mp.resetFired()
			}
			return
		}
	}
}

func (e *Engine) enqueueOutbound(m *Module, p *parameter.Parameter) {
	if p.Address() == "" {
		return
	}
	args := make([]any, 0, len(p.Values()))
	for _, v := range p.Values() {
		args = append(args, valueToAny(v))
	}
	select {
	case e.outbound <- outboundMsg{
		destination: transportKey(m.Protocol(), m.Port()),
		protocol:    m.Protocol(),
		port:        m.Port(),
		address:     p.Address(),
		args:        args,
		enqueuedAt:  e.clock.Now(),
	}:
	default:
		e.log.Warn("enqueueOutbound", fmt.Errorf("outbound queue full, dropping %q", p.Address()))
	}
}

func (e *Engine) drainActions() {
	for {
		select {
		case fn := <-e.actions:
			e.guardUserCode("action", fn)
		default:
			return
		}
	}
}

// flushOutbound drains the outbound queue in enqueue-timestamp order
// (spec §4.1 step 8), bounding per-destination send attempts with the
// drain limiter so a congested transport can't stall the tick (spec §5,
// §7 "transient I/O").
func (e *Engine) flushOutbound() {
	var pending []outboundMsg
	for {
		select {
		case m := <-e.outbound:
			pending = append(pending, m)
		default:
			goto drain
		}
	}
drain:
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].enqueuedAt.Before(pending[j].enqueuedAt) })

	for _, m := range pending {
		if !e.drainLimiter.Allow(m.destination) {
			// short drain attempt only (spec §4.1 step 8): requeue for
			// next tick rather than blocking.
			select {
			case e.outbound <- m:
			default:
			}
			continue
		}
		switch m.protocol {
		case transport.ProtoMIDI:
			e.sendMIDI(m)
		default:
			e.sendOSC(m)
		}
	}
}

func (e *Engine) sendOSC(m outboundMsg) {
	t, ok := e.oscTransports[m.destination]
	if !ok {
		return
	}
	if err := t.Send(m.address, m.args); err != nil {
		e.log.Warn("sendOSC", err, mlog.F("address", m.address))
	}
}

func (e *Engine) sendMIDI(m outboundMsg) {
	if e.midiTransport == nil {
		return
	}
	osc := codec.OSCMessage{Address: m.address, Args: m.args}
	ev, ok := codec.OSCToMIDI(osc)
	if !ok {
		return
	}
	if err := e.midiTransport.Emit(m.port, ev); err != nil {
		if err == transport.ErrWouldBlock {
			// drain pending: keep the message for the next tick's flush.
			select {
			case e.outbound <- m:
			default:
			}
			return
		}
		e.log.Warn("sendMIDI", err, mlog.F("port", m.port))
	}
}

func (e *Engine) teardownAndRestart() error {
	e.Events().Emit(eventbus.EventStopping)
	for _, t := range e.oscTransports {
		_ = t.Close()
	}
	if e.midiTransport != nil {
		_ = e.midiTransport.Close()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	if e.dirtyBatcher != nil {
		_ = e.dirtyBatcher.Close()
	}
	if e.restarter == nil {
		return NewError(ErrKindConfigFatal, "teardownAndRestart", fmt.Errorf("restart requested but no Restarter configured"))
	}
	return e.restarter.Restart(e.cfg.RestartEnvVar)
}

// Restarted reports whether markerEnv is set in env, per spec §6's
// restart contract ("on startup, the restarted flag is derived from the
// marker").
func Restarted(env func(string) string, markerEnv string) bool {
	return env(markerEnv) != ""
}

// PushOSC feeds an inbound OSC message to the engine's input queue, the
// entry point an OSCTransport's reader goroutine calls (spec §5 "one
// reader per OSC server, pushing into a bounded input queue").
func (e *Engine) PushOSC(in transport.InboundOSC) {
	select {
	case e.inputOSC <- in:
	default:
	}
}

// PushMIDI feeds an inbound MIDI event to the engine's input queue.
func (e *Engine) PushMIDI(in transport.InboundMIDI) {
	select {
	case e.inputMIDI <- in:
	default:
	}
}
