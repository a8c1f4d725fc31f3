// Package transport defines the interfaces the engine core consumes from
// its external collaborators (spec §6): OSC servers/clients, a MIDI
// sequencer facility, and a state snapshot store. The core never imports
// a concrete OSC/MIDI library directly — only these interfaces — so the
// wire codec and sequencer API stay swappable, per spec §1's scope
// boundary.
package transport

import (
	"context"
	"time"

	"github.com/jean-emmanuel/mentat/codec"
)

// Protocol identifies an OSC transport kind (spec §3 Module: "protocol
// tag ∈ {osc, osc.tcp, osc.unix, midi, nil}").
type Protocol string

// Protocols.
const (
	ProtoOSC     Protocol = "osc"      // UDP
	ProtoOSCTCP  Protocol = "osc.tcp"
	ProtoOSCUnix Protocol = "osc.unix"
	ProtoMIDI    Protocol = "midi"
	ProtoNil     Protocol = "nil"
)

// Source describes where an inbound message came from (spec §6: "src
// discloses protocol, port, host, and URL").
type Source struct {
	Protocol Protocol
	Port     string // numeric port, socket path, or host:port
	Host     string
	URL      string
}

// InboundOSC is one received OSC datagram, decoded into address/args/
// typetags plus its Source (spec §6).
type InboundOSC struct {
	Address  string
	Args     []any
	Typetags string
	Src      Source
}

// OSCTransport is the interface an OSC server/client pair must satisfy
// for the engine to route through it (spec §6 "Transports").
type OSCTransport interface {
	// Protocol and Port identify this transport for the engine's
	// (protocol, port-or-socket-or-URL) module-resolution key (spec §4.3).
	Protocol() Protocol
	Port() string

	// Receive blocks until an inbound message arrives or ctx is done.
	Receive(ctx context.Context) (InboundOSC, error)

	// Send transmits an outbound OSC message. Implementations should
	// return promptly on a congested connection rather than blocking
	// indefinitely (spec §4.1 step 8: "never blocks ... beyond a short
	// drain attempt").
	Send(address string, args []any) error

	// Close releases any underlying sockets.
	Close() error
}

// InboundMIDI is one received MIDI event plus the named virtual
// destination port it arrived on (spec §6: "a blocking receive producing
// events with (type, data, dest) fields").
type InboundMIDI struct {
	Event codec.MIDIEvent
	Dest  string
}

// MIDITransport is the interface a MIDI sequencer facility must satisfy
// (spec §6 "MIDI").
type MIDITransport interface {
	// OpenPort creates or reuses a named virtual port for a module.
	OpenPort(name string) error

	// Receive blocks for the next inbound event or until ctx is done.
	Receive(ctx context.Context) (InboundMIDI, error)

	// Emit sends ev on the named port, non-blocking; if the underlying
	// buffer is full the call should return ErrWouldBlock so the engine
	// can retry next tick without losing the event (spec §5 "Suspension
	// points": "the engine marks the drain pending and retries next
	// tick without losing events already accepted").
	Emit(port string, ev codec.MIDIEvent) error

	// Sync flushes any buffered output for port.
	Sync(port string) error

	Close() error
}

// ErrWouldBlock is returned by MIDITransport.Emit when the outbound
// buffer is full (spec §5 transient I/O).
var ErrWouldBlock = wouldBlockError{}

type wouldBlockError struct{}

func (wouldBlockError) Error() string { return "transport: would block" }

// StateStore is the interface the core consumes for user-triggered
// snapshots (spec §6 "State files"). File I/O itself is an external
// collaborator (spec §1); the core only calls Save/Load.
type StateStore interface {
	// Save persists entries for the named snapshot. Save must be atomic
	// from the caller's point of view (spec §6: "the file is replaced").
	Save(name string, entries []Entry) error

	// Load returns the entries of a previously saved snapshot.
	// Implementations must be all-or-nothing: a parse failure must leave
	// whatever the caller already has untouched (spec §6).
	Load(name string) ([]Entry, error)
}

// Entry is one non-comment element of a snapshot (spec §6): a path of
// name segments (module path then parameter name) plus the parameter's
// flattened values.
type Entry struct {
	Path   []string
	Values []any
}

// Restarter is the external collaborator that performs process re-exec
// after the engine tears down transports (spec §6 "Restart contract").
type Restarter interface {
	// Restart is called once the engine has finished teardown. markerEnv
	// is the environment variable name the engine wants set before
	// re-exec so a fresh process can detect `restarted`.
	Restart(markerEnv string) error
}

// Watcher is the external filesystem watcher collaborator that only
// signals "restart requested" (spec §5).
type Watcher interface {
	// RestartRequested returns a channel that receives a value whenever
	// the watched files changed enough to warrant a restart.
	RestartRequested() <-chan struct{}
	Close() error
}

// Clock abstracts wall-clock access purely for transports that need to
// timestamp outbound sends for the engine's timestamp-ordered flush
// (spec §4.1 step 8).
type Clock interface {
	Now() time.Time
}
