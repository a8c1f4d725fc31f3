// Package codec implements the one-to-one structural translation between
// OSC addresses and MIDI events described in spec §4.7. It is
// transport-free: OSCMessage and MIDIEvent are plain structs, independent
// of any concrete wire library, so the table itself carries no third-party
// dependency (the transport/* bridges do the real marshaling).
package codec

import "fmt"

// OSCMessage is the codec's view of an inbound/outbound OSC message:
// an address plus a flat argument list. OSCToMIDI applies integer
// coercion to Args itself (spec §4.7: "Integer coercion is applied to OSC
// arguments"); (typetag, value) tuples are expected to already be
// unwrapped to their value by the caller.
type OSCMessage struct {
	Address string
	Args    []any
}

// MIDIEventKind enumerates the MIDI event shapes the codec understands.
type MIDIEventKind string

// Event kinds, per spec §4.7's table.
const (
	KindNoteOn          MIDIEventKind = "note_on"
	KindNoteOff         MIDIEventKind = "note_off"
	KindControlChange   MIDIEventKind = "control_change"
	KindProgramChange   MIDIEventKind = "program_change"
	KindPitchBend       MIDIEventKind = "pitch_bend"
	KindChannelPressure MIDIEventKind = "channel_pressure"
	KindKeyPressure     MIDIEventKind = "key_pressure"
	KindSysEx           MIDIEventKind = "sysex"
	KindStart           MIDIEventKind = "start"
	KindContinue        MIDIEventKind = "continue"
	KindStop            MIDIEventKind = "stop"
)

// MIDIEvent is the codec's view of a MIDI event: a kind plus the
// arguments the table associates with it (spec §4.7's "MIDI args"
// column, generalized to a flat slice so both channel-voice and
// transport/sysex events share one shape).
type MIDIEvent struct {
	Kind MIDIEventKind
	Data []int // channel, note/controller/value/pressure as applicable
	Sysex []byte
}

type tableEntry struct {
	address string
	kind    MIDIEventKind
}

var table = []tableEntry{
	{"/note_on", KindNoteOn},
	{"/note_off", KindNoteOff},
	{"/control_change", KindControlChange},
	{"/program_change", KindProgramChange},
	{"/pitch_bend", KindPitchBend},
	{"/channel_pressure", KindChannelPressure},
	{"/key_pressure", KindKeyPressure},
	{"/sysex", KindSysEx},
	{"/start", KindStart},
	{"/continue", KindContinue},
	{"/stop", KindStop},
}

func addressForKind(kind MIDIEventKind) (string, bool) {
	for _, e := range table {
		if e.kind == kind {
			return e.address, true
		}
	}
	return "", false
}

func kindForAddress(address string) (MIDIEventKind, bool) {
	for _, e := range table {
		if e.address == address {
			return e.kind, true
		}
	}
	return "", false
}

// OSCToMIDI translates an OSC message to a MIDI event per the spec §4.7
// table. It returns false if the address is unknown ("Unknown addresses
// ... return nil").
func OSCToMIDI(msg OSCMessage) (MIDIEvent, bool) {
	kind, ok := kindForAddress(msg.Address)
	if !ok {
		return MIDIEvent{}, false
	}
	args := coerceInts(msg.Args)
	switch kind {
	case KindNoteOn, KindNoteOff:
		if len(args) < 3 {
			return MIDIEvent{}, false
		}
		return MIDIEvent{Kind: kind, Data: []int{args[0], args[1], args[2]}}, true
	case KindControlChange:
		if len(args) < 3 {
			return MIDIEvent{}, false
		}
		return MIDIEvent{Kind: kind, Data: []int{args[0], args[1], args[2]}}, true
	case KindProgramChange, KindPitchBend, KindChannelPressure:
		if len(args) < 2 {
			return MIDIEvent{}, false
		}
		return MIDIEvent{Kind: kind, Data: []int{args[0], args[1]}}, true
	case KindKeyPressure:
		if len(args) < 3 {
			return MIDIEvent{}, false
		}
		return MIDIEvent{Kind: kind, Data: []int{args[0], args[1], args[2]}}, true
	case KindSysEx:
		return MIDIEvent{Kind: kind, Sysex: sysexBytes(msg.Args)}, true
	case KindStart, KindContinue, KindStop:
		return MIDIEvent{Kind: kind}, true
	default:
		return MIDIEvent{}, false
	}
}

// MIDIToOSC translates a MIDI event to its OSC message per the spec §4.7
// table. It returns false for event kinds not in the table.
func MIDIToOSC(ev MIDIEvent) (OSCMessage, bool) {
	address, ok := addressForKind(ev.Kind)
	if !ok {
		return OSCMessage{}, false
	}
	switch ev.Kind {
	case KindNoteOn:
		return OSCMessage{Address: address, Args: intsToAny(ev.Data)}, true
	case KindNoteOff:
		// spec: note_off OSC args are channel, note, 0 — velocity forced to 0.
		if len(ev.Data) < 2 {
			return OSCMessage{}, false
		}
		return OSCMessage{Address: address, Args: []any{ev.Data[0], ev.Data[1], 0}}, true
	case KindControlChange, KindKeyPressure:
		return OSCMessage{Address: address, Args: intsToAny(ev.Data)}, true
	case KindProgramChange, KindPitchBend, KindChannelPressure:
		return OSCMessage{Address: address, Args: intsToAny(ev.Data)}, true
	case KindSysEx:
		return OSCMessage{Address: address, Args: []any{ev.Sysex}}, true
	case KindStart, KindContinue, KindStop:
		return OSCMessage{Address: address, Args: nil}, true
	default:
		return OSCMessage{}, false
	}
}

func coerceInts(args []any) []int {
	out := make([]int, 0, len(args))
	for _, a := range args {
		out = append(out, toInt(a))
	}
	return out
}

func toInt(a any) int {
	switch v := a.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float32:
		return int(v)
	case float64:
		return int(v)
	// (typetag, value) tuples are expected already unwrapped by the
	// caller, per the doc comment on OSCMessage; a stray tuple, like any
	// other non-numeric argument, is coerced to 0.
	default:
		return 0
	}
}

func intsToAny(ints []int) []any {
	out := make([]any, len(ints))
	for i, v := range ints {
		out[i] = v
	}
	return out
}

func sysexBytes(args []any) []byte {
	if len(args) == 0 {
		return nil
	}
	if b, ok := args[0].([]byte); ok {
		return b
	}
	out := make([]byte, 0, len(args))
	for _, a := range args {
		out = append(out, byte(toInt(a)))
	}
	return out
}

// Validate reports an error if address isn't one of the table's known
// addresses, for callers that want to fail fast rather than silently drop.
func Validate(address string) error {
	if _, ok := kindForAddress(address); !ok {
		return fmt.Errorf("codec: unknown OSC address %q", address)
	}
	return nil
}
