// Package midibridge is a reference transport.MIDITransport implementation
// over gitlab.com/gomidi/midi/v2. Each module name gets its own entry, but
// every entry is bound to the driver's first existing output and input
// ports; no named virtual ports are created.
package midibridge

import (
	"context"
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/jean-emmanuel/mentat/codec"
	"github.com/jean-emmanuel/mentat/transport"
)

// Bridge manages one virtual MIDI port per module name.
type Bridge struct {
	mu    sync.Mutex
	outs  map[string]drivers.Out
	sends map[string]func(midi.Message) error

	inbound chan transport.InboundMIDI
	stops   []func()
}

// New returns an empty Bridge; ports are created lazily via OpenPort.
func New() *Bridge {
	return &Bridge{
		outs:    make(map[string]drivers.Out),
		sends:   make(map[string]func(midi.Message) error),
		inbound: make(chan transport.InboundMIDI, 256),
	}
}

// OpenPort registers name and binds it to the driver's first existing
// output port (index 0) and, when one is available, its first input port.
// name is used only as the key for Emit and as the Dest of inbound events;
// no named virtual port is created, so every module shares the same
// hardware ports.
func (b *Bridge) OpenPort(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.outs[name]; ok {
		return nil
	}

	out, err := midi.OutPort(0)
	if err != nil {
		return fmt.Errorf("midibridge: open out port %q: %w", name, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return fmt.Errorf("midibridge: send setup %q: %w", name, err)
	}
	b.outs[name] = out
	b.sends[name] = send

	in, err := midi.InPort(0)
	if err == nil {
		stop, listenErr := midi.ListenTo(in, func(msg midi.Message, _ int32) {
			ev, ok := decodeMIDI(msg)
			if !ok {
				return
			}
			select {
			case b.inbound <- transport.InboundMIDI{Event: ev, Dest: name}:
			default:
			}
		})
		if listenErr == nil {
			b.stops = append(b.stops, stop)
		}
	}
	return nil
}

// Receive blocks for the next inbound MIDI event.
func (b *Bridge) Receive(ctx context.Context) (transport.InboundMIDI, error) {
	select {
	case <-ctx.Done():
		return transport.InboundMIDI{}, ctx.Err()
	case ev := <-b.inbound:
		return ev, nil
	}
}

// Emit sends ev on the named port. It returns transport.ErrWouldBlock if
// the port isn't open yet, which the engine retries next tick (spec §5);
// a failure of the underlying send is returned wrapped, not as
// ErrWouldBlock.
func (b *Bridge) Emit(port string, ev codec.MIDIEvent) error {
	b.mu.Lock()
	send, ok := b.sends[port]
	b.mu.Unlock()
	if !ok {
		return transport.ErrWouldBlock
	}
	msg, ok := encodeMIDI(ev)
	if !ok {
		return fmt.Errorf("midibridge: unencodable event kind %q", ev.Kind)
	}
	if err := send(msg); err != nil {
		return fmt.Errorf("midibridge: send on %q: %w", port, err)
	}
	return nil
}

// Sync is a no-op for gomidi/v2's synchronous Send; present to satisfy
// transport.MIDITransport for transports that do buffer.
func (b *Bridge) Sync(port string) error { return nil }

// Close releases every opened port and listener.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, stop := range b.stops {
		stop()
	}
	for _, out := range b.outs {
		out.Close()
	}
	return nil
}

func encodeMIDI(ev codec.MIDIEvent) (midi.Message, bool) {
	switch ev.Kind {
	case codec.KindNoteOn:
		if len(ev.Data) < 3 {
			return nil, false
		}
		return midi.NoteOn(uint8(ev.Data[0]), uint8(ev.Data[1]), uint8(ev.Data[2])), true
	case codec.KindNoteOff:
		if len(ev.Data) < 2 {
			return nil, false
		}
		return midi.NoteOff(uint8(ev.Data[0]), uint8(ev.Data[1])), true
	case codec.KindControlChange:
		if len(ev.Data) < 3 {
			return nil, false
		}
		return midi.ControlChange(uint8(ev.Data[0]), uint8(ev.Data[1]), uint8(ev.Data[2])), true
	case codec.KindProgramChange:
		if len(ev.Data) < 2 {
			return nil, false
		}
		return midi.ProgramChange(uint8(ev.Data[0]), uint8(ev.Data[1])), true
	case codec.KindPitchBend:
		if len(ev.Data) < 2 {
			return nil, false
		}
		return midi.Pitchbend(uint8(ev.Data[0]), int16(ev.Data[1])), true
	case codec.KindChannelPressure:
		if len(ev.Data) < 2 {
			return nil, false
		}
		return midi.AfterTouch(uint8(ev.Data[0]), uint8(ev.Data[1])), true
	case codec.KindKeyPressure:
		if len(ev.Data) < 3 {
			return nil, false
		}
		return midi.PolyAfterTouch(uint8(ev.Data[0]), uint8(ev.Data[1]), uint8(ev.Data[2])), true
	case codec.KindSysEx:
		return midi.SysEx(ev.Sysex), true
	case codec.KindStart:
		return midi.Start(), true
	case codec.KindContinue:
		return midi.Continue(), true
	case codec.KindStop:
		return midi.Stop(), true
	default:
		return nil, false
	}
}

func decodeMIDI(msg midi.Message) (codec.MIDIEvent, bool) {
	var ch, key, vel, cc, val, ctrl uint8
	var abs int16
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return codec.MIDIEvent{Kind: codec.KindNoteOn, Data: []int{int(ch), int(key), int(vel)}}, true
	case msg.GetNoteOff(&ch, &key, &vel):
		return codec.MIDIEvent{Kind: codec.KindNoteOff, Data: []int{int(ch), int(key), int(vel)}}, true
	case msg.GetControlChange(&ch, &ctrl, &val):
		return codec.MIDIEvent{Kind: codec.KindControlChange, Data: []int{int(ch), int(ctrl), int(val)}}, true
	case msg.GetProgramChange(&ch, &cc):
		return codec.MIDIEvent{Kind: codec.KindProgramChange, Data: []int{int(ch), int(cc)}}, true
	case msg.GetPitchBend(&ch, &abs, nil):
		return codec.MIDIEvent{Kind: codec.KindPitchBend, Data: []int{int(ch), int(abs)}}, true
	default:
		return codec.MIDIEvent{}, false
	}
}
