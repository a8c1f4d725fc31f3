// Package value implements the tagged-union parameter value type and the
// OSC typetag coercion rules used throughout the engine (spec §3, §4.2).
package value

import (
	"fmt"
	"math"
)

// Tag identifies the kind of a single Value, mirroring an OSC typetag
// letter.
type Tag byte

// Typetag letters, per spec §3.
const (
	TagInt       Tag = 'i' // int32
	TagLong      Tag = 'h' // int64
	TagFloat     Tag = 'f' // float32
	TagDouble    Tag = 'd' // float64
	TagString    Tag = 's'
	TagChar      Tag = 'c'
	TagTrue      Tag = 'T' // bool-true, constant
	TagFalse     Tag = 'F' // bool-false, constant
	TagTime      Tag = 't'
	TagMIDI      Tag = 'm' // midi-blob, 4 raw bytes
	TagNil       Tag = 'N'
	TagImpulse   Tag = 'I'
	TagBlob      Tag = 'b' // raw-blob
)

// Value is a single typed value held by a Parameter slot.
//
// Only one of the fields is meaningful, selected by Tag. Bool-valued tags
// (TagTrue, TagFalse, TagNil, TagImpulse) carry no payload: their value is
// implied entirely by the tag.
type Value struct {
	Tag Tag
	I   int64   // TagInt, TagLong, TagChar
	F   float64 // TagFloat, TagDouble, TagTime
	S   string  // TagString
	B   []byte  // TagMIDI (len 4), TagBlob
}

// Int returns an int-tagged Value.
func Int(i int32) Value { return Value{Tag: TagInt, I: int64(i)} }

// Long returns a long-tagged (64-bit) Value.
func Long(i int64) Value { return Value{Tag: TagLong, I: i} }

// Float returns a float-tagged Value.
func Float(f float32) Value { return Value{Tag: TagFloat, F: float64(f)} }

// Double returns a double-tagged Value.
func Double(f float64) Value { return Value{Tag: TagDouble, F: f} }

// String returns a string-tagged Value.
func String(s string) Value { return Value{Tag: TagString, S: s} }

// Char returns a char-tagged Value.
func Char(c byte) Value { return Value{Tag: TagChar, I: int64(c)} }

// Bool returns TagTrue or TagFalse, matching OSC's constant bool tags.
func Bool(b bool) Value {
	if b {
		return Value{Tag: TagTrue}
	}
	return Value{Tag: TagFalse}
}

// Nil returns a nil-tagged Value.
func Nil() Value { return Value{Tag: TagNil} }

// Impulse returns an impulse-tagged (bang) Value.
func Impulse() Value { return Value{Tag: TagImpulse} }

// MIDI returns a midi-blob-tagged Value. b is copied.
func MIDI(b [4]byte) Value { return Value{Tag: TagMIDI, B: append([]byte(nil), b[:]...)} }

// Blob returns a raw-blob-tagged Value. b is copied.
func Blob(b []byte) Value { return Value{Tag: TagBlob, B: append([]byte(nil), b...)} }

// Bool reports the boolean interpretation of a bool-tagged value: true for
// TagTrue, false for every other tag. It does not panic on non-bool tags.
func (v Value) Bool() bool { return v.Tag == TagTrue }

// Equal reports whether two values are identical in tag and payload. It is
// used for the "current != last_sent" dirty-comparison in §3/§8.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case TagInt, TagLong, TagChar:
		return v.I == o.I
	case TagFloat, TagDouble, TagTime:
		return v.F == o.F
	case TagString:
		return v.S == o.S
	case TagMIDI, TagBlob:
		return bytesEqual(v.B, o.B)
	case TagTrue, TagFalse, TagNil, TagImpulse:
		// Carry no payload.
		return true
	default:
		// Cast's pass-through fallback for unrecognized tags may populate
		// any one of these fields depending on the caller's argument type;
		// compare all of them.
		return v.I == o.I && v.F == o.F && v.S == o.S && bytesEqual(v.B, o.B)
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Tag {
	case TagInt, TagLong, TagChar:
		return fmt.Sprintf("%d", v.I)
	case TagFloat, TagDouble, TagTime:
		return fmt.Sprintf("%g", v.F)
	case TagString:
		return v.S
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagNil:
		return "nil"
	case TagImpulse:
		return "impulse"
	case TagMIDI, TagBlob:
		return fmt.Sprintf("blob[%d]", len(v.B))
	default:
		return "?"
	}
}

// Cast coerces a raw any (as received from a user `set` call or inbound
// OSC argument) into a Value of the given tag, per §4.2:
//
//   - numeric tags round integers, pass floats through
//   - bool tags ignore the argument and return their constant
//   - the string tag formats any argument as text; the blob tag accepts
//     only a []byte and the midi tag only a 4-byte []byte, returning an
//     error for anything else
//   - any other, unrecognized tag passes the argument through unchanged
//     rather than erroring
func Cast(tag Tag, raw any) (Value, error) {
	switch tag {
	case TagTrue, TagFalse:
		// Bool tags ignore their argument entirely; the tag itself is the
		// value.
		return Value{Tag: tag}, nil
	case TagNil:
		return Value{Tag: TagNil}, nil
	case TagImpulse:
		return Value{Tag: TagImpulse}, nil
	case TagInt:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Int(int32(math.Round(f))), nil
	case TagLong:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Long(int64(math.Round(f))), nil
	case TagChar:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Char(byte(int64(math.Round(f)))), nil
	case TagFloat:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Float(float32(f)), nil
	case TagDouble, TagTime:
		f, err := toFloat(raw)
		if err != nil {
			return Value{}, err
		}
		return Value{Tag: tag, F: f}, nil
	case TagString:
		switch t := raw.(type) {
		case string:
			return String(t), nil
		case fmt.Stringer:
			return String(t.String()), nil
		default:
			return String(fmt.Sprintf("%v", raw)), nil
		}
	case TagBlob:
		if b, ok := raw.([]byte); ok {
			return Blob(b), nil
		}
		return Value{}, fmt.Errorf("value: cannot cast %T to blob", raw)
	case TagMIDI:
		if b, ok := raw.([]byte); ok && len(b) == 4 {
			var arr [4]byte
			copy(arr[:], b)
			return MIDI(arr), nil
		}
		return Value{}, fmt.Errorf("value: cannot cast %T to midi-blob", raw)
	default:
		// Unknown typetags pass through rather than erroring (spec §4.2:
		// "unknown tags pass through"): the caller's argument is carried
		// forward, best-effort typed, under the tag as given.
		switch t := raw.(type) {
		case nil:
			return Value{Tag: tag}, nil
		case []byte:
			return Value{Tag: tag, B: append([]byte(nil), t...)}, nil
		case string:
			return Value{Tag: tag, S: t}, nil
		case bool:
			i := int64(0)
			if t {
				i = 1
			}
			return Value{Tag: tag, I: i}, nil
		default:
			if f, err := toFloat(raw); err == nil {
				return Value{Tag: tag, F: f}, nil
			}
			return Value{Tag: tag, S: fmt.Sprintf("%v", raw)}, nil
		}
	}
}

func toFloat(raw any) (float64, error) {
	switch t := raw.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("value: cannot cast %T to numeric", raw)
	}
}
