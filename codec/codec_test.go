package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMIDIToOSCToMIDIRoundTrip(t *testing.T) {
	cases := []MIDIEvent{
		{Kind: KindNoteOn, Data: []int{1, 60, 100}},
		{Kind: KindControlChange, Data: []int{2, 7, 64}},
		{Kind: KindProgramChange, Data: []int{3, 12}},
		{Kind: KindPitchBend, Data: []int{4, 8192}},
		{Kind: KindChannelPressure, Data: []int{5, 50}},
		{Kind: KindKeyPressure, Data: []int{6, 61, 70}},
		{Kind: KindStart},
		{Kind: KindContinue},
		{Kind: KindStop},
	}
	for _, ev := range cases {
		osc, ok := MIDIToOSC(ev)
		assert.True(t, ok, "%+v", ev)
		back, ok := OSCToMIDI(osc)
		assert.True(t, ok, "%+v", osc)
		assert.Equal(t, ev.Kind, back.Kind)
		assert.Equal(t, ev.Data, back.Data)
	}
}

func TestNoteOffForcesZeroVelocity(t *testing.T) {
	osc, ok := MIDIToOSC(MIDIEvent{Kind: KindNoteOff, Data: []int{1, 60, 99}})
	assert.True(t, ok)
	assert.Equal(t, []any{1, 60, 0}, osc.Args)
}

func TestUnknownAddressReturnsFalse(t *testing.T) {
	_, ok := OSCToMIDI(OSCMessage{Address: "/unknown"})
	assert.False(t, ok)
}

func TestOSCToMIDIToOSCRoundTrip(t *testing.T) {
	osc := OSCMessage{Address: "/control_change", Args: []any{1, 7, 100}}
	ev, ok := OSCToMIDI(osc)
	assert.True(t, ok)
	back, ok := MIDIToOSC(ev)
	assert.True(t, ok)
	assert.Equal(t, osc.Address, back.Address)
	assert.Equal(t, osc.Args, back.Args)
}
