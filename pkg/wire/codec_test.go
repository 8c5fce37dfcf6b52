package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*Packet{
		NewStart(12345, 4, KindMessage),
		NewAnswer(12345, 4, KindFile),
		NewFinishRequest(1, 4, KindFile),
		NewFinishConfirm(1, 4, KindMessage),
		NewSendData(0, 4, []byte("hello world")),
		NewSendFile(0, 4, 5, []byte("alpha-content")),
		NewConfirmData(0, 4),
		NewConfirmFile(0, 4),
		NewResend(7, 4, 1),
		NewKeepAlive(99, 4),
		NewKeepAliveReply(100, 4),
	}

	for _, want := range cases {
		raw := Encode(want)
		got, result := Decode(raw)
		require.Equal(t, DecodeOK, result, "type=%s", want.Type)
		assert.Equal(t, want.SequenceNumber, got.SequenceNumber)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Window, got.Window)
		assert.Equal(t, want.Flags, got.Flags)
		assert.Equal(t, want.NameLength, got.NameLength)
		assert.Equal(t, want.Payload, got.Payload)
	}
}

func TestHeaderSizeIsFourteenBytes(t *testing.T) {
	p := NewConfirmData(1, 1)
	raw := Encode(p)
	assert.Len(t, raw, HeaderSize)
}

func TestCRCCoverageExcludesChecksumField(t *testing.T) {
	p := NewSendData(1, 4, []byte("payload"))
	raw := Encode(p)

	// checksum occupies bytes [5:9] and is excluded from its own coverage:
	// flipping a bit there leaves the recomputed CRC unchanged, so the stored
	// value no longer matches it and decode must report the packet as corrupt.
	original := raw[5]
	raw[5] ^= 0xFF
	_, result := Decode(raw)
	assert.Equal(t, DecodeCRCFailed, result, "mutated checksum byte should invalidate the packet")
	raw[5] = original
}

func TestCRCCoverageDetectsMutationOfCoveredBytes(t *testing.T) {
	for _, tc := range []struct {
		name string
		pkt  *Packet
	}{
		{"no-payload type", NewConfirmData(5, 3)},
		{"payload-bearing type", NewSendData(5, 3, []byte("xyz"))},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw := Encode(tc.pkt)
			// Mutate the window field (always covered, never zero width).
			raw[9] ^= 0xFF
			_, result := Decode(raw)
			assert.Equal(t, DecodeCRCFailed, result)
		})
	}
}

func TestCRCCoverageDetectsPayloadMutation(t *testing.T) {
	pkt := NewSendData(5, 3, []byte("abcdef"))
	raw := Encode(pkt)
	raw[len(raw)-1] ^= 0xFF
	_, result := Decode(raw)
	assert.Equal(t, DecodeCRCFailed, result)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	pkt := NewConfirmData(1, 1)
	raw := Encode(pkt)
	raw[4] = 200 // not in 0..9
	_, result := Decode(raw)
	assert.Equal(t, DecodeMalformed, result)
}

func TestDecodeRejectsShortDatagram(t *testing.T) {
	_, result := Decode([]byte{1, 2, 3})
	assert.Equal(t, DecodeMalformed, result)
}

func TestDecodeNeverPanics(t *testing.T) {
	inputs := [][]byte{
		nil,
		{},
		make([]byte, HeaderSize-1),
		make([]byte, HeaderSize),
		append(make([]byte, HeaderSize), 0xFF, 0xFF),
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			Decode(in)
		})
	}
}

func TestDecodeRejectsTrailingBytesOnNoPayloadType(t *testing.T) {
	raw := Encode(NewConfirmData(1, 1))
	raw = append(raw, 0x01)
	// CRC will also now mismatch bytes, but length-mismatch must be caught
	// as malformed before CRC is even consulted for these types.
	_, result := Decode(raw)
	assert.Equal(t, DecodeMalformed, result)
}

func TestSendFileNameLengthBoundsChecked(t *testing.T) {
	pkt := NewSendFile(1, 4, 100, []byte("short"))
	raw := Encode(pkt)
	_, result := Decode(raw)
	assert.Equal(t, DecodeMalformed, result)
}

func TestFinishFlagEncodingIsPreservedOnWire(t *testing.T) {
	assert.Equal(t, uint8(1), NewFinishRequest(1, 1, KindFile).Flags)
	assert.Equal(t, uint8(3), NewFinishRequest(1, 1, KindMessage).Flags)
	assert.Equal(t, uint8(2), NewFinishConfirm(1, 1, KindFile).Flags)
	assert.Equal(t, uint8(0), NewFinishConfirm(1, 1, KindMessage).Flags)
}
