package podradio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPacketCodecRoundTrip(t *testing.T) {
	codec := NewDefaultPacketCodec()
	p := RadioPacket{Address: 0xdeadbeef, Type: PacketTypeCON, Sequence: 17, Body: []byte("payload")}

	encoded := codec.Encode(p)
	decoded, err := codec.Parse(encoded)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}

func TestDefaultPacketCodecRejectsCorruptedChecksum(t *testing.T) {
	codec := NewDefaultPacketCodec()
	encoded := codec.Encode(RadioPacket{Address: 1, Type: PacketTypeACK, Sequence: 2, Body: []byte("x")})
	encoded[len(encoded)-1] ^= 0xff

	_, err := codec.Parse(encoded)
	require.Error(t, err)
}

func TestDefaultPacketCodecRejectsTruncatedFrame(t *testing.T) {
	codec := NewDefaultPacketCodec()
	_, err := codec.Parse([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestParseReceivedFrameStripsRSSIPrefix(t *testing.T) {
	codec := NewDefaultPacketCodec()
	p := RadioPacket{Address: 5, Type: PacketTypePOD, Sequence: 1, Body: []byte("hi")}
	raw := encodeRaw(codec, p)

	decoded, rssi, err := parseReceivedFrame(codec, raw)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
	require.Equal(t, 0xaa, rssi)
}

func TestParseReceivedFrameRejectsShortFrame(t *testing.T) {
	codec := NewDefaultPacketCodec()
	_, _, err := parseReceivedFrame(codec, []byte{1})
	require.Error(t, err)
}
