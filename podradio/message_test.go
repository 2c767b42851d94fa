package podradio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultMessageCodecFragmentsAndReassembles(t *testing.T) {
	codec := NewDefaultMessageCodec(4)
	body := []byte("a long message body")

	packets, err := codec.Fragment(body, Address(2), Address(1), 5, 0)
	require.NoError(t, err)
	require.Greater(t, len(packets), 1)

	for _, p := range packets {
		require.Equal(t, PacketTypePDM, p.Type)
		require.Equal(t, Address(2), p.Address)
	}

	reassembler := codec.NewReassembler()
	// Simulate what the engine does with a pod echoing the fragments
	// back: only the body bytes matter to the reassembler, not the
	// original PDM framing.
	for i, p := range packets {
		more := byte(0)
		if i < len(packets)-1 {
			more = 1
		}
		echoed := RadioPacket{Address: Address(1), Type: PacketTypePOD, Sequence: p.Sequence, Body: append([]byte{more, byte(5)}, p.Body[2:]...)}
		done := reassembler.AddPacket(echoed)
		require.Equal(t, i == len(packets)-1, done)
	}

	msg := reassembler.Message()
	require.Equal(t, body, msg.Body)
	require.Equal(t, MessageSequence(5), msg.Sequence)
}

func TestDefaultMessageCodecSingleFragmentForShortBody(t *testing.T) {
	codec := NewDefaultMessageCodec(31)
	packets, err := codec.Fragment([]byte("short"), Address(2), Address(1), 0, 7)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	require.Equal(t, PacketSequence(7), packets[0].Sequence)
}

func TestDefaultMessageCodecEmptyBodyProducesOneFragment(t *testing.T) {
	codec := NewDefaultMessageCodec(31)
	packets, err := codec.Fragment(nil, Address(2), Address(1), 0, 0)
	require.NoError(t, err)
	require.Len(t, packets, 1)
}

func TestValidateFragmentsRejectsEmptyList(t *testing.T) {
	err := validateFragments(nil)
	require.ErrorIs(t, err, ErrNoFragments)
}
