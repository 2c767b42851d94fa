package podradio

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// PacketCodec parses and serializes one wire packet (§6.2). It is an
// external collaborator: CRC computation and bit framing are explicit
// spec Non-goals for podradio itself, so the engine only ever talks to
// this interface.
type PacketCodec interface {
	// Parse decodes a single wire packet. The caller
	// (parseReceivedFrame) has already stripped the leading RSSI/reserved bytes per §6.2
	// before calling Parse.
	Parse(data []byte) (RadioPacket, error)
	// Encode serializes p for transmission.
	Encode(p RadioPacket) []byte
}

// defaultPacketCodec is a minimal reference framing: a 4-byte address,
// a 1-byte type tag, a 1-byte sequence, a 2-byte big-endian body
// length, the body, and a trailing 4-byte CRC32 checksum over
// everything before it. It exists so podradio is runnable end to end
// without a production PacketCodec; real deployments talking to actual
// hardware are expected to supply their own, since the real over-the-air
// framing (and any CRC variant the hardware requires) is outside this
// spec's scope.
type defaultPacketCodec struct{}

// NewDefaultPacketCodec returns the reference PacketCodec described in
// defaultPacketCodec's doc comment.
func NewDefaultPacketCodec() PacketCodec {
	return defaultPacketCodec{}
}

func (defaultPacketCodec) Encode(p RadioPacket) []byte {
	buf := make([]byte, 0, 8+len(p.Body)+4)
	addr := make([]byte, 4)
	binary.BigEndian.PutUint32(addr, uint32(p.Address))
	buf = append(buf, addr...)
	buf = append(buf, byte(p.Type), byte(p.Sequence))
	lenBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(lenBuf, uint16(len(p.Body)))
	buf = append(buf, lenBuf...)
	buf = append(buf, p.Body...)

	sum := crc32.ChecksumIEEE(buf)
	sumBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(sumBuf, sum)
	return append(buf, sumBuf...)
}

func (defaultPacketCodec) Parse(data []byte) (RadioPacket, error) {
	const headerLen = 8
	const crcLen = 4
	if len(data) < headerLen+crcLen {
		return RadioPacket{}, fmt.Errorf("podradio: packet too short: %d bytes", len(data))
	}

	payload := data[:len(data)-crcLen]
	wantSum := binary.BigEndian.Uint32(data[len(data)-crcLen:])
	gotSum := crc32.ChecksumIEEE(payload)
	if wantSum != gotSum {
		return RadioPacket{}, fmt.Errorf("podradio: packet checksum mismatch: want %08x got %08x", wantSum, gotSum)
	}

	addr := Address(binary.BigEndian.Uint32(payload[0:4]))
	typ := PacketType(payload[4])
	seq := PacketSequence(payload[5])
	bodyLen := int(binary.BigEndian.Uint16(payload[6:8]))
	body := payload[headerLen:]
	if len(body) != bodyLen {
		return RadioPacket{}, fmt.Errorf("podradio: packet body length mismatch: header says %d, have %d", bodyLen, len(body))
	}

	return RadioPacket{
		Address:  addr,
		Type:     typ,
		Sequence: seq,
		Body:     append([]byte(nil), body...),
	}, nil
}

// parseReceivedFrame strips the leading RSSI and reserved bytes from a
// raw bridge reception per §6.2 ("first byte is RSSI, second byte is
// discarded") and parses what remains. It returns the parsed packet and
// the RSSI, or an error if the frame is too short or fails to parse.
func parseReceivedFrame(codec PacketCodec, data []byte) (RadioPacket, int, error) {
	if len(data) <= 2 {
		return RadioPacket{}, 0, fmt.Errorf("podradio: received frame too short: %d bytes", len(data))
	}
	rssi := int(data[0])
	p, err := codec.Parse(data[2:])
	if err != nil {
		return RadioPacket{}, rssi, err
	}
	return p, rssi, nil
}
