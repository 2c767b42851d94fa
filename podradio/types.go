// Package podradio implements the PDM-side half of a half-duplex,
// packet-framed radio dialog with an insulin pod through an external
// radio bridge.
//
// A conversation is one outgoing logical message followed by one
// incoming logical message and a closing acknowledgement drain. Package
// podradio owns the packet-exchange retry/resync state machine, the
// sequence-number arithmetic and the wake/ACK discipline; it treats the
// physical bridge, the wire framing and the message fragmentation as
// external collaborators supplied by the caller (see RadioBridge,
// PacketCodec and MessageCodec).
//
// Logging follows the go-l2tp convention: every long-lived type accepts
// a go-kit log.Logger, and a nil logger disables logging entirely.
package podradio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Address identifies a pod or a PDM on the air.
type Address uint32

func (a Address) String() string {
	return fmt.Sprintf("%08x", uint32(a))
}

// PacketSequence is a 5-bit counter, wrapping modulo 32.
type PacketSequence uint8

// NextPacketSequence returns s+1 mod 32.
func NextPacketSequence(s PacketSequence) PacketSequence {
	return PacketSequence((uint8(s) + 1) % 32)
}

// MessageSequence is a 4-bit counter, wrapping modulo 16.
type MessageSequence uint8

// NextMessageSequence returns s+1 mod 16.
func NextMessageSequence(s MessageSequence) MessageSequence {
	return MessageSequence((uint8(s) + 1) % 16)
}

// PacketType tags a RadioPacket's role in the exchange.
type PacketType int

const (
	// PacketTypePDM marks an outbound command fragment.
	PacketTypePDM PacketType = iota
	// PacketTypePOD marks an inbound response fragment.
	PacketTypePOD
	// PacketTypeACK marks an acknowledgement, interim or final.
	PacketTypeACK
	// PacketTypeCON marks an inbound response continuation fragment.
	PacketTypeCON
)

func (t PacketType) String() string {
	switch t {
	case PacketTypePDM:
		return "PDM"
	case PacketTypePOD:
		return "POD"
	case PacketTypeACK:
		return "ACK"
	case PacketTypeCON:
		return "CON"
	default:
		return fmt.Sprintf("PacketType(%d)", int(t))
	}
}

// RadioPacket is one wire packet: an address, a type tag, a 5-bit
// sequence number and an opaque body. CRC and bit framing belong to a
// PacketCodec, not to this type.
type RadioPacket struct {
	Address  Address
	Type     PacketType
	Sequence PacketSequence
	Body     []byte
}

func (p RadioPacket) String() string {
	return fmt.Sprintf("%s seq=%d addr=%s len=%d", p.Type, p.Sequence, p.Address, len(p.Body))
}

// WithSequence returns a copy of p with its sequence number replaced.
// Resync (§4.1 steps 8-9) rewrites an outbound packet's sequence in
// place of the local counter; re-CRC of the rewritten packet is the
// PacketCodec's concern at encode time, not this type's.
func (p RadioPacket) WithSequence(seq PacketSequence) RadioPacket {
	p.Sequence = seq
	return p
}

// ackBody returns the 32-bit big-endian body of an ACK packet carrying
// the given response address (§4.3).
func ackBody(responseAddress Address) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(responseAddress))
	return b
}

// newACKPacket builds an ACK RadioPacket sent by local with sequence
// seq, whose body names responseAddress as the party the ACK answers
// to.
func newACKPacket(local Address, responseAddress Address, seq PacketSequence) RadioPacket {
	return RadioPacket{
		Address:  local,
		Type:     PacketTypeACK,
		Sequence: seq,
		Body:     ackBody(responseAddress),
	}
}

// LogicalMessage is a complete command or response: a 4-bit message
// sequence, the address it concerns, and an opaque body. It is
// fragmented into an ordered, non-empty list of RadioPackets by a
// MessageCodec, and reassembled from a stream of received RadioPackets
// by a MessageReassembler.
type LogicalMessage struct {
	Sequence MessageSequence
	Address  Address
	Body     []byte
}

func (m LogicalMessage) String() string {
	return fmt.Sprintf("msg seq=%d addr=%s len=%d", m.Sequence, m.Address, len(m.Body))
}

// ConversationRequest describes one conversation for the Worker to run.
type ConversationRequest struct {
	// MessageBody is the opaque payload of the outgoing command. The
	// engine attaches the current message sequence and the local PDM
	// address itself (§4.2 step 2) — the caller supplies only the
	// payload and the destination.
	MessageBody []byte
	// MessageAddress is the address the outgoing message is sent to.
	MessageAddress Address
	// AckAddressOverride, if non-nil, is the address named in the body
	// of every ACK packet of the conversation, in place of the local
	// PDM address (interim ACKs) or zero (the final ACK) (§4.3).
	AckAddressOverride *Address
	// TxPower, if non-nil, is programmed on the bridge before the
	// conversation's first transmission (§4.2 step 1).
	TxPower *int
	// DoubleTake requests that the first outbound fragment be sent
	// twice (§4.2 step 3, §9 "Latent questionable behavior").
	DoubleTake bool
}

// ConversationResult is the outcome of one conversation: exactly one of
// Message or Err is set.
type ConversationResult struct {
	Message LogicalMessage
	Err     error
}

// Sentinel and constructor errors.
var (
	// ErrProtocolAbort is returned when an unexpected packet arrives
	// while sending an ACK or CON packet (§4.1 step 8/9, §7).
	ErrProtocolAbort = errors.New("podradio: aborting message transmission")
	// ErrExchangeTimeout is returned when a packet exchange's overall
	// timeout elapses without a successful round trip (§4.1 step 12).
	ErrExchangeTimeout = errors.New("podradio: exceeded timeout while send and receive")
	// ErrWorkerStopped is returned to a caller whose request arrives
	// after the worker has been asked to shut down.
	ErrWorkerStopped = errors.New("podradio: worker stopped")
	// ErrNoFragments is returned when a MessageCodec fragments a
	// message into zero packets, which is never valid (§3 "non-empty
	// list").
	ErrNoFragments = errors.New("podradio: message codec produced no packets")
)

// ProtocolError reports a protocol-level abort together with the
// offending packet, so callers and logs can see what actually arrived.
type ProtocolError struct {
	Reason   string
	Received RadioPacket
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("podradio: %s (received %s)", e.Reason, e.Received)
}

func (e *ProtocolError) Unwrap() error { return ErrProtocolAbort }
