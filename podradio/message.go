package podradio

// MessageCodec fragments an outgoing logical message into an ordered
// list of wire packets, and builds reassemblers that turn an incoming
// sequence of packets back into a logical message (§2 item 3). Like
// PacketCodec, it is an external collaborator: podradio's Non-goals
// exclude the wire format itself.
type MessageCodec interface {
	// Fragment splits body into an ordered, non-empty list of
	// RadioPackets addressed to messageAddress, carrying
	// messageSequence, sent from localAddress, with the first
	// fragment's sequence number set to firstPacketSequence (each
	// subsequent fragment's sequence is left for the caller to
	// assign as the conversation progresses — only the first
	// fragment's sequence is meaningful at fragmentation time, per
	// §4.2 step 2/3).
	Fragment(body []byte, messageAddress, localAddress Address, messageSequence MessageSequence, firstPacketSequence PacketSequence) ([]RadioPacket, error)
	// NewReassembler returns a fresh MessageReassembler for one
	// incoming logical message.
	NewReassembler() MessageReassembler
}

// MessageReassembler accumulates RadioPackets into one LogicalMessage.
type MessageReassembler interface {
	// AddPacket feeds one received packet (a POD or CON packet) into
	// the reassembly. It returns true once the logical message is
	// complete; Message then returns the assembled result.
	AddPacket(p RadioPacket) (complete bool)
	// Message returns the assembled message. Only meaningful after
	// AddPacket has returned true.
	Message() LogicalMessage
}

// defaultMessageCodec fragments a body into fixed-size chunks and
// reassembles by concatenation. Each fragment's body, outbound and
// inbound alike, is prefixed with two bytes: a continuation flag (0 =
// final fragment, 1 = more to come), so the reassembler can recognize
// completion without a separate length field, and the message
// sequence. This is a reference
// implementation only: the real wire format belongs to whatever
// MessageCodec a production deployment supplies (§2 item 3, §6.2).
type defaultMessageCodec struct {
	maxFragmentBody int
}

// NewDefaultMessageCodec returns a MessageCodec that fragments message
// bodies into chunks of at most maxFragmentBody bytes each.
func NewDefaultMessageCodec(maxFragmentBody int) MessageCodec {
	if maxFragmentBody <= 0 {
		maxFragmentBody = 28
	}
	return &defaultMessageCodec{maxFragmentBody: maxFragmentBody}
}

func (c *defaultMessageCodec) Fragment(body []byte, messageAddress, localAddress Address, messageSequence MessageSequence, firstPacketSequence PacketSequence) ([]RadioPacket, error) {
	chunks := chunk(body, c.maxFragmentBody)
	if len(chunks) == 0 {
		chunks = [][]byte{{}}
	}

	packets := make([]RadioPacket, len(chunks))
	for i, c := range chunks {
		more := byte(0)
		if i < len(chunks)-1 {
			more = 1
		}
		fragBody := append([]byte{more, byte(messageSequence)}, c...)
		packets[i] = RadioPacket{
			Address:  messageAddress,
			Type:     PacketTypePDM,
			Sequence: firstPacketSequence,
			Body:     fragBody,
		}
	}
	return packets, nil
}

func chunk(body []byte, size int) [][]byte {
	if len(body) == 0 {
		return nil
	}
	var out [][]byte
	for len(body) > 0 {
		n := size
		if n > len(body) {
			n = len(body)
		}
		out = append(out, body[:n])
		body = body[n:]
	}
	return out
}

func (c *defaultMessageCodec) NewReassembler() MessageReassembler {
	return &defaultReassembler{}
}

type defaultReassembler struct {
	started  bool
	address  Address
	sequence MessageSequence
	body     []byte
	done     bool
}

func (r *defaultReassembler) AddPacket(p RadioPacket) bool {
	if r.done {
		return true
	}
	if len(p.Body) < 2 {
		// Malformed fragment: treat as a (harmless) no-op rather than
		// panic; the packet exchange layer is responsible for
		// validating address/sequence/type before handing a packet to
		// the reassembler.
		return r.done
	}
	more := p.Body[0]
	seq := MessageSequence(p.Body[1])
	payload := p.Body[2:]

	if !r.started {
		r.started = true
		r.address = p.Address
		r.sequence = seq
	}
	r.body = append(r.body, payload...)
	if more == 0 {
		r.done = true
	}
	return r.done
}

func (r *defaultReassembler) Message() LogicalMessage {
	return LogicalMessage{
		Sequence: r.sequence,
		Address:  r.address,
		Body:     r.body,
	}
}

// validateFragments is a small sanity check used by the engine:
// MessageCodec.Fragment must never return an empty list (§3, "non-empty
// list").
func validateFragments(packets []RadioPacket) error {
	if len(packets) == 0 {
		return ErrNoFragments
	}
	return nil
}
