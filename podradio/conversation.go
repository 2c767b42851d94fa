package podradio

import (
	"time"

	"github.com/go-kit/kit/log"
)

// Engine orchestrates a full request/response conversation using the
// packet exchange (§2 item 5, §4.2), holding the sequence counters and
// last-received-packet state for its whole lifetime across
// conversations (§3 "Lifecycle"). It is not safe for concurrent use:
// per §5, the radio and all of Engine's mutable state belong solely to
// whichever goroutine is driving it — in production that is always the
// Worker.
type Engine struct {
	bridge       RadioBridge
	packetCodec  PacketCodec
	messageCodec MessageCodec

	localAddress Address

	packetSequence  PacketSequence
	messageSequence MessageSequence

	lastReceivedPacket *RadioPacket
	lastReceiveAt      time.Time

	logs      loggers
	packetLog *PacketLog

	now   func() time.Time
	sleep func(time.Duration)
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine)

// WithClock overrides Engine's notion of "now", for deterministic
// tests of the wake-up and timeout rules (§4.1 steps 1-2, 12).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithSleep overrides Engine's reconnect backoff sleep function, so
// tests don't actually wait out reconnect delays.
func WithSleep(sleep func(time.Duration)) EngineOption {
	return func(e *Engine) { e.sleep = sleep }
}

// WithPacketLog attaches a daily-rotated packet trace (packetlog.go)
// to the engine. A nil log (the default) disables tracing entirely.
func WithPacketLog(pl *PacketLog) EngineOption {
	return func(e *Engine) { e.packetLog = pl }
}

// NewEngine constructs an Engine seeded with the given local address
// and initial sequence counters (§3 "Lifecycle": counters are never
// reset except by explicit construction).
func NewEngine(localAddress Address, initialMessageSequence MessageSequence, initialPacketSequence PacketSequence,
	bridge RadioBridge, packetCodec PacketCodec, messageCodec MessageCodec, logger log.Logger, opts ...EngineOption) *Engine {

	e := &Engine{
		bridge:          bridge,
		packetCodec:     packetCodec,
		messageCodec:    messageCodec,
		localAddress:    localAddress,
		packetSequence:  initialPacketSequence,
		messageSequence: initialMessageSequence,
		logs:            newLoggers(logger),
		now:             time.Now,
		sleep:           time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PacketSequence returns the engine's current packet sequence counter.
func (e *Engine) PacketSequence() PacketSequence { return e.packetSequence }

// MessageSequence returns the engine's current message sequence
// counter.
func (e *Engine) MessageSequence() MessageSequence { return e.messageSequence }

// interimAck builds the ACK sent mid-reassembly to solicit the next
// continuation packet (§4.3).
func (e *Engine) interimAck(ackAddressOverride *Address, seq PacketSequence) RadioPacket {
	responseAddr := e.localAddress
	if ackAddressOverride != nil {
		responseAddr = *ackAddressOverride
	}
	return newACKPacket(e.localAddress, responseAddr, seq)
}

// finalAck builds the closing ACK sent once the conversation has
// succeeded (§4.3): its body names the override address, or the
// sentinel zero address when there is no override.
func (e *Engine) finalAck(ackAddressOverride *Address, seq PacketSequence) RadioPacket {
	responseAddr := Address(0)
	if ackAddressOverride != nil {
		responseAddr = *ackAddressOverride
	}
	return newACKPacket(e.localAddress, responseAddr, seq)
}

// sendAndGet drives one full exchange from an outgoing command to an
// assembled pod response (§4.2), grounded directly on
// protocol_radio.py's _send_and_get. Both documented quirks from §9 are
// preserved on purpose:
//
//   - when len(packets) == 2, the middle-fragment loop is skipped and
//     the engine proceeds straight from the first exchange to the
//     terminal POD exchange;
//   - in the double-take branch, the first of the two exchanges of the
//     first fragment primes the pod: its reply only sets the sequence
//     the same fragment is resent with, and is then overwritten by the
//     second exchange's reply, from which the rest of the conversation
//     chains.
func (e *Engine) sendAndGet(req ConversationRequest) (LogicalMessage, error) {
	if req.TxPower != nil {
		if err := e.bridge.SetTxPower(*req.TxPower); err != nil {
			if rerr := e.reconnect(); rerr != nil {
				return LogicalMessage{}, rerr
			}
		}
	}

	packets, err := e.messageCodec.Fragment(req.MessageBody, req.MessageAddress, e.localAddress,
		e.messageSequence, e.packetSequence)
	if err != nil {
		return LogicalMessage{}, err
	}
	if err := validateFragments(packets); err != nil {
		return LogicalMessage{}, err
	}

	logInfo(e.logs.message, "event", "send", "fragments", len(packets))

	var received RadioPacket

	if len(packets) > 1 {
		if req.DoubleTake {
			received, err = e.exchangePacket(packets[0].WithSequence(e.packetSequence), PacketTypeACK, exchangeTimeout, midExchangeParams)
			if err != nil {
				return LogicalMessage{}, err
			}
			e.packetSequence = NextPacketSequence(received.Sequence)
		}

		received, err = e.exchangePacket(packets[0].WithSequence(e.packetSequence), PacketTypeACK, exchangeTimeout, midExchangeParams)
		if err != nil {
			return LogicalMessage{}, err
		}
		e.packetSequence = NextPacketSequence(received.Sequence)

		if len(packets) > 2 {
			for _, packet := range packets[1 : len(packets)-1] {
				received, err = e.exchangePacket(packet.WithSequence(e.packetSequence), PacketTypeACK, exchangeTimeout, midExchangeParams)
				if err != nil {
					return LogicalMessage{}, err
				}
				e.packetSequence = NextPacketSequence(received.Sequence)
			}
		}
	}

	received, err = e.exchangePacket(packets[len(packets)-1].WithSequence(e.packetSequence), PacketTypePOD, exchangeTimeout, midExchangeParams)
	if err != nil {
		return LogicalMessage{}, err
	}
	e.packetSequence = NextPacketSequence(received.Sequence)

	reassembler := e.messageCodec.NewReassembler()
	for !reassembler.AddPacket(received) {
		// e.packetSequence already equals (received.Sequence+1)%32
		// from the update above (or from the previous iteration);
		// used directly so the counter tracks the most recently
		// received packet at every step, per the packet-sequence
		// invariant (§3, §8 property 1) rather than only after the
		// first POD packet.
		ack := e.interimAck(req.AckAddressOverride, e.packetSequence)
		received, err = e.exchangePacket(ack, PacketTypeCON, exchangeTimeout, midExchangeParams)
		if err != nil {
			return LogicalMessage{}, err
		}
		e.packetSequence = NextPacketSequence(received.Sequence)
	}

	response := reassembler.Message()
	logInfo(e.logs.message, "event", "recv", "message", response.String())
	e.messageSequence = NextMessageSequence(response.Sequence)

	return response, nil
}
