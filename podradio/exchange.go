package podradio

import "time"

// This file implements the Packet Exchange component (§4.1): one
// (transmit P, receive a packet of expected type T) round trip with
// retries, sequence validation, resync and wake-up, grounded directly
// on protocol_radio.py's _exchange_packets and restructured per
// l2tp/transport.go's retry-counter style (explicit, named failure
// branches rather than a generic retry wrapper).

// exchangePacket performs one packet exchange. sendPacket is passed by
// value and may be rewritten locally during resync (§4.1 step 8/9); the
// caller's copy is unaffected, matching the Engine's subsequent use of
// e.packetSequence (updated here only on resync, and by the caller on
// a successful return) rather than of the returned request packet.
func (e *Engine) exchangePacket(sendPacket RadioPacket, expectedType PacketType, timeout time.Duration, params bridgeParams) (RadioPacket, error) {
	var startTime time.Time

	for startTime.IsZero() || e.now().Sub(startTime) < timeout {
		if e.lastReceiveAt.IsZero() || e.now().Sub(e.lastReceiveAt) > wakeupThreshold {
			if err := e.bridge.SendPacket(nil, 0, 0, 250); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					return RadioPacket{}, rerr
				}
				startTime = e.now()
				continue
			}
			e.lastReceiveAt = e.now()
		}

		raw, err := e.bridge.SendAndReceivePacket(e.packetCodec.Encode(sendPacket),
			params.preambleMS, params.startDelayMS, params.listenMS, params.repeat, params.tailMS)
		if err != nil {
			if rerr := e.reconnect(); rerr != nil {
				return RadioPacket{}, rerr
			}
			startTime = e.now()
			continue
		}
		if startTime.IsZero() {
			startTime = e.now()
		}
		logDebug(e.logs.packet, "event", "send", "packet", sendPacket.String())
		e.packetLog.WriteSent(sendPacket)

		if raw == nil {
			logDebug(e.logs.packet, "event", "recv_nothing")
			if err := e.bridge.TxUp(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					return RadioPacket{}, rerr
				}
				startTime = e.now()
			}
			continue
		}

		p, _, perr := parseReceivedFrame(e.packetCodec, raw)
		if perr != nil {
			logDebug(e.logs.packet, "event", "recv_bad_data", "err", perr)
			if err := e.bridge.TxDown(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					return RadioPacket{}, rerr
				}
				startTime = e.now()
			}
			continue
		}
		logInfo(e.logs.packet, "event", "recv", "packet", p.String())
		e.packetLog.WriteReceived(p)

		if p.Address != e.localAddress {
			logDebug(e.logs.packet, "event", "recv_foreign_address", "address", p.Address.String())
			if err := e.bridge.TxDown(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					return RadioPacket{}, rerr
				}
				startTime = e.now()
			}
			continue
		}

		e.lastReceiveAt = e.now()

		if p.Type != expectedType {
			if e.lastReceivedPacket != nil && p.Sequence == e.lastReceivedPacket.Sequence {
				logDebug(e.logs.packet, "event", "recv_duplicate_reply", "packet", p.String())
				if err := e.bridge.TxUp(); err != nil {
					if rerr := e.reconnect(); rerr != nil {
						return RadioPacket{}, rerr
					}
					startTime = e.now()
				}
				continue
			}
			logDebug(e.logs.packet, "event", "recv_unexpected_type", "packet", p.String())
			if err := e.resyncOrAbort(&sendPacket, p); err != nil {
				return RadioPacket{}, err
			}
			continue
		}

		if p.Sequence != NextPacketSequence(sendPacket.Sequence) {
			logDebug(e.logs.packet, "event", "recv_unexpected_sequence", "packet", p.String())
			if err := e.resyncOrAbort(&sendPacket, p); err != nil {
				return RadioPacket{}, err
			}
			continue
		}

		received := p
		e.lastReceivedPacket = &received
		logDebug(e.logs.engine, "event", "exchange_complete")
		return received, nil
	}

	return RadioPacket{}, ErrExchangeTimeout
}

// resyncOrAbort implements the shared policy behind §4.1 steps 8 and 9:
// if the packet we were sending was an outbound PDM fragment, adopt the
// pod's view of the sequence and keep going; otherwise the protocol has
// diverged beyond recovery.
func (e *Engine) resyncOrAbort(sendPacket *RadioPacket, received RadioPacket) error {
	r := received
	e.lastReceivedPacket = &r
	if sendPacket.Type == PacketTypePDM {
		e.packetSequence = NextPacketSequence(received.Sequence)
		*sendPacket = sendPacket.WithSequence(e.packetSequence)
		return nil
	}
	return &ProtocolError{Reason: "aborting message transmission", Received: received}
}

// reconnect attempts up to maxReconnectRetries reconnects, matching
// §4.1 step 11 / §4.2 step 1 / §4.5's "on bridge error, reconnect up to
// 3x; on failure propagate" rule.
func (e *Engine) reconnect() error {
	logWarn(e.logs.engine, "event", "radio_error_reconnecting")
	if err := reinitRadio(e.bridge, maxReconnectRetries, e.sleep); err != nil {
		return err
	}
	return nil
}
