package podradio

import "time"

// drainFinalAck implements the closing ACK drain (§4.5), grounded on
// protocol_radio.py's _send_packet. It is a sibling of exchangePacket
// rather than a parameterization of it: unlike a normal exchange it
// never fails the conversation (the conversation has already
// succeeded), it tolerates silence as a successful outcome, and it
// takes one extra 1s listen before declaring silence.
//
// ack is mutated in place as the pod's sequence resyncs during the
// drain, mirroring rewrite_sequence semantics; the final value the
// caller cares about is irrelevant once the drain returns, since the
// conversation result has already been published.
func (e *Engine) drainFinalAck(ack RadioPacket) {
	var startTime time.Time

	for startTime.IsZero() || e.now().Sub(startTime) < ackDrainTimeout {
		logDebug(e.logs.packet, "event", "send", "packet", ack.String())
		e.packetLog.WriteSent(ack)

		raw, err := e.bridge.SendAndReceivePacket(e.packetCodec.Encode(ack),
			finalDrainParams.preambleMS, finalDrainParams.startDelayMS, finalDrainParams.listenMS,
			finalDrainParams.repeat, finalDrainParams.tailMS)
		if err != nil {
			if rerr := e.reconnect(); rerr != nil {
				logError(e.logs.engine, "event", "drain_reconnect_failed", "err", rerr)
				return
			}
			startTime = e.now()
			continue
		}
		if startTime.IsZero() {
			startTime = e.now()
		}

		if raw == nil {
			raw, err = e.bridge.GetPacket(1 * time.Second)
			if err != nil {
				if rerr := e.reconnect(); rerr != nil {
					logError(e.logs.engine, "event", "drain_reconnect_failed", "err", rerr)
					return
				}
				startTime = e.now()
				continue
			}
			if raw == nil {
				logDebug(e.logs.packet, "event", "silence")
				return
			}
		}

		p, _, perr := parseReceivedFrame(e.packetCodec, raw)
		if perr != nil {
			logDebug(e.logs.packet, "event", "recv_bad_data", "err", perr)
			if err := e.bridge.TxDown(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					logError(e.logs.engine, "event", "drain_reconnect_failed", "err", rerr)
					return
				}
				startTime = e.now()
			}
			continue
		}

		if p.Address != e.localAddress {
			logDebug(e.logs.packet, "event", "recv_foreign_address", "address", p.Address.String())
			if err := e.bridge.TxDown(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					logError(e.logs.engine, "event", "drain_reconnect_failed", "err", rerr)
					return
				}
				startTime = e.now()
			}
			continue
		}

		e.lastReceiveAt = e.now()

		if e.lastReceivedPacket != nil && p.Type == e.lastReceivedPacket.Type && p.Sequence == e.lastReceivedPacket.Sequence {
			logDebug(e.logs.packet, "event", "recv_duplicate_reply", "packet", p.String())
			if err := e.bridge.TxUp(); err != nil {
				if rerr := e.reconnect(); rerr != nil {
					logError(e.logs.engine, "event", "drain_reconnect_failed", "err", rerr)
					return
				}
				startTime = e.now()
			}
			continue
		}

		logInfo(e.logs.packet, "event", "recv", "packet", p.String())
		e.packetLog.WriteReceived(p)
		received := p
		e.lastReceivedPacket = &received
		e.packetSequence = NextPacketSequence(p.Sequence)
		ack = ack.WithSequence(e.packetSequence)
	}

	logWarn(e.logs.engine, "event", "drain_timeout")
}
