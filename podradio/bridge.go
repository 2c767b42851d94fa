package podradio

import (
	"fmt"
	"time"
)

// RadioBridge is the external radio bridge adapter (§6.1). It is
// consumed as a capability: podradio owns none of the physical-layer
// details, power electronics or reconnect mechanics behind it.
//
// Implementations must be safe to call from a single goroutine only —
// the Worker (§4.4) is the sole owner of a RadioBridge for its whole
// lifetime.
type RadioBridge interface {
	// Connect establishes the link. forceInitialize requests a full
	// reinitialization rather than a resume of an existing session.
	Connect(forceInitialize bool) error
	// Disconnect releases the link. Implementations should make a
	// best-effort attempt and are not required to report errors the
	// caller can act on; Worker and reinitRadio always treat
	// Disconnect as best-effort regardless of ignoreErrors.
	Disconnect(ignoreErrors bool) error
	// SetTxPower programs the transmit power level.
	SetTxPower(level int) error
	// SendAndReceivePacket transmits data, then listens for one
	// reply packet. preamble/startDelay/listen/tail are millisecond
	// durations and repeat is a transmit repeat count, matching the
	// two canonical parameter sets in §6.1. A nil return with a nil
	// error means nothing was received.
	SendAndReceivePacket(data []byte, preambleMS, startDelayMS, listenMS, repeat, tailMS int) ([]byte, error)
	// SendPacket transmits data without listening for a reply, used
	// for the wake-up burst (§4.6).
	SendPacket(data []byte, preambleMS, startDelayMS, listenMS int) error
	// GetPacket passively listens for up to window for one packet.
	GetPacket(window time.Duration) ([]byte, error)
	// TxUp raises the transmit power by one notch.
	TxUp() error
	// TxDown lowers the transmit power by one notch.
	TxDown() error
}

// BridgeError wraps the last error of a failed reconnect (reinitRadio),
// so a caller of the Engine or Worker can tell a bridge failure (§7)
// from a protocol error or a timeout without inspecting
// bridge-specific error types. The reconnect itself is triggered by
// any error a RadioBridge call returns, wrapped or not.
type BridgeError struct {
	Op  string
	Err error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("podradio: bridge error during %s: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }

// wrapBridgeErr returns nil if err is nil, else a *BridgeError naming
// op.
func wrapBridgeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BridgeError{Op: op, Err: err}
}

// reinitRadio disconnects and reconnects the bridge up to retries
// times, sleeping between attempts, mirroring protocol_radio.py's
// _radio_init(retries). It returns nil on the first successful
// reconnect and the last error otherwise.
func reinitRadio(bridge RadioBridge, retries int, sleep func(time.Duration)) error {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		_ = bridge.Disconnect(true)
		if err := bridge.Connect(true); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if sleep != nil {
			sleep(reconnectBackoff)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("podradio: radio initialization failed with no retries attempted")
	}
	return wrapBridgeErr("reinit", lastErr)
}
