package podradio

import "time"

// Timing constants named directly from §4 and §5.
const (
	// exchangeTimeout is the overall cap on one packet exchange
	// (§4.1 Inputs).
	exchangeTimeout = 10 * time.Second
	// ackDrainTimeout is the overall cap on the closing ACK drain
	// (§4.5).
	ackDrainTimeout = 25 * time.Second
	// wakeupThreshold is how long since the last reception before a
	// wake-up burst is issued (§4.1 step 2, §4.6).
	wakeupThreshold = 3000 * time.Second
	// idleInactivityTimeout is how long the Worker waits for a
	// request before disconnecting the bridge while Idle (§4.4).
	idleInactivityTimeout = 10 * time.Second
	// radioInitBackoff is the delay between Worker startup connect
	// attempts (§4.4 Initializing state).
	radioInitBackoff = 5 * time.Second
	// reconnectBackoff is the delay between reconnect attempts made
	// mid-exchange or mid-drain (§4.1 step 11, §4.5).
	reconnectBackoff = 2 * time.Second
	// maxReconnectRetries bounds the reconnect attempts made at any
	// single mid-conversation failure site (§4.1 step 11, §4.2 step 1,
	// §4.5) — as distinct from the Worker's unbounded startup retry
	// loop (§4.4 Initializing).
	maxReconnectRetries = 3
)

// Bridge call parameter sets (§6.1).
type bridgeParams struct {
	preambleMS, startDelayMS, listenMS, repeat, tailMS int
}

var (
	// midExchangeParams are used for every packet exchange within a
	// conversation.
	midExchangeParams = bridgeParams{preambleMS: 0, startDelayMS: 0, listenMS: 100, repeat: 1, tailMS: 130}
	// finalDrainParams are used for the closing ACK drain.
	finalDrainParams = bridgeParams{preambleMS: 5, startDelayMS: 55, listenMS: 300, repeat: 2, tailMS: 40}
)
