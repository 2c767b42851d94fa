package podradio

import (
	"time"
)

// fakeBridge is a scripted RadioBridge stand-in, grounded on
// l2tp/l2tp_test.go's style of a minimal in-memory fake rather than a
// mocking library. Each call to SendAndReceivePacket or GetPacket pops
// the next scripted fakeStep; tests drive behavior by queueing steps
// rather than asserting on a mock's expectations.
type fakeStep struct {
	reply []byte
	err   error
}

type fakeBridge struct {
	connectErr               error
	connectFailuresRemaining int
	connectCalls             int
	disconnectErr            error

	steps   []fakeStep
	sent    [][]byte
	wakeups int
	txUps   int
	txDowns int
	txPower []int
}

func (b *fakeBridge) Connect(forceInitialize bool) error {
	b.connectCalls++
	if b.connectFailuresRemaining > 0 {
		b.connectFailuresRemaining--
		return b.connectErr
	}
	return nil
}

func (b *fakeBridge) Disconnect(ignoreErrors bool) error {
	return b.disconnectErr
}

func (b *fakeBridge) SetTxPower(level int) error {
	b.txPower = append(b.txPower, level)
	return nil
}

func (b *fakeBridge) SendAndReceivePacket(data []byte, preambleMS, startDelayMS, listenMS, repeat, tailMS int) ([]byte, error) {
	b.sent = append(b.sent, data)
	if len(b.steps) == 0 {
		return nil, nil
	}
	step := b.steps[0]
	b.steps = b.steps[1:]
	return step.reply, step.err
}

// SendPacket is only ever called for the wake-up burst (§4.6); it is
// tracked separately from sent so sent-counting tests can assert on
// mid-exchange sends without having to account for a leading wake-up.
func (b *fakeBridge) SendPacket(data []byte, preambleMS, startDelayMS, listenMS int) error {
	b.wakeups++
	return nil
}

func (b *fakeBridge) GetPacket(window time.Duration) ([]byte, error) {
	if len(b.steps) == 0 {
		return nil, nil
	}
	step := b.steps[0]
	b.steps = b.steps[1:]
	return step.reply, step.err
}

func (b *fakeBridge) TxUp() error {
	b.txUps++
	return nil
}

func (b *fakeBridge) TxDown() error {
	b.txDowns++
	return nil
}

// encodeRaw frames p with defaultPacketCodec and prepends the 2-byte
// RSSI/reserved prefix a real bridge reception carries (§6.2).
func encodeRaw(codec PacketCodec, p RadioPacket) []byte {
	encoded := codec.Encode(p)
	raw := make([]byte, 2+len(encoded))
	raw[0] = 0xaa
	raw[1] = 0x00
	copy(raw[2:], encoded)
	return raw
}

// stepClock returns a now func that advances by step every call,
// starting at a fixed base, so tests can exercise timeout loops
// without real sleeping.
func stepClock(step time.Duration) func() time.Time {
	base := time.Unix(1700000000, 0)
	called := 0
	return func() time.Time {
		t := base.Add(time.Duration(called) * step)
		called++
		return t
	}
}

func mustEngine(bridge RadioBridge, opts ...EngineOption) *Engine {
	opts = append([]EngineOption{WithSleep(func(time.Duration) {})}, opts...)
	return NewEngine(Address(0x11111111), 0, 0, bridge, NewDefaultPacketCodec(), NewDefaultMessageCodec(31), nil, opts...)
}
