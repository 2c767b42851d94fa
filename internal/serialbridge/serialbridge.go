// Package serialbridge implements podradio.RadioBridge over a
// serial/USB-attached radio dongle, in the spirit of
// doismellburning-samoyed's serial_port.go: open the device in raw
// mode, write bytes, and read bytes back, hiding the operating-system
// differences behind github.com/pkg/term.
//
// The actual over-the-air framing, preamble timing, and RF parameters
// belong to the dongle's firmware; this bridge only has to get opaque
// byte blobs across the serial link reliably, so it frames each one
// with a 2-byte length prefix and leaves everything else to the
// firmware on the other end.
package serialbridge

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/term"

	"github.com/openaps/go-podradio/podradio"
)

var _ podradio.RadioBridge = (*Bridge)(nil)

// Bridge is a podradio.RadioBridge backed by a serial device.
type Bridge struct {
	device string
	baud   int
	logger log.Logger

	mu         sync.Mutex
	fd         *term.Term
	frames     chan []byte
	readerDone chan struct{}
}

// New returns a Bridge for device (e.g. "/dev/ttyUSB0") at baud bps.
// The connection is not opened until Connect is called.
func New(device string, baud int, logger log.Logger) *Bridge {
	return &Bridge{device: device, baud: baud, logger: logger}
}

// Connect opens the serial device. When forceInitialize is true, any
// existing connection is torn down and reopened; otherwise an already
// open connection is left alone.
func (b *Bridge) Connect(forceInitialize bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fd != nil && !forceInitialize {
		return nil
	}
	b.closeLocked()

	fd, err := term.Open(b.device, term.Speed(b.baud), term.RawMode)
	if err != nil {
		return fmt.Errorf("serialbridge: open %s: %w", b.device, err)
	}

	b.fd = fd
	b.frames = make(chan []byte, 8)
	b.readerDone = make(chan struct{})
	go b.readLoop(b.fd, b.frames, b.readerDone)

	return nil
}

// Disconnect closes the serial device.
func (b *Bridge) Disconnect(ignoreErrors bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.closeLocked()
	if ignoreErrors {
		return nil
	}
	return err
}

func (b *Bridge) closeLocked() error {
	if b.fd == nil {
		return nil
	}
	close(b.readerDone)
	err := b.fd.Close()
	b.fd = nil
	return err
}

// readLoop decodes length-prefixed frames off the serial stream and
// hands them to frames until done is closed; a read error while done
// is still open is skipped and reading continues. It owns fd/frames/done by value so a reconnect (which swaps
// those fields under the mutex) can't race a stale goroutine.
func (b *Bridge) readLoop(fd *term.Term, frames chan []byte, done chan struct{}) {
	prefix := make([]byte, 2)
	for {
		if _, err := io.ReadFull(fd, prefix); err != nil {
			select {
			case <-done:
				return
			default:
				continue
			}
		}

		length := int(prefix[0])<<8 | int(prefix[1])
		body := make([]byte, length)
		if _, err := io.ReadFull(fd, body); err != nil {
			continue
		}

		select {
		case frames <- body:
		case <-done:
			return
		}
	}
}

func (b *Bridge) writeFrame(data []byte) error {
	b.mu.Lock()
	fd := b.fd
	b.mu.Unlock()
	if fd == nil {
		return fmt.Errorf("serialbridge: not connected")
	}

	prefix := []byte{byte(len(data) >> 8), byte(len(data))}
	if _, err := fd.Write(prefix); err != nil {
		return err
	}
	_, err := fd.Write(data)
	return err
}

// SendPacket writes data to the dongle and returns once written; the
// preamble/listen timing is left to the dongle firmware.
func (b *Bridge) SendPacket(data []byte, preambleMS, startDelayMS, listenMS int) error {
	if startDelayMS > 0 {
		time.Sleep(time.Duration(startDelayMS) * time.Millisecond)
	}
	return b.writeFrame(data)
}

// SendAndReceivePacket writes data, then waits up to listenMS per
// attempt (repeat+1 attempts total) for a reply frame.
func (b *Bridge) SendAndReceivePacket(data []byte, preambleMS, startDelayMS, listenMS, repeat, tailMS int) ([]byte, error) {
	b.mu.Lock()
	frames := b.frames
	b.mu.Unlock()
	if frames == nil {
		return nil, fmt.Errorf("serialbridge: not connected")
	}

	for attempt := 0; attempt <= repeat; attempt++ {
		if err := b.SendPacket(data, preambleMS, startDelayMS, listenMS); err != nil {
			return nil, err
		}
		select {
		case body := <-frames:
			return body, nil
		case <-time.After(time.Duration(listenMS) * time.Millisecond):
		}
	}
	if tailMS > 0 {
		select {
		case body := <-frames:
			return body, nil
		case <-time.After(time.Duration(tailMS) * time.Millisecond):
		}
	}
	return nil, nil
}

// GetPacket waits up to window for a frame with no prior send.
func (b *Bridge) GetPacket(window time.Duration) ([]byte, error) {
	b.mu.Lock()
	frames := b.frames
	b.mu.Unlock()
	if frames == nil {
		return nil, fmt.Errorf("serialbridge: not connected")
	}

	select {
	case body := <-frames:
		return body, nil
	case <-time.After(window):
		return nil, nil
	}
}

// SetTxPower sends a firmware control frame requesting a new transmit
// power level. The 0xFF lead byte distinguishes control frames from
// ordinary packet frames on the wire.
func (b *Bridge) SetTxPower(level int) error {
	return b.writeFrame([]byte{0xFF, byte(level)})
}

// TxUp and TxDown are no-ops: this bridge sends nothing to the dongle
// for them, so its transmit power changes only through SetTxPower.
func (b *Bridge) TxUp() error   { return nil }
func (b *Bridge) TxDown() error { return nil }
