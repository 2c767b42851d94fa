// Command podradiosim stands in for a pod on the other end of a
// serial link, so podradioctl (or any other internal/serialbridge
// client) can be exercised without real radio hardware. It opens a
// pseudo-terminal pair with github.com/creack/pty, grounded on
// doismellburning-samoyed's kiss.go use of pty.Open() for the same
// purpose, and ACKs every frame it receives.
package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"os/signal"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

func main() {
	master, slave, err := pty.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "podradiosim: failed to open pty: %v\n", err)
		os.Exit(1)
	}
	defer master.Close()
	defer slave.Close()

	fmt.Printf("podradiosim: point --device at %s\n", slave.Name())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-sigs
		os.Exit(0)
	}()

	prefix := make([]byte, 2)
	for {
		if _, err := io.ReadFull(master, prefix); err != nil {
			fmt.Fprintf(os.Stderr, "podradiosim: read error: %v\n", err)
			return
		}
		length := int(prefix[0])<<8 | int(prefix[1])
		body := make([]byte, length)
		if _, err := io.ReadFull(master, body); err != nil {
			fmt.Fprintf(os.Stderr, "podradiosim: read error: %v\n", err)
			return
		}

		reply := ackFrame(body)
		out := make([]byte, 2+len(reply))
		out[0] = byte(len(reply) >> 8)
		out[1] = byte(len(reply))
		copy(out[2:], reply)
		if _, err := master.Write(out); err != nil {
			fmt.Fprintf(os.Stderr, "podradiosim: write error: %v\n", err)
			return
		}
	}
}

// ackFrame builds a minimal reply to any received frame that starts
// with a default-codec RadioPacket header (frames from the PDM carry
// no RSSI prefix): same address, type byte forced to ACK, sequence
// echoed back unchanged, empty body. It adds the RSSI/reserved prefix
// a real bridge would have supplied (§6.2), since podradioctl's engine
// strips exactly two leading bytes before handing the rest to the
// packet codec. This is only meant to let a hand-run podradioctl see a
// non-silent radio link end to end, not to model pod protocol behavior.
func ackFrame(received []byte) []byte {
	const rssiPrefixLen = 2
	if len(received) < 8 {
		return received
	}
	packet := received

	frame := make([]byte, rssiPrefixLen+12)
	frame[0] = 0xc0 // fake RSSI
	frame[1] = 0x00 // reserved
	body := frame[rssiPrefixLen:]
	copy(body[0:4], packet[0:4])
	body[4] = 2 // ACK
	body[5] = packet[5]
	binary.BigEndian.PutUint16(body[6:8], 0)
	crc := crc32.ChecksumIEEE(body[:8])
	binary.BigEndian.PutUint32(body[8:12], crc)
	return frame
}
