package podradio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPacketLogDisabledIsNoop(t *testing.T) {
	pl, err := OpenPacketLog("")
	if err != nil {
		t.Fatalf("OpenPacketLog(\"\") error = %v", err)
	}
	pl.WriteSent(RadioPacket{Type: PacketTypePDM})
	pl.WriteReceived(RadioPacket{Type: PacketTypeACK})
	if err := pl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestPacketLogNilReceiverIsNoop(t *testing.T) {
	var pl *PacketLog
	pl.WriteSent(RadioPacket{Type: PacketTypePDM})
	pl.WriteReceived(RadioPacket{Type: PacketTypeACK})
	if err := pl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestPacketLogWritesRows(t *testing.T) {
	dir := t.TempDir()

	pl, err := OpenPacketLog(dir)
	if err != nil {
		t.Fatalf("OpenPacketLog() error = %v", err)
	}
	fixedNow := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	pl.now = func() time.Time { return fixedNow }

	sent := RadioPacket{Address: 0x1, Type: PacketTypePDM, Sequence: 3, Body: []byte("hi")}
	recv := RadioPacket{Address: 0x1, Type: PacketTypeACK, Sequence: 4}
	pl.WriteSent(sent)
	pl.WriteReceived(recv)
	if err := pl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-01-02.csv"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "send,") || !strings.Contains(content, "recv,") {
		t.Fatalf("missing send/recv rows, got:\n%s", content)
	}
	if !strings.HasPrefix(content, strings.Join(packetLogHeader, ",")) {
		t.Fatalf("missing header row, got:\n%s", content)
	}
}

func TestPacketLogRollsOnDayChange(t *testing.T) {
	dir := t.TempDir()

	pl, err := OpenPacketLog(dir)
	if err != nil {
		t.Fatalf("OpenPacketLog() error = %v", err)
	}
	day1 := time.Date(2026, 1, 2, 23, 59, 0, 0, time.UTC)
	day2 := day1.Add(2 * time.Minute)

	pl.now = func() time.Time { return day1 }
	pl.WriteSent(RadioPacket{Type: PacketTypePDM})
	pl.now = func() time.Time { return day2 }
	pl.WriteSent(RadioPacket{Type: PacketTypePDM})
	if err := pl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "2026-01-02.csv")); err != nil {
		t.Fatalf("expected day-1 file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "2026-01-03.csv")); err != nil {
		t.Fatalf("expected day-2 file: %v", err)
	}
}
