package podradio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"
)

// PacketLog writes one CSV row per radio packet sent or received, into
// a daily-rotated file under dir. It is a supplemental trace facility,
// not part of the conversation protocol itself: the engine works
// identically with a nil *PacketLog. Grounded on
// doismellburning-samoyed's log_write/log_init/log_term, which keep a
// single open file handle and roll to a new daily name as the clock
// crosses midnight, rather than opening a file per write.
type PacketLog struct {
	dir     string
	pattern *strftime.Strftime

	mu       sync.Mutex
	fp       *os.File
	openName string
	now      func() time.Time
}

var packetLogHeader = []string{"direction", "unixtime", "isotime", "address", "type", "sequence", "bytes"}

// OpenPacketLog creates dir if it does not exist and prepares a
// PacketLog that will roll a new "2006-01-02.csv" file into it as
// needed. Passing an empty dir disables logging; Write* calls become
// no-ops and Close returns nil.
func OpenPacketLog(dir string) (*PacketLog, error) {
	if dir == "" {
		return &PacketLog{now: time.Now}, nil
	}

	if stat, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("podradio: stat packet log dir: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("podradio: create packet log dir: %w", err)
		}
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("podradio: packet log path %q is not a directory", dir)
	}

	pattern, err := strftime.New("%Y-%m-%d.csv")
	if err != nil {
		return nil, fmt.Errorf("podradio: packet log pattern: %w", err)
	}

	return &PacketLog{dir: dir, pattern: pattern, now: time.Now}, nil
}

// WriteSent appends a record for a packet handed to the bridge.
func (pl *PacketLog) WriteSent(p RadioPacket) {
	pl.write("send", p)
}

// WriteReceived appends a record for a packet accepted from the bridge.
func (pl *PacketLog) WriteReceived(p RadioPacket) {
	pl.write("recv", p)
}

func (pl *PacketLog) write(direction string, p RadioPacket) {
	if pl == nil || pl.dir == "" {
		return
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	now := pl.now().UTC()
	if err := pl.rollLocked(now); err != nil {
		logWarn(nil, "event", "packet_log_roll_failed", "err", err)
		return
	}
	if pl.fp == nil {
		return
	}

	w := csv.NewWriter(pl.fp)
	_ = w.Write([]string{
		direction,
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		p.Address.String(),
		p.Type.String(),
		strconv.Itoa(int(p.Sequence)),
		strconv.Itoa(len(p.Body)),
	})
	w.Flush()
}

func (pl *PacketLog) rollLocked(now time.Time) error {
	name := pl.pattern.FormatString(now)
	if pl.fp != nil && name == pl.openName {
		return nil
	}
	if pl.fp != nil {
		_ = pl.fp.Close()
		pl.fp = nil
	}

	fullPath := filepath.Join(pl.dir, name)
	_, statErr := os.Stat(fullPath)
	alreadyThere := statErr == nil

	f, err := os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if !alreadyThere {
		w := csv.NewWriter(f)
		_ = w.Write(packetLogHeader)
		w.Flush()
	}

	pl.fp = f
	pl.openName = name
	return nil
}

// Close closes the currently open log file, if any.
func (pl *PacketLog) Close() error {
	if pl == nil || pl.dir == "" {
		return nil
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.fp == nil {
		return nil
	}
	err := pl.fp.Close()
	pl.fp = nil
	pl.openName = ""
	return err
}
