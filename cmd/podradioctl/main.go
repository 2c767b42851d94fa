// Command podradioctl drives a single conversation against a
// serial-attached radio bridge, for manual exercising and field
// diagnostics. It is grounded on cmd/sl2tpd/sl2tpd.go's structure
// (signal channel, single top-level defer, fatal-on-setup-error) and
// on doismellburning-samoyed/cmd/direwolf/main.go's use of pflag for
// its command-line surface.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/openaps/go-podradio/internal/serialbridge"
	"github.com/openaps/go-podradio/podradio"
)

func main() {
	device := pflag.StringP("device", "d", "/dev/ttyUSB0", "serial device path for the radio bridge")
	baud := pflag.IntP("baud", "b", 19200, "serial baud rate")
	localAddr := pflag.Uint32P("local-address", "l", 0x00000000, "local (PDM) radio address")
	podAddr := pflag.Uint32P("pod-address", "p", 0x00000000, "pod radio address")
	payloadHex := pflag.StringP("payload", "m", "", "hex-encoded message body to send")
	txPower := pflag.IntP("tx-power", "t", -1, "transmit power level override, or -1 for none")
	logDir := pflag.StringP("log-dir", "L", "", "directory for daily packet trace logs; empty disables tracing")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug-level logging")
	help := pflag.BoolP("help", "h", false, "display help text")
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	payload, err := hex.DecodeString(*payloadHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "podradioctl: invalid --payload: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if !*verbose {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	packetLog, err := podradio.OpenPacketLog(*logDir)
	if err != nil {
		level.Error(logger).Log("msg", "failed to open packet log", "err", err)
		os.Exit(1)
	}
	defer packetLog.Close()

	bridge := serialbridge.New(*device, *baud, log.With(logger, "component", "bridge"))

	engine := podradio.NewEngine(
		podradio.Address(*localAddr),
		0, 0,
		bridge,
		podradio.NewDefaultPacketCodec(),
		podradio.NewDefaultMessageCodec(31),
		logger,
		podradio.WithPacketLog(packetLog),
	)

	worker := podradio.NewWorker(engine, bridge, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGINT, unix.SIGTERM)

	go func() {
		<-sigs
		worker.Stop()
		os.Exit(0)
	}()

	var txPowerPtr *int
	if *txPower >= 0 {
		txPowerPtr = txPower
	}

	message, err := worker.SendMessageGetMessage(podradio.ConversationRequest{
		MessageBody:    payload,
		MessageAddress: podradio.Address(*podAddr),
		TxPower:        txPowerPtr,
	})
	if err != nil {
		level.Error(logger).Log("msg", "conversation failed", "err", err)
		worker.Stop()
		os.Exit(1)
	}

	fmt.Printf("received: %s\n", message.String())
	worker.Stop()
}
