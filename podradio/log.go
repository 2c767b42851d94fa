package podradio

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// loggers bundles the three distinct logging facades the original
// protocol_radio.py keeps: a conversation-level logger, a per-packet
// trace logger, and a per-message trace logger. Collapsing them into
// one would make packet-level noise indistinguishable from the handful
// of conversation lifecycle events operators actually want to watch.
// Any or all of the three may be nil, per go-l2tp's "pass nil to
// disable" convention.
type loggers struct {
	engine  log.Logger
	packet  log.Logger
	message log.Logger
}

func newLoggers(logger log.Logger) loggers {
	if logger == nil {
		return loggers{}
	}
	return loggers{
		engine:  log.With(logger, "component", "engine"),
		packet:  log.With(logger, "component", "packet"),
		message: log.With(logger, "component", "message"),
	}
}

func logDebug(l log.Logger, keyvals ...interface{}) {
	if l == nil {
		return
	}
	_ = level.Debug(l).Log(keyvals...)
}

func logInfo(l log.Logger, keyvals ...interface{}) {
	if l == nil {
		return
	}
	_ = level.Info(l).Log(keyvals...)
}

func logWarn(l log.Logger, keyvals ...interface{}) {
	if l == nil {
		return
	}
	_ = level.Warn(l).Log(keyvals...)
}

func logError(l log.Logger, keyvals ...interface{}) {
	if l == nil {
		return
	}
	_ = level.Error(l).Log(keyvals...)
}
