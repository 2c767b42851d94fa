package podradio

import (
	"time"

	"github.com/go-kit/kit/log"
)

// Worker is the long-lived, single-threaded owner of a RadioBridge
// (§2 item 6, §4.4). It accepts one ConversationRequest at a time and
// publishes a ConversationResult, serializing conversations so that at
// most one is ever in flight (§5, §8 property 3).
//
// The original design names three synchronization flags —
// radio_ready, request_arrived, response_received — coordinating a
// single caller and the worker thread. §9 already directs
// implementers toward one-shot latches or bounded single-slot channels
// for this; Worker reads that direction literally: radioReady is a
// capacity-1 channel a caller receives from to claim the radio (and the
// worker sends to, to release it), and the request/response handoff is
// one pendingRequest struct carrying its own reply channel, which
// collapses request_arrived/response_received into a single blocking
// channel send/receive.
type Worker struct {
	engine *Engine
	bridge RadioBridge
	logs   loggers

	requestCh  chan *pendingRequest
	radioReady chan struct{}
	shutdownCh chan struct{}
	doneCh     chan struct{}

	sleep func(time.Duration)
}

type pendingRequest struct {
	req      ConversationRequest
	resultCh chan ConversationResult
}

// WorkerOption configures a Worker at construction time.
type WorkerOption func(*Worker)

// WithWorkerSleep overrides the Worker's startup-retry backoff sleep
// function, for deterministic tests. Reconnects during a conversation
// sleep through the Engine's function instead (see WithSleep).
func WithWorkerSleep(sleep func(time.Duration)) WorkerOption {
	return func(w *Worker) { w.sleep = sleep }
}

// NewWorker constructs a Worker around engine and bridge and starts its
// radio loop goroutine. logger is used for worker lifecycle events;
// engine carries its own loggers for exchange/message tracing.
func NewWorker(engine *Engine, bridge RadioBridge, logger log.Logger, opts ...WorkerOption) *Worker {
	w := &Worker{
		engine:     engine,
		bridge:     bridge,
		logs:       newLoggers(logger),
		requestCh:  make(chan *pendingRequest),
		radioReady: make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// SendMessageGetMessage claims the radio, submits req, and blocks until
// the worker publishes a result or the worker has stopped (§6.3).
func (w *Worker) SendMessageGetMessage(req ConversationRequest) (LogicalMessage, error) {
	select {
	case <-w.radioReady:
	case <-w.doneCh:
		return LogicalMessage{}, ErrWorkerStopped
	}

	pr := &pendingRequest{req: req, resultCh: make(chan ConversationResult, 1)}

	select {
	case w.requestCh <- pr:
	case <-w.doneCh:
		return LogicalMessage{}, ErrWorkerStopped
	}

	result := <-pr.resultCh
	if result.Err != nil {
		return LogicalMessage{}, result.Err
	}
	return result.Message, nil
}

// Stop waits until the radio is ready, then requests shutdown and
// blocks until the worker's loop has exited (§6.3).
func (w *Worker) Stop() {
	<-w.radioReady
	close(w.shutdownCh)
	<-w.doneCh
}

// Disconnect makes a best-effort attempt to release the bridge (§6.3).
// Like protocol_radio.py's disconnect(), this reaches the bridge
// directly rather than routing through the worker goroutine — callers
// should only use it when no conversation is in flight (e.g. during
// shutdown), since the bridge's sole-owner guarantee (§5) is otherwise
// the worker's.
func (w *Worker) Disconnect() error {
	return w.bridge.Disconnect(true)
}

func (w *Worker) run() {
	fsm := newWorkerFSM(w.logs)

	for {
		if err := w.bridge.Connect(true); err == nil {
			break
		}
		_ = w.bridge.Disconnect(true)
		logWarn(w.logs.engine, "event", "radio_init_failed")
		w.sleep(radioInitBackoff)
	}
	_ = fsm.handleEvent("connected", "initializing->idle")
	w.radioReady <- struct{}{}

	for {
		idleTimer := time.NewTimer(idleInactivityTimeout)

		select {
		case pr := <-w.requestCh:
			idleTimer.Stop()
			_ = fsm.handleEvent("request", "idle->busy")
			w.runConversation(fsm, pr)

		case <-w.shutdownCh:
			idleTimer.Stop()
			_ = fsm.handleEvent("shutdown", "idle->stopped")
			close(w.doneCh)
			return

		case <-idleTimer.C:
			_ = fsm.handleEvent("idle_timeout", "idle->idle")
			_ = w.bridge.Disconnect(true)
		}
	}
}

// runConversation drives one Busy → (Tailing | Idle) cycle (§4.4).
func (w *Worker) runConversation(fsm *fsm, pr *pendingRequest) {
	message, err := w.engine.sendAndGet(pr.req)
	if err != nil {
		logWarn(w.logs.engine, "event", "conversation_failed", "err", err)
		pr.resultCh <- ConversationResult{Err: err}
		_ = fsm.handleEvent("failure", "busy->idle")
		w.radioReady <- struct{}{}
		return
	}

	ack := w.engine.finalAck(pr.req.AckAddressOverride, w.engine.packetSequence)
	w.engine.packetSequence = NextPacketSequence(w.engine.packetSequence)

	pr.resultCh <- ConversationResult{Message: message}
	_ = fsm.handleEvent("success", "busy->tailing")

	w.engine.drainFinalAck(ack)
	logDebug(w.logs.engine, "event", "conversation_ended")
	_ = fsm.handleEvent("drained", "tailing->idle")

	w.radioReady <- struct{}{}
}
