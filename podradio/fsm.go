package podradio

import "fmt"

// fsm is a minimal table-driven state machine, adapted from
// l2tp/fsm.go and retargeted at the Worker's lifecycle states (§4.4)
// instead of L2TP's tunnel states. It makes the Worker's legal
// transitions explicit; handleEvent returns an error for an event the
// table has no transition for, and the Worker's loop discards that
// error, so an unexpected event is not reported.
type fsmCallback func(args []interface{})

type fsmEventDesc struct {
	from, to string
	events   []string
	cb       fsmCallback
}

type fsm struct {
	current string
	table   []fsmEventDesc
}

func (f *fsm) handleEvent(e string, args ...interface{}) error {
	for _, t := range f.table {
		if f.current != t.from {
			continue
		}
		for _, event := range t.events {
			if e != event {
				continue
			}
			f.current = t.to
			if t.cb != nil {
				t.cb(args)
			}
			return nil
		}
	}
	return fmt.Errorf("podradio: no transition defined for event %v in state %v", e, f.current)
}

// Worker lifecycle states (§4.4).
const (
	stateInitializing = "initializing"
	stateIdle         = "idle"
	stateBusy         = "busy"
	stateTailing      = "tailing"
	stateStopped      = "stopped"
)

func newWorkerFSM(logs loggers) *fsm {
	logTransition := func(args []interface{}) {
		if len(args) > 0 {
			logDebug(logs.engine, "event", "state_transition", "detail", args[0])
		}
	}
	return &fsm{
		current: stateInitializing,
		table: []fsmEventDesc{
			{from: stateInitializing, to: stateIdle, events: []string{"connected"}, cb: logTransition},
			{from: stateIdle, to: stateIdle, events: []string{"idle_timeout"}, cb: logTransition},
			{from: stateIdle, to: stateBusy, events: []string{"request"}, cb: logTransition},
			{from: stateIdle, to: stateStopped, events: []string{"shutdown"}, cb: logTransition},
			{from: stateBusy, to: stateTailing, events: []string{"success"}, cb: logTransition},
			{from: stateBusy, to: stateIdle, events: []string{"failure"}, cb: logTransition},
			{from: stateTailing, to: stateIdle, events: []string{"drained"}, cb: logTransition},
		},
	}
}
