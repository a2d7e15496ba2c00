package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the mitigation lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateMitigating State = "mitigating"
)

// Event drives a lifecycle transition.
type Event string

const (
	EventStart  Event = "start"
	EventFinish Event = "finish"
	EventAbort  Event = "abort"
)

var (
	ErrInvalidTransition    = errors.New("invalid lifecycle transition")
	ErrAlreadyMitigating    = errors.New("a mitigation cycle is already running")
	ErrMitigationInProgress = errors.New("operation not allowed while a mitigation cycle is running")
)

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateMitigating,
	},
	StateMitigating: {
		EventFinish: StateIdle,
		EventAbort:  StateIdle,
	},
}

// lifecycle guards the Idle/Mitigating state and the cancel hook of the
// running cycle.
type lifecycle struct {
	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	stopped bool
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: StateIdle}
}

// fire applies ev. Caller holds mu.
func (l *lifecycle) fire(ev Event) error {
	next, ok := transitions[l.state][ev]
	if !ok {
		if l.state == StateMitigating && ev == EventStart {
			return ErrAlreadyMitigating
		}
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, l.state)
	}
	l.state = next
	return nil
}

// begin moves to Mitigating and remembers how to cancel the cycle.
func (l *lifecycle) begin(cancel context.CancelFunc) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fire(EventStart); err != nil {
		return err
	}
	l.cancel = cancel
	l.stopped = false
	return nil
}

// end returns to Idle.
func (l *lifecycle) end(ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.fire(ev); err != nil {
		return err
	}
	l.cancel = nil
	l.stopped = false
	return nil
}

// stop cancels the running cycle. It reports false when idle.
func (l *lifecycle) stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateMitigating {
		return false
	}
	l.stopped = true
	if l.cancel != nil {
		l.cancel()
	}
	return true
}

func (l *lifecycle) stopRequested() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

func (l *lifecycle) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// whileIdle runs fn with the lifecycle held in Idle, so no cycle can start
// until fn returns.
func (l *lifecycle) whileIdle(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return ErrMitigationInProgress
	}
	return fn()
}
