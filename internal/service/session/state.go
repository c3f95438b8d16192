// Package session runs the recognition session lifecycle and owns the
// transcript while a process is serving clients.
package session

import (
	"fmt"
)

// State represents the lifecycle state of a recognition session.
type State int

const (
	// StateIdle - No session; Start is allowed.
	StateIdle State = iota
	// StateListening - The engine is capturing speech.
	StateListening
	// StatePausedAutoRestarting - The engine ended and a restart is scheduled.
	// Always transient.
	StatePausedAutoRestarting
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StatePausedAutoRestarting:
		return "PAUSED_AUTO_RESTARTING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Active returns true if a session is running or about to resume.
func (s State) Active() bool {
	return s == StateListening || s == StatePausedAutoRestarting
}

// Lifecycle is the session state machine. It is owned by the dispatcher
// goroutine and is not safe for concurrent use.
//
// State transitions:
//
//	IDLE ──Start──→ LISTENING ──Stop──→ IDLE
//	                  │    ↑
//	  ended/error     │    │ resume ok
//	  (eligible)      ↓    │
//	        PAUSED_AUTO_RESTARTING ──resume fails / Stop──→ IDLE
//
// Rules:
//   - Start is only valid from IDLE
//   - Stop is valid from LISTENING and PAUSED_AUTO_RESTARTING
//   - Pause is only valid from LISTENING, Resume only from PAUSED_AUTO_RESTARTING
//   - Every Start and Stop bumps the generation, invalidating scheduled restarts
type Lifecycle struct {
	state      State
	generation uint64
	manualStop bool
}

// NewLifecycle creates a lifecycle in IDLE state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

func (l *Lifecycle) State() State { return l.state }

// Generation returns the current restart generation.
func (l *Lifecycle) Generation() uint64 { return l.generation }

// ManualStop reports whether the user stopped the current session.
func (l *Lifecycle) ManualStop() bool { return l.manualStop }

// Start transitions IDLE → LISTENING and clears the manual-stop flag.
func (l *Lifecycle) Start() error {
	if l.state != StateIdle {
		return ErrAlreadyListening
	}
	l.state = StateListening
	l.manualStop = false
	l.generation++
	return nil
}

// Stop sets the manual-stop flag and transitions to IDLE.
func (l *Lifecycle) Stop() error {
	if !l.state.Active() {
		return ErrNotListening
	}
	l.state = StateIdle
	l.manualStop = true
	l.generation++
	return nil
}

// Pause transitions LISTENING → PAUSED_AUTO_RESTARTING and returns the
// generation the scheduled restart must carry.
func (l *Lifecycle) Pause() (uint64, error) {
	if l.state != StateListening {
		return 0, fmt.Errorf("%w: pause from %s", ErrInvalidTransition, l.state)
	}
	l.state = StatePausedAutoRestarting
	return l.generation, nil
}

// Resume transitions PAUSED_AUTO_RESTARTING → LISTENING if gen is current.
// A stale generation returns ErrStaleRestart and leaves the state unchanged.
func (l *Lifecycle) Resume(gen uint64) error {
	if gen != l.generation {
		return ErrStaleRestart
	}
	if l.state != StatePausedAutoRestarting {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, l.state)
	}
	l.state = StateListening
	return nil
}

// End transitions to IDLE without setting the manual-stop flag.
// Idempotent.
func (l *Lifecycle) End() {
	l.state = StateIdle
}

// RestartEligible reports whether an end of session should auto-restart.
func (l *Lifecycle) RestartEligible(meetingMode bool) bool {
	return !l.manualStop && meetingMode && l.state != StateIdle
}
