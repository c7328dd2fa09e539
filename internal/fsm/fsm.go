// Package fsm defines the listening/muted session transition table.
package fsm

import "fmt"

// State is the owner-visible session state.
type State struct {
	Listening bool
	Muted     bool
}

// Event is one input to the transition table.
type Event string

// Effect is the capability call a transition requires.
type Effect int

const (
	EventStart      Event = "start"
	EventStop       Event = "stop"
	EventToggleMute Event = "toggle_mute"
	EventReset      Event = "reset"
	EventResult     Event = "result"
	EventError      Event = "error"
	EventEnd        Event = "end"
)

const (
	EffectNone Effect = iota
	EffectStart
	EffectStop
)

// Label renders the microphone status word. Muted takes precedence over listening.
func (s State) Label() string {
	switch {
	case s.Muted:
		return "muted"
	case s.Listening:
		return "listening"
	default:
		return "off"
	}
}

func (e Effect) String() string {
	switch e {
	case EffectNone:
		return "none"
	case EffectStart:
		return "start"
	case EffectStop:
		return "stop"
	default:
		return fmt.Sprintf("effect(%d)", int(e))
	}
}

// Transition applies one event and reports the capability call it requires.
//
// Start while listening and stop while not listening are no-ops so the capability is never
// asked to start or stop twice.
func Transition(current State, event Event) (State, Effect, error) {
	switch event {
	case EventStart:
		if current.Listening {
			return current, EffectNone, nil
		}
		return State{Listening: true, Muted: false}, EffectStart, nil
	case EventStop:
		if !current.Listening {
			return current, EffectNone, nil
		}
		return State{Listening: false, Muted: current.Muted}, EffectStop, nil
	case EventToggleMute:
		next := State{Listening: current.Listening, Muted: !current.Muted}
		if !current.Listening {
			return next, EffectNone, nil
		}
		if current.Muted {
			return next, EffectStart, nil
		}
		return next, EffectStop, nil
	case EventReset, EventResult:
		return current, EffectNone, nil
	case EventError, EventEnd:
		return State{Listening: false, Muted: current.Muted}, EffectNone, nil
	default:
		return current, EffectNone, fmt.Errorf("unknown event %q", event)
	}
}
