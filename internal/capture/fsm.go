package capture

import "fmt"

// State is one phase of the capture lifecycle.
type State string

// Event is one capture lifecycle trigger.
type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateStopping   State = "stopping"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

const (
	EventStart    Event = "start"
	EventAcquired Event = "acquired"
	EventPause    Event = "pause"
	EventResume   Event = "resume"
	EventStop     Event = "stop"
	EventFlushed  Event = "flushed"
	EventFail     Event = "fail"
	EventReset    Event = "reset"
)

// Terminal reports whether a state ends the session lifecycle.
func Terminal(s State) bool {
	return s == StateCompleted || s == StateError
}

// Transition applies one event to the current state. Illegal events return
// the unchanged state and an error; they are never reordered or deferred.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRequesting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventAcquired:
			return StateRecording, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventPause:
			return StatePaused, nil
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StatePaused:
		switch event {
		case EventResume:
			return StateRecording, nil
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventFlushed:
			return StateCompleted, nil
		case EventFail:
			return StateError, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted, StateError:
		switch event {
		case EventStart:
			// A denied or finished session may retry without an explicit reset.
			return StateRequesting, nil
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
