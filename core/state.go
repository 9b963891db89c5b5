package orchestration

import "fmt"

// State is the response cycle state of an orchestrator.
type State int

const (
	// StateListening waits for the user to finish a turn.
	StateListening State = iota
	// StateAssembling captures a frame and builds the user message.
	StateAssembling
	// StateGenerating streams the model response.
	StateGenerating
	// StateSpeaking forwards synthesized audio to the playback sink.
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateAssembling:
		return "assembling"
	case StateGenerating:
		return "generating"
	case StateSpeaking:
		return "speaking"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func parseState(name string) State {
	for _, state := range []State{StateListening, StateAssembling, StateGenerating, StateSpeaking} {
		if state.String() == name {
			return state
		}
	}
	return StateListening
}
