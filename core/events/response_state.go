package events

const (
	// KindResponseStateChanged identifies orchestrator state transitions.
	KindResponseStateChanged Kind = "response_state.changed"
	// KindResponseCompleted identifies a response appended to the conversation.
	KindResponseCompleted Kind = "response_state.completed"
	// KindResponseCancelled identifies a response abandoned on barge-in.
	KindResponseCancelled Kind = "response_state.cancelled"
	// KindResponseFailed identifies a response aborted by a backend failure.
	KindResponseFailed Kind = "response_state.failed"
)

// ResponseStateChanged carries an orchestrator state transition.
type ResponseStateChanged struct {
	Base
	From string
	To   string
}

// NewResponseStateChanged creates a state changed event.
func NewResponseStateChanged(from, to string) ResponseStateChanged {
	return ResponseStateChanged{Base: NewBase(KindResponseStateChanged), From: from, To: to}
}

type ResponseCompleted struct {
	Base
	ResponseID string
	Text       string
}

// NewResponseCompleted creates a response completed event.
func NewResponseCompleted(responseID, text string) ResponseCompleted {
	return ResponseCompleted{Base: NewBase(KindResponseCompleted), ResponseID: responseID, Text: text}
}

type ResponseCancelled struct {
	Base
	ResponseID string
}

// NewResponseCancelled creates a response cancelled event.
func NewResponseCancelled(responseID string) ResponseCancelled {
	return ResponseCancelled{Base: NewBase(KindResponseCancelled), ResponseID: responseID}
}

type ResponseFailed struct {
	Base
	ResponseID string
	Err        error
}

// NewResponseFailed creates a response failed event.
func NewResponseFailed(responseID string, err error) ResponseFailed {
	return ResponseFailed{Base: NewBase(KindResponseFailed), ResponseID: responseID, Err: err}
}
