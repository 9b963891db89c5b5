package orchestration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

type responseKind int

const (
	// responseToTurn answers a user turn closed by the turn detector.
	responseToTurn responseKind = iota
	// responseToPrompt answers typed text.
	responseToPrompt
	// responseSay speaks fixed text without the model.
	responseSay
)

func (k responseKind) String() string {
	switch k {
	case responseToTurn:
		return "turn"
	case responseToPrompt:
		return "prompt"
	case responseSay:
		return "say"
	}
	return "unknown"
}

type responseInput struct {
	kind   responseKind
	turnID string
	// endedAt is when the user turn ended; zero for prompts and utterances.
	endedAt time.Time
	text    string
}

const (
	responseRunning int32 = iota
	responseCancelled
	responseCompleted
)

// activeResponse is the single in-flight response of an orchestrator.
// Cancellation is both a context cancellation, which unblocks workers, and
// a flag polled for every streamed chunk.
type activeResponse struct {
	id    string
	input responseInput

	ctx    context.Context
	cancel context.CancelFunc
	status atomic.Int32
	done   chan struct{}

	mu        sync.Mutex
	synthesis *speechSynthesis
}

func newActiveResponse(ctx context.Context, id string, input responseInput) *activeResponse {
	ctx, cancel := context.WithCancel(ctx)
	return &activeResponse{
		id:     id,
		input:  input,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel abandons the response. It reports false when the response already
// completed or was cancelled before.
func (r *activeResponse) Cancel() bool {
	if !r.status.CompareAndSwap(responseRunning, responseCancelled) {
		return false
	}
	r.cancel()

	r.mu.Lock()
	synthesis := r.synthesis
	r.mu.Unlock()
	if synthesis != nil {
		_ = synthesis.Cancel()
	}
	return true
}

// complete marks the response as finished. It reports false when the
// response was cancelled first, in which case nothing may be recorded.
func (r *activeResponse) complete() bool {
	return r.status.CompareAndSwap(responseRunning, responseCompleted)
}

func (r *activeResponse) IsCancelled() bool {
	return r.status.Load() == responseCancelled
}

func (r *activeResponse) attachSynthesis(synthesis *speechSynthesis) {
	r.mu.Lock()
	r.synthesis = synthesis
	r.mu.Unlock()

	if r.IsCancelled() {
		_ = synthesis.Cancel()
	}
}

func (r *activeResponse) detachSynthesis() {
	r.mu.Lock()
	r.synthesis = nil
	r.mu.Unlock()
}

// Done is closed once every worker of the response has returned.
func (r *activeResponse) Done() <-chan struct{} {
	return r.done
}
