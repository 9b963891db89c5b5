package turns

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateSpeaking
	StatePendingEnd
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePendingEnd:
		return "pending_end"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Sample is one voice activity observation.
type Sample struct {
	At          time.Time
	Probability float64
}

// Detector turns voice activity samples into turn events. It is driven
// purely by sample timestamps and explicit Advance calls, which keeps it
// deterministic; Runner adapts it to wall-clock time.
type Detector struct {
	participantID string
	config        Config
	newTurnID     func() string

	mu             sync.Mutex
	state          State
	turnID         string
	fallAt         time.Time
	endOfUtterance *float64
}

func NewDetector(participantID string, opts ...DetectorOption) *Detector {
	d := &Detector{
		participantID: participantID,
		config:        DefaultConfig(),
		newTurnID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.config.DeactivationThreshold <= 0 {
		d.config.DeactivationThreshold = d.config.ActivationThreshold
	}
	if d.config.MaxEndpointingDelay < d.config.MinEndpointingDelay {
		d.config.MaxEndpointingDelay = d.config.MinEndpointingDelay
	}
	return d
}

func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// TurnID returns the id of the open turn, or an empty string when idle.
func (d *Detector) TurnID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turnID
}

// Process applies a sample and returns the events it produced, in order.
// A pending end whose deadline is at or before the sample time is resolved
// first, so a single sample may both end a turn and start the next one.
func (d *Detector) Process(sample Sample) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	var events []Event
	if ended, ok := d.expire(sample.At); ok {
		events = append(events, ended)
	}

	switch d.state {
	case StateIdle:
		if sample.Probability >= d.config.ActivationThreshold {
			d.state = StateSpeaking
			d.turnID = d.newTurnID()
			d.endOfUtterance = nil
			events = append(events, d.event(EventTurnStarted, sample.At))
		}
	case StateSpeaking:
		if sample.Probability < d.config.DeactivationThreshold {
			d.state = StatePendingEnd
			d.fallAt = sample.At
		}
	case StatePendingEnd:
		if sample.Probability >= d.config.ActivationThreshold {
			d.state = StateSpeaking
			d.fallAt = time.Time{}
		}
	}

	return events
}

// Advance resolves a pending end whose deadline is at or before now.
func (d *Detector) Advance(now time.Time) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ended, ok := d.expire(now); ok {
		return []Event{ended}
	}
	return nil
}

// SetEndOfUtterance records the semantic end-of-utterance probability for
// the open turn. A pending deadline is recomputed from the original fall
// time.
func (d *Detector) SetEndOfUtterance(probability float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateIdle {
		return
	}
	d.endOfUtterance = &probability
}

// Deadline returns the time at which the pending turn end fires.
func (d *Detector) Deadline() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StatePendingEnd {
		return time.Time{}, false
	}
	return d.deadline(), true
}

func (d *Detector) expire(now time.Time) (Event, bool) {
	if d.state != StatePendingEnd || now.Before(d.deadline()) {
		return Event{}, false
	}

	ended := d.event(EventTurnEnded, d.deadline())
	d.state = StateIdle
	d.turnID = ""
	d.fallAt = time.Time{}
	d.endOfUtterance = nil
	return ended, true
}

func (d *Detector) deadline() time.Time {
	return d.fallAt.Add(d.endpointingDelay())
}

func (d *Detector) endpointingDelay() time.Duration {
	if d.endOfUtterance != nil && *d.endOfUtterance < d.config.UnlikelyThreshold {
		return d.config.MaxEndpointingDelay
	}
	return d.config.MinEndpointingDelay
}

func (d *Detector) event(kind EventKind, at time.Time) Event {
	return Event{
		Kind:          kind,
		Timestamp:     at,
		ParticipantID: d.participantID,
		TurnID:        d.turnID,
	}
}
