package turns

import (
	"context"
	"time"
)

type EventKind string

const (
	EventTurnStarted EventKind = "turn_started"
	EventTurnEnded   EventKind = "turn_ended"
)

// Event marks the start or end of a user turn. Both events of one turn
// carry the same TurnID.
type Event struct {
	Kind          EventKind
	Timestamp     time.Time
	ParticipantID string
	TurnID        string
}

// EndOfUtteranceModel estimates how likely it is that the user finished
// speaking given the latest transcript.
type EndOfUtteranceModel interface {
	PredictEndOfTurn(ctx context.Context, transcript string) (float64, error)
}
