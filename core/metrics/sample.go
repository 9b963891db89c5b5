package metrics

import (
	"context"
	"time"
)

type Stage string

const (
	StageSTT Stage = "stt"
	StageLLM Stage = "llm"
	StageTTS Stage = "tts"
)

// Sample is a single measurement of one pipeline stage for one turn.
type Sample struct {
	Stage     Stage
	TurnID    string
	Timestamp time.Time

	// Latency is the time from the stage's input being available to its
	// first output (time to first token, first audio, final transcript).
	Latency time.Duration
	// Duration is the total time the stage spent on the turn.
	Duration time.Duration

	InputTokens  int
	OutputTokens int
	// Characters is the number of characters synthesized or transcribed.
	Characters int
	// AudioDuration is the length of audio consumed or produced.
	AudioDuration time.Duration
}

// Sink receives batches of samples. Export errors are logged by the
// collector and never reach the pipeline.
type Sink interface {
	Export(ctx context.Context, samples []Sample) error
}
