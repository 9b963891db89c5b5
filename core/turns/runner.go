package turns

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Runner drives a Detector in real time: activity probabilities are stamped
// with the clock as they arrive and pending turn ends fire from a timer.
// Events are delivered to the handler one at a time in detector order, so
// the handler must not block.
type Runner struct {
	detector *Detector
	handler  func(Event)
	model    EndOfUtteranceModel
	now      func() time.Time

	mu   sync.Mutex
	wake chan struct{}
}

type RunnerOption func(*Runner)

// WithEndOfUtteranceModel enables semantic endpointing using transcripts
// passed to ObserveTranscript.
func WithEndOfUtteranceModel(model EndOfUtteranceModel) RunnerOption {
	return func(r *Runner) {
		r.model = model
	}
}

func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(detector *Detector, handler func(Event), opts ...RunnerOption) *Runner {
	r := &Runner{
		detector: detector,
		handler:  handler,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) Detector() *Detector {
	return r.detector
}

// ObserveActivity feeds one activity probability measured now.
func (r *Runner) ObserveActivity(probability float64) {
	r.mu.Lock()
	events := r.detector.Process(Sample{At: r.now(), Probability: probability})
	r.emit(events)
	r.mu.Unlock()

	r.poke()
}

// ObserveTranscript classifies the latest transcript with the configured
// end-of-utterance model and feeds the result to the detector. It is a
// no-op without a model.
func (r *Runner) ObserveTranscript(ctx context.Context, transcript string) {
	if r.model == nil || transcript == "" {
		return
	}
	turnID := r.detector.TurnID()
	if turnID == "" {
		return
	}

	ctx, span := tracer.Start(ctx, "predict end of turn")
	defer span.End()
	span.SetAttributes(attribute.String("turn.id", turnID))

	probability, err := r.model.PredictEndOfTurn(ctx, transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "end of turn prediction failed")
		logger.WarnContext(ctx, "failed to predict end of turn", "turn_id", turnID, "error", err)
		return
	}
	span.SetAttributes(attribute.Float64("turn.end_of_utterance_probability", probability))

	r.mu.Lock()
	if r.detector.TurnID() == turnID {
		r.detector.SetEndOfUtterance(probability)
	}
	r.mu.Unlock()

	r.poke()
}

// Run fires pending turn ends until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}

		var fire <-chan time.Time
		if deadline, ok := r.detector.Deadline(); ok {
			timer.Reset(max(0, deadline.Sub(r.now())))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-fire:
			r.mu.Lock()
			events := r.detector.Advance(r.now())
			r.emit(events)
			r.mu.Unlock()
		}
	}
}

func (r *Runner) emit(events []Event) {
	if r.handler == nil {
		return
	}
	for _, event := range events {
		r.handler(event)
	}
}

func (r *Runner) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}
