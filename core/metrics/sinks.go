package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LogSink writes every sample as a structured log record.
type LogSink struct{}

func (LogSink) Export(ctx context.Context, samples []Sample) error {
	for _, s := range samples {
		logger.InfoContext(ctx, "pipeline metrics",
			"stage", string(s.Stage),
			"turn_id", s.TurnID,
			"latency", s.Latency,
			"duration", s.Duration,
			"input_tokens", s.InputTokens,
			"output_tokens", s.OutputTokens,
			"characters", s.Characters,
			"audio_duration", s.AudioDuration,
		)
	}
	return nil
}

// OTelSink records samples on OpenTelemetry instruments. It uses the global
// meter provider unless one is passed in.
type OTelSink struct {
	latency      metric.Float64Histogram
	duration     metric.Float64Histogram
	tokens       metric.Int64Counter
	characters   metric.Int64Counter
	audioSeconds metric.Float64Counter
}

func NewOTelSink(provider metric.MeterProvider) (*OTelSink, error) {
	m := meter
	if provider != nil {
		m = provider.Meter(scopeName)
	}

	latency, err := m.Float64Histogram("ema.pipeline.latency",
		metric.WithUnit("s"),
		metric.WithDescription("Time to first output of a pipeline stage"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	duration, err := m.Float64Histogram("ema.pipeline.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Total time spent in a pipeline stage"))
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	tokens, err := m.Int64Counter("ema.pipeline.tokens",
		metric.WithDescription("Tokens consumed by the language model"))
	if err != nil {
		return nil, fmt.Errorf("failed to create token counter: %w", err)
	}
	characters, err := m.Int64Counter("ema.pipeline.characters",
		metric.WithDescription("Characters transcribed or synthesized"))
	if err != nil {
		return nil, fmt.Errorf("failed to create character counter: %w", err)
	}
	audioSeconds, err := m.Float64Counter("ema.pipeline.audio",
		metric.WithUnit("s"),
		metric.WithDescription("Audio consumed or produced"))
	if err != nil {
		return nil, fmt.Errorf("failed to create audio counter: %w", err)
	}

	return &OTelSink{
		latency:      latency,
		duration:     duration,
		tokens:       tokens,
		characters:   characters,
		audioSeconds: audioSeconds,
	}, nil
}

func (s *OTelSink) Export(ctx context.Context, samples []Sample) error {
	for _, sample := range samples {
		stage := metric.WithAttributes(attribute.String("stage", string(sample.Stage)))

		s.latency.Record(ctx, sample.Latency.Seconds(), stage)
		s.duration.Record(ctx, sample.Duration.Seconds(), stage)
		if sample.InputTokens > 0 {
			s.tokens.Add(ctx, int64(sample.InputTokens), metric.WithAttributes(
				attribute.String("stage", string(sample.Stage)),
				attribute.String("type", "input")))
		}
		if sample.OutputTokens > 0 {
			s.tokens.Add(ctx, int64(sample.OutputTokens), metric.WithAttributes(
				attribute.String("stage", string(sample.Stage)),
				attribute.String("type", "output")))
		}
		if sample.Characters > 0 {
			s.characters.Add(ctx, int64(sample.Characters), stage)
		}
		if sample.AudioDuration > 0 {
			s.audioSeconds.Add(ctx, sample.AudioDuration.Seconds(), stage)
		}
	}
	return nil
}
