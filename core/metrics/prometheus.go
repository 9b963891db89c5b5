package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ema"

// PrometheusSink exposes samples as Prometheus collectors registered on
// the given registerer.
type PrometheusSink struct {
	latency    *prometheus.HistogramVec
	duration   *prometheus.HistogramVec
	samples    *prometheus.CounterVec
	tokens     *prometheus.CounterVec
	characters *prometheus.CounterVec
	audio      *prometheus.CounterVec
}

func NewPrometheusSink(registerer prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_latency_seconds",
				Help:      "Time to first output of a pipeline stage in seconds",
				Buckets:   []float64{.05, .1, .25, .5, .75, 1, 1.5, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Total time spent in a pipeline stage in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		samples: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_samples_total",
				Help:      "Total number of collected pipeline samples",
			},
			[]string{"stage"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total tokens consumed by the language model",
			},
			[]string{"type"}, // input, output
		),
		characters: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_characters_total",
				Help:      "Total characters transcribed or synthesized",
			},
			[]string{"stage"},
		),
		audio: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_audio_seconds_total",
				Help:      "Total audio consumed or produced in seconds",
			},
			[]string{"stage"},
		),
	}

	for _, c := range []prometheus.Collector{s.latency, s.duration, s.samples, s.tokens, s.characters, s.audio} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return s, nil
}

func (s *PrometheusSink) Export(_ context.Context, samples []Sample) error {
	for _, sample := range samples {
		stage := string(sample.Stage)

		s.samples.WithLabelValues(stage).Inc()
		s.latency.WithLabelValues(stage).Observe(sample.Latency.Seconds())
		s.duration.WithLabelValues(stage).Observe(sample.Duration.Seconds())
		if sample.InputTokens > 0 {
			s.tokens.WithLabelValues("input").Add(float64(sample.InputTokens))
		}
		if sample.OutputTokens > 0 {
			s.tokens.WithLabelValues("output").Add(float64(sample.OutputTokens))
		}
		if sample.Characters > 0 {
			s.characters.WithLabelValues(stage).Add(float64(sample.Characters))
		}
		if sample.AudioDuration > 0 {
			s.audio.WithLabelValues(stage).Add(sample.AudioDuration.Seconds())
		}
	}
	return nil
}
