package turns

import "time"

const (
	DefaultActivationThreshold = 0.5
	DefaultMinEndpointingDelay = 500 * time.Millisecond
	DefaultMaxEndpointingDelay = 5 * time.Second
	DefaultUnlikelyThreshold   = 0.15
)

type Config struct {
	// ActivationThreshold is the activity probability at or above which
	// speech is considered started.
	ActivationThreshold float64
	// DeactivationThreshold is the activity probability below which speech
	// is considered paused. Zero means ActivationThreshold.
	DeactivationThreshold float64
	MinEndpointingDelay   time.Duration
	MaxEndpointingDelay   time.Duration
	// UnlikelyThreshold is the end-of-utterance probability below which the
	// longer endpointing delay is used.
	UnlikelyThreshold float64
}

func DefaultConfig() Config {
	return Config{
		ActivationThreshold: DefaultActivationThreshold,
		MinEndpointingDelay: DefaultMinEndpointingDelay,
		MaxEndpointingDelay: DefaultMaxEndpointingDelay,
		UnlikelyThreshold:   DefaultUnlikelyThreshold,
	}
}

type DetectorOption func(*Detector)

func WithConfig(config Config) DetectorOption {
	return func(d *Detector) {
		d.config = config
	}
}

func WithActivationThreshold(threshold float64) DetectorOption {
	return func(d *Detector) {
		d.config.ActivationThreshold = threshold
	}
}

func WithEndpointingDelays(minDelay, maxDelay time.Duration) DetectorOption {
	return func(d *Detector) {
		d.config.MinEndpointingDelay = minDelay
		d.config.MaxEndpointingDelay = maxDelay
	}
}

func WithTurnIDGenerator(newID func() string) DetectorOption {
	return func(d *Detector) {
		if newID != nil {
			d.newTurnID = newID
		}
	}
}
