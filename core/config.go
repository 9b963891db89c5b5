package orchestration

import (
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-vision/core/turns"
)

const (
	DefaultSnapshotTimeout   = 2 * time.Second
	DefaultTranscriptTimeout = 1500 * time.Millisecond
	// DefaultSynthesisIdleTimeout must outlast the pauses a provider takes
	// between sentences while the model streams more text.
	DefaultSynthesisIdleTimeout = 10 * time.Second
	DefaultParticipantID        = "user"

	DefaultSystemPreamble = "You are a voice assistant that can both see and hear. " +
		"You should use short and concise responses, avoiding unpronounceable punctuation. " +
		"When you see an image in our conversation, naturally incorporate what you see " +
		"into your response. Keep visual descriptions brief but informative."
)

var ErrInvalidConfig = errors.New("invalid orchestrator config")

type Config struct {
	// ParticipantID identifies the remote participant in turn events.
	ParticipantID string

	ActivationThreshold float64
	MinEndpointingDelay time.Duration
	MaxEndpointingDelay time.Duration
	// UnlikelyThreshold is the end-of-utterance probability below which the
	// maximum endpointing delay is used.
	UnlikelyThreshold float64

	SystemPreamble string
	// AllowInterruptions lets a new user turn cancel the active response.
	// When false, user turns that end while a response is active are
	// dropped.
	AllowInterruptions bool

	SnapshotTimeout time.Duration
	// TranscriptTimeout bounds how long a finished turn waits for the final
	// transcript before using the segments received so far.
	TranscriptTimeout time.Duration
	// SynthesisIdleTimeout fails a response whose speech synthesis has
	// neither accepted text nor produced audio for this long. Zero disables
	// it.
	SynthesisIdleTimeout time.Duration
	// FallbackMessage is spoken when generation or synthesis fails. Empty
	// disables it.
	FallbackMessage string
}

func DefaultConfig() Config {
	return Config{
		ParticipantID:       DefaultParticipantID,
		ActivationThreshold: turns.DefaultActivationThreshold,
		MinEndpointingDelay: turns.DefaultMinEndpointingDelay,
		MaxEndpointingDelay: turns.DefaultMaxEndpointingDelay,
		UnlikelyThreshold:   turns.DefaultUnlikelyThreshold,
		SystemPreamble:      DefaultSystemPreamble,
		AllowInterruptions:  true,
		SnapshotTimeout:     DefaultSnapshotTimeout,
		TranscriptTimeout:   DefaultTranscriptTimeout,

		SynthesisIdleTimeout: DefaultSynthesisIdleTimeout,
	}
}

func (c Config) Validate() error {
	switch {
	case c.ActivationThreshold <= 0 || c.ActivationThreshold > 1:
		return fmt.Errorf("%w: activation threshold %v outside (0, 1]", ErrInvalidConfig, c.ActivationThreshold)
	case c.UnlikelyThreshold < 0 || c.UnlikelyThreshold > 1:
		return fmt.Errorf("%w: unlikely threshold %v outside [0, 1]", ErrInvalidConfig, c.UnlikelyThreshold)
	case c.MinEndpointingDelay < 0:
		return fmt.Errorf("%w: negative min endpointing delay", ErrInvalidConfig)
	case c.MaxEndpointingDelay < c.MinEndpointingDelay:
		return fmt.Errorf("%w: max endpointing delay %s below min %s", ErrInvalidConfig, c.MaxEndpointingDelay, c.MinEndpointingDelay)
	case c.SnapshotTimeout <= 0:
		return fmt.Errorf("%w: snapshot timeout must be positive", ErrInvalidConfig)
	case c.TranscriptTimeout < 0:
		return fmt.Errorf("%w: negative transcript timeout", ErrInvalidConfig)
	case c.SynthesisIdleTimeout < 0:
		return fmt.Errorf("%w: negative synthesis idle timeout", ErrInvalidConfig)
	}
	return nil
}

func (c Config) turnsConfig() turns.Config {
	return turns.Config{
		ActivationThreshold: c.ActivationThreshold,
		MinEndpointingDelay: c.MinEndpointingDelay,
		MaxEndpointingDelay: c.MaxEndpointingDelay,
		UnlikelyThreshold:   c.UnlikelyThreshold,
	}
}
