package orchestration

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	config := DefaultConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}
	if !config.AllowInterruptions {
		t.Fatalf("expected interruptions to be allowed by default")
	}
	if config.MaxEndpointingDelay != 5*time.Second {
		t.Fatalf("expected 5s max endpointing delay, got %s", config.MaxEndpointingDelay)
	}
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "zero activation threshold", modify: func(c *Config) { c.ActivationThreshold = 0 }},
		{name: "activation threshold above one", modify: func(c *Config) { c.ActivationThreshold = 1.5 }},
		{name: "negative unlikely threshold", modify: func(c *Config) { c.UnlikelyThreshold = -0.1 }},
		{name: "negative min delay", modify: func(c *Config) { c.MinEndpointingDelay = -time.Millisecond }},
		{name: "max below min", modify: func(c *Config) {
			c.MinEndpointingDelay = time.Second
			c.MaxEndpointingDelay = 500 * time.Millisecond
		}},
		{name: "zero snapshot timeout", modify: func(c *Config) { c.SnapshotTimeout = 0 }},
		{name: "negative transcript timeout", modify: func(c *Config) { c.TranscriptTimeout = -time.Second }},
		{name: "negative synthesis idle timeout", modify: func(c *Config) { c.SynthesisIdleTimeout = -time.Second }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.modify(&config)
			if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestStateStringRoundTrip(t *testing.T) {
	for _, state := range []State{StateListening, StateAssembling, StateGenerating, StateSpeaking} {
		if parsed := parseState(state.String()); parsed != state {
			t.Fatalf("expected %s, got %s", state, parsed)
		}
	}
	if got := State(42).String(); got != "State(42)" {
		t.Fatalf("unexpected unknown state name %q", got)
	}
}
