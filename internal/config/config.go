// Package config loads the ema-vision binary settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/spf13/viper"
)

const (
	DefaultEnvFile  = ".env.local"
	DefaultGreeting = "Hey, how can I help you today?"
)

type Config struct {
	Agent struct {
		ActivationThreshold  float64
		MinEndpointingDelay  time.Duration
		MaxEndpointingDelay  time.Duration
		UnlikelyThreshold    float64
		SystemPreamble       string
		AllowInterruptions   bool
		SnapshotTimeout      time.Duration
		TranscriptTimeout    time.Duration
		SynthesisIdleTimeout time.Duration
		Greeting             string
		FallbackMessage      string
	}
	Vision struct {
		FramePath   string
		MaxWidth    int
		MaxHeight   int
		JPEGQuality int
	}
	Deepgram struct {
		APIKey string
	}
	LLM struct {
		Model  string
		APIKey string
	}
	EOU struct {
		Model  string
		APIKey string
	}
	TTS struct {
		Voice string
	}
	Metrics struct {
		ListenAddr    string
		FlushInterval time.Duration
	}
	Telemetry struct {
		OTLPEndpoint string
	}
}

// Load reads envFile, when present, and then the process environment.
// Values already set in the environment win over the file.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := orchestration.DefaultConfig()
	v.SetDefault("agent.activation_threshold", defaults.ActivationThreshold)
	v.SetDefault("agent.min_endpointing_delay", defaults.MinEndpointingDelay)
	v.SetDefault("agent.max_endpointing_delay", defaults.MaxEndpointingDelay)
	v.SetDefault("agent.unlikely_threshold", defaults.UnlikelyThreshold)
	v.SetDefault("agent.system_preamble", defaults.SystemPreamble)
	v.SetDefault("agent.allow_interruptions", defaults.AllowInterruptions)
	v.SetDefault("agent.snapshot_timeout", defaults.SnapshotTimeout)
	v.SetDefault("agent.transcript_timeout", defaults.TranscriptTimeout)
	v.SetDefault("agent.synthesis_idle_timeout", defaults.SynthesisIdleTimeout)
	v.SetDefault("agent.greeting", DefaultGreeting)
	v.SetDefault("agent.fallback_message", "")

	v.SetDefault("vision.frame_path", "")
	v.SetDefault("vision.max_width", 1024)
	v.SetDefault("vision.max_height", 1024)
	v.SetDefault("vision.jpeg_quality", 80)

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("eou.model", "llama-3.1-8b-instant")
	v.SetDefault("tts.voice", "")

	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.flush_interval", 10*time.Second)
	v.SetDefault("telemetry.otlp_endpoint", "")

	// Provider keys use the names their SDKs document.
	_ = v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("eou.api_key", "EOU_API_KEY", "GROQ_API_KEY")
	_ = v.BindEnv("telemetry.otlp_endpoint", "TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")

	return v
}

func fromViper(v *viper.Viper) (Config, error) {
	var c Config
	c.Agent.ActivationThreshold = v.GetFloat64("agent.activation_threshold")
	c.Agent.MinEndpointingDelay = v.GetDuration("agent.min_endpointing_delay")
	c.Agent.MaxEndpointingDelay = v.GetDuration("agent.max_endpointing_delay")
	c.Agent.UnlikelyThreshold = v.GetFloat64("agent.unlikely_threshold")
	c.Agent.SystemPreamble = v.GetString("agent.system_preamble")
	c.Agent.AllowInterruptions = v.GetBool("agent.allow_interruptions")
	c.Agent.SnapshotTimeout = v.GetDuration("agent.snapshot_timeout")
	c.Agent.TranscriptTimeout = v.GetDuration("agent.transcript_timeout")
	c.Agent.SynthesisIdleTimeout = v.GetDuration("agent.synthesis_idle_timeout")
	c.Agent.Greeting = v.GetString("agent.greeting")
	c.Agent.FallbackMessage = v.GetString("agent.fallback_message")

	c.Vision.FramePath = v.GetString("vision.frame_path")
	c.Vision.MaxWidth = v.GetInt("vision.max_width")
	c.Vision.MaxHeight = v.GetInt("vision.max_height")
	c.Vision.JPEGQuality = v.GetInt("vision.jpeg_quality")

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.LLM.Model = v.GetString("llm.model")
	c.LLM.APIKey = v.GetString("llm.api_key")
	c.EOU.Model = v.GetString("eou.model")
	c.EOU.APIKey = v.GetString("eou.api_key")
	c.TTS.Voice = v.GetString("tts.voice")

	c.Metrics.ListenAddr = v.GetString("metrics.listen_addr")
	c.Metrics.FlushInterval = v.GetDuration("metrics.flush_interval")
	c.Telemetry.OTLPEndpoint = v.GetString("telemetry.otlp_endpoint")

	if err := c.Orchestrator().Validate(); err != nil {
		return Config{}, err
	}
	if c.Vision.JPEGQuality < 1 || c.Vision.JPEGQuality > 100 {
		return Config{}, fmt.Errorf("%w: jpeg quality %d outside [1, 100]", orchestration.ErrInvalidConfig, c.Vision.JPEGQuality)
	}
	return c, nil
}

// Orchestrator returns the agent settings as an orchestrator config.
func (c Config) Orchestrator() orchestration.Config {
	config := orchestration.DefaultConfig()
	config.ActivationThreshold = c.Agent.ActivationThreshold
	config.MinEndpointingDelay = c.Agent.MinEndpointingDelay
	config.MaxEndpointingDelay = c.Agent.MaxEndpointingDelay
	config.UnlikelyThreshold = c.Agent.UnlikelyThreshold
	config.SystemPreamble = c.Agent.SystemPreamble
	config.AllowInterruptions = c.Agent.AllowInterruptions
	config.SnapshotTimeout = c.Agent.SnapshotTimeout
	config.TranscriptTimeout = c.Agent.TranscriptTimeout
	config.SynthesisIdleTimeout = c.Agent.SynthesisIdleTimeout
	config.FallbackMessage = c.Agent.FallbackMessage
	return config
}
