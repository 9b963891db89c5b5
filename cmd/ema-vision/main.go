// Command ema-vision runs a local voice agent that can see: it listens on
// the default microphone, looks at the frame file kept fresh by a camera
// process and answers through the default speaker.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestration "github.com/koscakluka/ema-vision/core"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/audio/miniaudio"
	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/llms/groq"
	"github.com/koscakluka/ema-vision/core/llms/openai"
	"github.com/koscakluka/ema-vision/core/metrics"
	deepgramstt "github.com/koscakluka/ema-vision/core/speechtotext/deepgram"
	deepgramtts "github.com/koscakluka/ema-vision/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-vision/core/turns/semantic"
	"github.com/koscakluka/ema-vision/core/vision"
	"github.com/koscakluka/ema-vision/internal/config"
	"github.com/koscakluka/ema-vision/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

const shutdownTimeout = 5 * time.Second

// activityModel is shared by every session of the process.
var activityModel = audio.DefaultRMSModel()

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := run(); err != nil {
		slog.Error("ema-vision stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.DefaultEnvFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("failed to flush telemetry", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	collector, err := newMetricsCollector(cfg, registry)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := collector.Close(shutdownCtx); err != nil {
			slog.Warn("failed to flush metrics", "error", err)
		}
		logSummary(collector.Summary())
	}()
	if cfg.Metrics.ListenAddr != "" {
		go func() {
			if err := serveMetrics(ctx, cfg.Metrics.ListenAddr, registry); err != nil {
				slog.Warn("metrics endpoint stopped", "error", err)
			}
		}()
	}

	device, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to open audio devices: %w", err)
	}
	defer device.Close()

	tts, err := deepgramtts.NewTextToSpeechClient(cfg.Deepgram.APIKey, cfg.TTS.Voice,
		deepgramtts.WithEncodingInfo(device.EncodingInfo()))
	if err != nil {
		return fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	var o *orchestration.Orchestrator
	opts := []orchestration.OrchestratorOption{
		orchestration.WithConfig(cfg.Orchestrator()),
		orchestration.WithSpeechToTextClient(deepgramstt.NewTranscriptionClient(cfg.Deepgram.APIKey)),
		orchestration.WithStreamingLLM(openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Model)),
		orchestration.WithTextToSpeechClient(tts),
		orchestration.WithActivityDetector(activityModel.NewAnalyzer()),
		orchestration.WithPlaybackSink(device),
		orchestration.WithMetricsCollector(collector),
		orchestration.WithInputEncodingInfo(device.EncodingInfo()),
		orchestration.WithOutputEncodingInfo(device.EncodingInfo()),
	}
	if cfg.EOU.APIKey != "" {
		model := semantic.NewModel(groq.NewClient(cfg.EOU.APIKey, cfg.EOU.Model),
			semantic.WithHistory(func() conversations.Context { return o.Conversation() }))
		opts = append(opts, orchestration.WithEndOfUtteranceModel(model))
	}
	if cfg.Vision.FramePath != "" {
		opts = append(opts, orchestration.WithVideoSource(vision.NewFileSource(cfg.Vision.FramePath),
			vision.WithMaxSize(cfg.Vision.MaxWidth, cfg.Vision.MaxHeight),
			vision.WithJPEGQuality(cfg.Vision.JPEGQuality),
		))
	} else {
		slog.Info("no frame file configured, answering without vision")
	}

	o = orchestration.NewOrchestrator(opts...)
	defer o.Close()

	if err := o.Orchestrate(ctx,
		orchestration.WithStateChangedCallback(func(from, to orchestration.State) {
			slog.Debug("state changed", "from", from.String(), "to", to.String())
		}),
		orchestration.WithTranscriptionCallback(func(transcript string) {
			slog.Info("user", "transcript", transcript)
		}),
		orchestration.WithSnapshotCallback(func(trackID string, width, height int) {
			slog.Debug("snapshot attached", "track_id", trackID, "width", width, "height", height)
		}),
		orchestration.WithResponseEndCallback(func(response string) {
			slog.Info("assistant", "response", response)
		}),
		orchestration.WithCancellationCallback(func() {
			slog.Info("assistant interrupted")
		}),
		orchestration.WithFailureCallback(func(err error) {
			slog.Warn("response failed", "error", err)
		}),
	); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}

	if err := device.StartCapture(ctx, func(frame []byte) {
		if err := o.SendAudio(frame); err != nil && !errors.Is(err, orchestration.ErrClosed) {
			slog.Debug("failed to process microphone audio", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to start microphone: %w", err)
	}
	defer func() {
		if err := device.StopCapture(); err != nil {
			slog.Warn("failed to stop microphone", "error", err)
		}
	}()

	if cfg.Agent.Greeting != "" {
		if err := o.Say(ctx, cfg.Agent.Greeting); err != nil {
			slog.Warn("failed to greet", "error", err)
		}
	}

	slog.Info("listening, press Ctrl+C to stop")
	select {
	case <-ctx.Done():
	case <-o.Done():
	}
	return nil
}

func logSummary(summary metrics.UsageSummary) {
	for stage, usage := range summary.Stages {
		slog.Info("usage",
			"stage", string(stage),
			"count", usage.Count,
			"average_latency", usage.AverageLatency(),
			"input_tokens", usage.InputTokens,
			"output_tokens", usage.OutputTokens,
			"characters", usage.Characters,
			"audio_duration", usage.AudioDuration,
		)
	}
	if summary.Dropped > 0 {
		slog.Warn("metrics samples dropped", "count", summary.Dropped)
	}
}

func newMetricsCollector(cfg config.Config, registerer prometheus.Registerer) (*metrics.Collector, error) {
	promSink, err := metrics.NewPrometheusSink(registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus sink: %w", err)
	}
	otelSink, err := metrics.NewOTelSink(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create otel sink: %w", err)
	}

	return metrics.NewCollector(
		metrics.WithSinks(metrics.LogSink{}, otelSink, promSink),
		metrics.WithFlushInterval(cfg.Metrics.FlushInterval),
	), nil
}
