package orchestration

import (
	"context"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/metrics"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/core/turns"
	"github.com/koscakluka/ema-vision/core/vision"
)

type OrchestratorOption func(*Orchestrator)

type SpeechToText interface {
	Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
}

func WithSpeechToTextClient(client SpeechToText) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speechToText.set(client)
	}
}

type StreamingLLM interface {
	StreamResponse(ctx context.Context, conversation conversations.Context) llms.Stream
}

func WithStreamingLLM(client StreamingLLM) OrchestratorOption {
	return func(o *Orchestrator) { o.llm = client }
}

type TextToSpeech interface {
	NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error)
}

func WithTextToSpeechClient(client TextToSpeech) OrchestratorOption {
	return func(o *Orchestrator) { o.textToSpeech = client }
}

// ActivityDetector scores one chunk of input audio with a voice activity
// probability in [0, 1].
type ActivityDetector interface {
	Analyze(ctx context.Context, audio []byte) (float64, error)
}

// WithActivityDetector sets the voice activity detector driving the turn
// detector. Without one, speech started/ended signals from the
// speech-to-text client are used instead.
func WithActivityDetector(detector ActivityDetector) OrchestratorOption {
	return func(o *Orchestrator) { o.activity = detector }
}

// WithEndOfUtteranceModel enables semantic endpointing on final
// transcripts.
func WithEndOfUtteranceModel(model turns.EndOfUtteranceModel) OrchestratorOption {
	return func(o *Orchestrator) { o.endOfUtterance = model }
}

// SnapshotCapturer captures the participant's current video frame. A nil
// snapshot with a nil error means no video is published.
type SnapshotCapturer interface {
	Capture(ctx context.Context) (*vision.Snapshot, error)
}

func WithSnapshotCapturer(capturer SnapshotCapturer) OrchestratorOption {
	return func(o *Orchestrator) { o.snapshots = capturer }
}

// WithVideoSource captures frames from source with a [vision.Service]
// bounded by the configured snapshot timeout.
func WithVideoSource(source vision.VideoSource, opts ...vision.ServiceOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.videoSource = source
		o.visionOptions = append(o.visionOptions, opts...)
	}
}

// PlaybackSink receives synthesized audio for the remote participant.
type PlaybackSink interface {
	SendAudio(audio []byte) error
	// ClearBuffer drops any audio queued but not yet played.
	ClearBuffer()
}

func WithPlaybackSink(sink PlaybackSink) OrchestratorOption {
	return func(o *Orchestrator) { o.playback = sink }
}

type MetricsCollector interface {
	Collect(sample metrics.Sample)
}

func WithMetricsCollector(collector MetricsCollector) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = collector }
}

func WithConfig(config Config) OrchestratorOption {
	return func(o *Orchestrator) { o.config = config }
}

// WithInputEncodingInfo describes the audio passed to SendAudio.
func WithInputEncodingInfo(encodingInfo audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) { o.inputEncoding = encodingInfo }
}

// WithOutputEncodingInfo describes the audio expected by the playback sink.
func WithOutputEncodingInfo(encodingInfo audio.EncodingInfo) OrchestratorOption {
	return func(o *Orchestrator) { o.outputEncoding = encodingInfo }
}

func WithTurnDetectorOptions(opts ...turns.DetectorOption) OrchestratorOption {
	return func(o *Orchestrator) { o.detectorOptions = append(o.detectorOptions, opts...) }
}

func WithConversationOptions(opts ...conversations.BuilderOption) OrchestratorOption {
	return func(o *Orchestrator) { o.builderOptions = append(o.builderOptions, opts...) }
}

func WithResponseIDGenerator(newID func() string) OrchestratorOption {
	return func(o *Orchestrator) {
		if newID != nil {
			o.newResponseID = newID
		}
	}
}

type OrchestrateOptions struct {
	onEvent                func(event events.Event)
	onStateChanged         func(from, to State)
	onTurnStarted          func(turnID string)
	onTurnEnded            func(turnID string)
	onTranscription        func(transcript string)
	onInterimTranscription func(transcript string)
	onSnapshot             func(trackID string, width, height int)
	onResponse             func(response string)
	onResponseEnd          func(response string)
	onCancellation         func()
	onFailure              func(err error)
	onInputAudio           func(audio []byte)
	onAudio                func(audio []byte)
	onAudioEnded           func(transcript string)
}

type OrchestrateOption func(*OrchestrateOptions)

// WithEventCallback registers a callback receiving every typed event before
// the specific callbacks run.
func WithEventCallback(callback func(event events.Event)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onEvent = callback
	}
}

func WithStateChangedCallback(callback func(from, to State)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onStateChanged = callback
	}
}

// WithTurnStartedCallback registers a callback for user turns opened by the
// turn detector.
func WithTurnStartedCallback(callback func(turnID string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTurnStarted = callback
	}
}

func WithTurnEndedCallback(callback func(turnID string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTurnEnded = callback
	}
}

// WithTranscriptionCallback registers a callback for final transcriptions
// produced by the configured speech-to-text client.
//
// Prompts submitted through [Orchestrator.SendPrompt] do not trigger this
// callback.
func WithTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onTranscription = callback
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInterimTranscription = callback
	}
}

// WithSnapshotCallback registers a callback for frames attached to user
// messages.
func WithSnapshotCallback(callback func(trackID string, width, height int)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onSnapshot = callback
	}
}

func WithResponseCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponse = callback
	}
}

func WithResponseEndCallback(callback func(response string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onResponseEnd = callback
	}
}

func WithCancellationCallback(callback func()) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onCancellation = callback
	}
}

func WithFailureCallback(callback func(err error)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onFailure = callback
	}
}

// WithInputAudioCallback registers a callback for raw input audio chunks.
//
// The provided slice is passed through as-is (no defensive copy). The
// callback runs inline on the input-audio path and should not block.
func WithInputAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onInputAudio = callback
	}
}

func WithAudioCallback(callback func(audio []byte)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudio = callback
	}
}

func WithAudioEndedCallback(callback func(transcript string)) OrchestrateOption {
	return func(o *OrchestrateOptions) {
		o.onAudioEnded = callback
	}
}
