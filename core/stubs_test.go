package orchestration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/metrics"
	"github.com/koscakluka/ema-vision/core/speechtotext"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"github.com/koscakluka/ema-vision/core/vision"
)

func testConfig() Config {
	config := DefaultConfig()
	config.SystemPreamble = "You can see and hear."
	config.MinEndpointingDelay = 20 * time.Millisecond
	config.MaxEndpointingDelay = 50 * time.Millisecond
	config.SnapshotTimeout = 200 * time.Millisecond
	config.TranscriptTimeout = 200 * time.Millisecond
	return config
}

var (
	speech  = []byte{1, 1}
	silence = []byte{0, 0}
)

// activityStub scores frames starting with a non-zero byte as speech.
type activityStub struct{}

func (activityStub) Analyze(_ context.Context, frame []byte) (float64, error) {
	if len(frame) > 0 && frame[0] != 0 {
		return 1, nil
	}
	return 0, nil
}

type speechToTextStub struct {
	mu      sync.Mutex
	options speechtotext.TranscriptionOptions
	audio   int
}

func (stub *speechToTextStub) Transcribe(_ context.Context, opts ...speechtotext.TranscriptionOption) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	for _, opt := range opts {
		opt(&stub.options)
	}
	return nil
}

func (stub *speechToTextStub) SendAudio([]byte) error {
	stub.mu.Lock()
	stub.audio++
	stub.mu.Unlock()
	return nil
}

func (stub *speechToTextStub) transcribe(transcript string) {
	stub.mu.Lock()
	callback := stub.options.TranscriptionCallback
	stub.mu.Unlock()
	if callback != nil {
		callback(transcript)
	}
}

func (stub *speechToTextStub) speechStarted() {
	stub.mu.Lock()
	callback := stub.options.SpeechStartedCallback
	stub.mu.Unlock()
	if callback != nil {
		callback()
	}
}

func (stub *speechToTextStub) speechEnded() {
	stub.mu.Lock()
	callback := stub.options.SpeechEndedCallback
	stub.mu.Unlock()
	if callback != nil {
		callback()
	}
}

type scriptedLLMStub struct {
	chunks   []string
	interval time.Duration
	err      error
	// repeat streams chunks until the context ends.
	repeat bool
	// stallCalls is the number of leading calls whose stream blocks until
	// the context ends.
	stallCalls int

	mu       sync.Mutex
	contexts []conversations.Context
}

func (stub *scriptedLLMStub) StreamResponse(_ context.Context, conversation conversations.Context) llms.Stream {
	stub.mu.Lock()
	stub.contexts = append(stub.contexts, conversation)
	call := len(stub.contexts)
	stub.mu.Unlock()
	return scriptedStreamStub{llm: stub, stalled: call <= stub.stallCalls}
}

func (stub *scriptedLLMStub) calls() []conversations.Context {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return append([]conversations.Context(nil), stub.contexts...)
}

type scriptedStreamStub struct {
	llm     *scriptedLLMStub
	stalled bool
}

func (stream scriptedStreamStub) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		stub := stream.llm
		if stub.err != nil {
			yield(nil, stub.err)
			return
		}
		if stream.stalled {
			<-ctx.Done()
			yield(nil, ctx.Err())
			return
		}

		for {
			for _, chunk := range stub.chunks {
				if stub.interval > 0 {
					select {
					case <-ctx.Done():
						yield(nil, ctx.Err())
						return
					case <-time.After(stub.interval):
					}
				}
				if !yield(streamContentChunkStub{content: chunk}, nil) {
					return
				}
			}
			if !stub.repeat {
				break
			}
		}
		yield(streamUsageChunkStub{usage: llms.Usage{InputTokens: 12, OutputTokens: 4, TotalTokens: 16}}, nil)
	}
}

type streamContentChunkStub struct {
	content string
}

func (chunk streamContentChunkStub) FinishReason() *string { return nil }
func (chunk streamContentChunkStub) Content() string       { return chunk.content }

type streamUsageChunkStub struct {
	usage llms.Usage
}

func (chunk streamUsageChunkStub) FinishReason() *string {
	reason := "stop"
	return &reason
}
func (chunk streamUsageChunkStub) Usage() llms.Usage { return chunk.usage }

// textToSpeechStub synthesizes each text chunk into one audio frame holding
// the text bytes.
type textToSpeechStub struct {
	err error
	// neverEnds keeps generators from reporting the end of speech.
	neverEnds bool

	mu         sync.Mutex
	generators []*speechGeneratorStub
}

func (stub *textToSpeechStub) NewSpeechGenerator(_ context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	if stub.err != nil {
		return nil, stub.err
	}
	options := texttospeech.TextToSpeechOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	generator := &speechGeneratorStub{options: options, neverEnds: stub.neverEnds}

	stub.mu.Lock()
	stub.generators = append(stub.generators, generator)
	stub.mu.Unlock()
	return generator, nil
}

func (stub *textToSpeechStub) spokenTexts() []string {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	var texts []string
	for _, generator := range stub.generators {
		texts = append(texts, generator.text())
	}
	return texts
}

type speechGeneratorStub struct {
	options   texttospeech.TextToSpeechOptions
	neverEnds bool

	mu        sync.Mutex
	sent      string
	marks     int
	ended     bool
	cancelled bool
	closed    bool
}

var errGeneratorStopped = errors.New("generator stopped")

func (g *speechGeneratorStub) SendText(text string) error {
	g.mu.Lock()
	if g.ended || g.cancelled || g.closed {
		g.mu.Unlock()
		return errGeneratorStopped
	}
	g.sent += text
	g.mu.Unlock()

	if g.options.SpeechAudioCallback != nil {
		g.options.SpeechAudioCallback([]byte(text))
	}
	return nil
}

func (g *speechGeneratorStub) Mark() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.marks++
	return nil
}

func (g *speechGeneratorStub) EndOfText() error {
	g.mu.Lock()
	g.ended = true
	report := texttospeech.SpeechEndedReport{Characters: len(g.sent), AudioBytes: len(g.sent)}
	g.mu.Unlock()

	if g.options.SpeechEndedCallback != nil && !g.neverEnds {
		g.options.SpeechEndedCallback(report)
	}
	return nil
}

func (g *speechGeneratorStub) Cancel() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = true
	return nil
}

func (g *speechGeneratorStub) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

func (g *speechGeneratorStub) text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sent
}

func (g *speechGeneratorStub) isCancelled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cancelled
}

type playbackStub struct {
	mu     sync.Mutex
	frames [][]byte
	clears int
}

func (stub *playbackStub) SendAudio(audio []byte) error {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.frames = append(stub.frames, audio)
	return nil
}

func (stub *playbackStub) ClearBuffer() {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.clears++
}

func (stub *playbackStub) counts() (frames, clears int) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	return len(stub.frames), stub.clears
}

type capturerStub struct {
	snapshot *vision.Snapshot
	err      error

	mu    sync.Mutex
	calls int
}

func (stub *capturerStub) Capture(context.Context) (*vision.Snapshot, error) {
	stub.mu.Lock()
	stub.calls++
	stub.mu.Unlock()
	return stub.snapshot, stub.err
}

type metricsStub struct {
	mu      sync.Mutex
	samples []metrics.Sample
}

func (stub *metricsStub) Collect(sample metrics.Sample) {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stub.samples = append(stub.samples, sample)
}

func (stub *metricsStub) stages() map[metrics.Stage]metrics.Sample {
	stub.mu.Lock()
	defer stub.mu.Unlock()
	stages := map[metrics.Stage]metrics.Sample{}
	for _, sample := range stub.samples {
		stages[sample.Stage] = sample
	}
	return stages
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) count(kind events.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, event := range r.events {
		if event.Kind() == kind {
			count++
		}
	}
	return count
}

func (r *eventRecorder) last(kind events.Kind) (events.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind() == kind {
			return r.events[i], true
		}
	}
	return nil, false
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}
