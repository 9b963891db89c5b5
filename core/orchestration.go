package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/turns"
	"github.com/koscakluka/ema-vision/core/vision"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const inboxCapacity = 32

var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrNotStarted     = errors.New("orchestrator not started")
	ErrClosed         = errors.New("orchestrator closed")
	ErrEmptyText      = errors.New("text is empty")
)

// Orchestrator coordinates one conversation session: it turns voice
// activity into user turns, answers each finished turn with the model and
// speaks the answer, abandoning it when the user starts talking again.
//
// Session state is owned by a single event loop. Responses run on their
// own workers and report back through the state helpers.
type Orchestrator struct {
	config Config

	conversation *conversations.Builder
	detector     *turns.Detector
	runner       *turns.Runner
	transcripts  *transcriptCollector

	speechToText   *speechToText
	llm            StreamingLLM
	textToSpeech   TextToSpeech
	activity       ActivityDetector
	endOfUtterance turns.EndOfUtteranceModel
	snapshots      SnapshotCapturer
	playback       PlaybackSink
	metrics        MetricsCollector

	videoSource     vision.VideoSource
	visionOptions   []vision.ServiceOption
	detectorOptions []turns.DetectorOption
	builderOptions  []conversations.BuilderOption
	inputEncoding   audio.EncodingInfo
	outputEncoding  audio.EncodingInfo
	newResponseID   func() string

	emitEvent   eventEmitter
	baseContext context.Context
	cancel      context.CancelFunc

	stateMu sync.Mutex
	state   State
	active  *activeResponse

	responses sync.WaitGroup
	inbox     chan func()
	loopDone  chan struct{}
	starting  atomic.Bool
	running   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		config:         DefaultConfig(),
		transcripts:    newTranscriptCollector(),
		speechToText:   newSpeechToText(nil),
		inputEncoding:  audio.GetDefaultEncodingInfo(),
		outputEncoding: audio.GetDefaultEncodingInfo(),
		newResponseID:  uuid.NewString,
		emitEvent:      noopEventEmitter,
		baseContext:    context.Background(),
		inbox:          make(chan func(), inboxCapacity),
		loopDone:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	o.conversation = conversations.NewBuilder(o.config.SystemPreamble, o.builderOptions...)
	o.detector = turns.NewDetector(o.config.ParticipantID,
		append([]turns.DetectorOption{turns.WithConfig(o.config.turnsConfig())}, o.detectorOptions...)...)

	var runnerOpts []turns.RunnerOption
	if o.endOfUtterance != nil {
		runnerOpts = append(runnerOpts, turns.WithEndOfUtteranceModel(o.endOfUtterance))
	}
	o.runner = turns.NewRunner(o.detector, o.onTurnEvent, runnerOpts...)

	if o.snapshots == nil && o.videoSource != nil {
		o.snapshots = vision.NewService(o.videoSource,
			append([]vision.ServiceOption{vision.WithSnapshotTimeout(o.config.SnapshotTimeout)}, o.visionOptions...)...)
	}

	return o
}

// Orchestrate starts the session and returns immediately. The session runs
// until ctx is cancelled or Close is called.
//
// ctx is used as a base context for every model, synthesis and
// transcription call.
func (o *Orchestrator) Orchestrate(ctx context.Context, opts ...OrchestrateOption) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if err := o.config.Validate(); err != nil {
		return err
	}
	if !o.starting.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	options := OrchestrateOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	o.emitEvent = newCallbackEventEmitter(options)
	o.speechToText.SetEventEmitter(o.emitEvent)

	ctx, cancel := context.WithCancel(ctx)
	o.baseContext = ctx
	o.cancel = cancel

	go o.loop(ctx)
	go func() {
		if err := o.runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WarnContext(ctx, "turn detection stopped", "error", err)
		}
	}()

	callbacks := speechToTextCallbacks{
		onTranscription: func(string) {
			if o.endOfUtterance != nil {
				go o.runner.ObserveTranscript(ctx, o.transcripts.pending())
			}
		},
	}
	if o.activity == nil {
		callbacks.onSpeechStarted = func() { o.runner.ObserveActivity(1) }
		callbacks.onSpeechEnded = func() { o.runner.ObserveActivity(0) }
	}
	if err := o.speechToText.start(ctx, callbacks, o.transcripts, o.inputEncoding); err != nil {
		recordedErr := fmt.Errorf("failed to initialize speech-to-text: %w", err)
		span := trace.SpanFromContext(ctx)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.WarnContext(ctx, "speech-to-text unavailable, continuing without transcripts", "error", err)
	}

	o.running.Store(true)
	go func() {
		<-ctx.Done()
		o.Close()
	}()
	return nil
}

// Close cancels the active response, stops the session and waits for every
// response worker to return. It is safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.running.Store(false)
		o.cancelActive()
		if o.cancel != nil {
			o.cancel()
		}

		if o.starting.Load() {
			<-o.loopDone
		} else {
			close(o.loopDone)
		}

		if err := o.speechToText.Close(o.baseContext); err != nil {
			logger.WarnContext(o.baseContext, "failed to close speech-to-text client", "error", err)
		}

		o.responses.Wait()
	})
}

// Done is closed once the session stopped processing events.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.loopDone
}

// SendAudio fans one chunk of participant audio out to the speech-to-text
// client and the activity detector.
func (o *Orchestrator) SendAudio(frame []byte) error {
	if !o.running.Load() {
		if o.closed.Load() {
			return ErrClosed
		}
		return ErrNotStarted
	}

	o.emitEvent(events.NewUserAudioFrame(frame))

	var errs error
	if err := o.speechToText.SendAudio(frame); err != nil {
		errs = fmt.Errorf("failed to send audio to speech-to-text: %w", err)
	}
	if o.activity != nil {
		probability, err := o.activity.Analyze(o.baseContext, frame)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to analyze voice activity: %w", err))
		} else {
			o.runner.ObserveActivity(probability)
		}
	}
	return errs
}

// SendPrompt answers typed text as if the user said it.
func (o *Orchestrator) SendPrompt(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyText
	}
	o.emitEvent(events.NewUserPrompt(prompt))
	return o.post(context.Background(), func() {
		o.startResponse(responseInput{kind: responseToPrompt, text: prompt})
	})
}

// Say speaks a fixed utterance, such as a greeting, without asking the
// model. The utterance can be interrupted like any response and is added
// to the conversation once fully spoken.
func (o *Orchestrator) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return o.post(ctx, func() {
		o.startResponse(responseInput{kind: responseSay, text: text})
	})
}

func (o *Orchestrator) State() State {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	return o.state
}

// Conversation returns a copy of the conversation so far.
func (o *Orchestrator) Conversation() conversations.Context {
	return o.conversation.Context()
}

func (o *Orchestrator) post(ctx context.Context, task func()) error {
	if o.closed.Load() {
		return ErrClosed
	}
	select {
	case o.inbox <- task:
		return nil
	case <-o.loopDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer close(o.loopDone)
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-o.inbox:
			task()
		}
	}
}

// onTurnEvent is called by the turn runner and must not block.
func (o *Orchestrator) onTurnEvent(event turns.Event) {
	_ = o.post(o.baseContext, func() { o.handleTurnEvent(event) })
}

func (o *Orchestrator) handleTurnEvent(event turns.Event) {
	switch event.Kind {
	case turns.EventTurnStarted:
		o.emitEvent(events.NewUserTurnStarted(event.TurnID))
		if o.config.AllowInterruptions {
			o.cancelActive()
		}

	case turns.EventTurnEnded:
		o.emitEvent(events.NewUserTurnEnded(event.TurnID))
		o.startResponse(responseInput{
			kind:    responseToTurn,
			turnID:  event.TurnID,
			endedAt: event.Timestamp,
		})
	}
}

// startResponse runs on the event loop.
func (o *Orchestrator) startResponse(input responseInput) {
	o.stateMu.Lock()
	busy := o.active != nil
	o.stateMu.Unlock()

	if busy {
		if !o.config.AllowInterruptions && input.kind != responseSay {
			o.dropInput(input)
			return
		}
		o.cancelActive()
	}
	if input.kind == responseToTurn && o.speechToText.isConfigured() {
		o.transcripts.expectTurn()
	}

	r := newActiveResponse(o.baseContext, o.newResponseID(), input)
	initial := StateAssembling
	if input.kind == responseSay {
		initial = StateGenerating
	}

	o.stateMu.Lock()
	o.active = r
	from := o.state
	o.state = initial
	o.stateMu.Unlock()
	o.emitStateChange(from, initial)

	o.responses.Add(1)
	go o.runResponse(r)
}

func (o *Orchestrator) dropInput(input responseInput) {
	ctx, span := tracer.Start(o.baseContext, "drop user input")
	defer span.End()
	span.SetAttributes(
		attribute.String("turn.id", input.turnID),
		attribute.String("response.kind", input.kind.String()),
	)
	logger.InfoContext(ctx, "response in progress, dropping user input", "turn_id", input.turnID, "kind", input.kind.String())

	if input.kind == responseToTurn && o.speechToText.isConfigured() {
		o.responses.Add(1)
		go func() {
			defer o.responses.Done()
			o.transcripts.take(ctx, o.config.TranscriptTimeout)
		}()
	}
}

// cancelActive abandons the active response, if any, and clears playback
// immediately.
func (o *Orchestrator) cancelActive() {
	o.stateMu.Lock()
	r := o.active
	if r == nil {
		o.stateMu.Unlock()
		return
	}
	o.active = nil
	from := o.state
	o.state = StateListening
	o.stateMu.Unlock()

	if r.Cancel() {
		o.clearPlayback()
		logger.InfoContext(o.baseContext, "response cancelled", "response_id", r.id, "state", from.String())
		o.emitEvent(events.NewResponseCancelled(r.id))
	}
	o.emitStateChange(from, StateListening)
}

// setState moves the orchestrator forward on behalf of r. Stale responses
// are ignored.
func (o *Orchestrator) setState(r *activeResponse, to State) {
	o.stateMu.Lock()
	if o.active != r || o.state == to {
		o.stateMu.Unlock()
		return
	}
	from := o.state
	o.state = to
	o.stateMu.Unlock()

	o.emitStateChange(from, to)
}

func (o *Orchestrator) finishResponse(r *activeResponse) {
	o.stateMu.Lock()
	if o.active != r {
		o.stateMu.Unlock()
		return
	}
	o.active = nil
	from := o.state
	o.state = StateListening
	o.stateMu.Unlock()

	o.emitStateChange(from, StateListening)
}

func (o *Orchestrator) emitStateChange(from, to State) {
	if from == to {
		return
	}
	o.emitEvent(events.NewResponseStateChanged(from.String(), to.String()))
}
