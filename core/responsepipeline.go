package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/metrics"
	"github.com/koscakluka/ema-vision/core/vision"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	ErrLLMNotConfigured = errors.New("no streaming llm configured")
	ErrEmptyResponse    = errors.New("model returned an empty response")
)

type generationUsage struct {
	startedAt    time.Time
	firstTokenAt time.Time
	endedAt      time.Time
	usage        llms.Usage
}

// runResponse drives one response from assembly to completion. Every exit
// path hands the orchestrator back to listening.
func (o *Orchestrator) runResponse(r *activeResponse) {
	defer o.responses.Done()
	defer close(r.done)
	defer o.finishResponse(r)

	ctx, span := tracer.Start(r.ctx, "respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("response.id", r.id),
		attribute.String("response.kind", r.input.kind.String()),
		attribute.String("turn.id", r.input.turnID),
	)

	var samples []metrics.Sample
	if r.input.kind != responseSay {
		sample, ok := o.assemble(ctx, r)
		if !ok {
			return
		}
		if sample != nil {
			samples = append(samples, *sample)
		}
	}

	o.emitEvent(events.NewAssistantResponseStarted(r.id))
	text, pipelineSamples, err := o.respond(ctx, r, r.input)
	if r.IsCancelled() {
		span.AddEvent("response cancelled")
		return
	}
	if err == nil && text == "" {
		err = ErrEmptyResponse
	}
	if err != nil {
		o.failResponse(ctx, r, err)
		return
	}
	samples = append(samples, pipelineSamples...)

	if !r.complete() {
		span.AddEvent("response cancelled")
		return
	}
	if _, err := o.conversation.OnAssistantTurn(text); err != nil {
		logger.WarnContext(ctx, "failed to record assistant turn", "response_id", r.id, "error", err)
		span.RecordError(err)
	}
	o.emitEvent(events.NewResponseCompleted(r.id, text))
	o.collect(samples)
}

// assemble appends the user message for the response. It reports false when
// there is nothing to respond to or the response was cancelled.
func (o *Orchestrator) assemble(ctx context.Context, r *activeResponse) (*metrics.Sample, bool) {
	ctx, span := tracer.Start(ctx, "assemble user turn")
	defer span.End()

	snapshot := o.captureSnapshot(ctx)
	if r.IsCancelled() {
		return nil, false
	}

	transcript := r.input.text
	var sttSample *metrics.Sample
	if r.input.kind == responseToTurn && o.speechToText.isConfigured() {
		text, receivedAt, ok := o.transcripts.take(ctx, o.config.TranscriptTimeout)
		if !ok {
			return nil, false
		}
		transcript = text
		sttSample = &metrics.Sample{
			Stage:      metrics.StageSTT,
			TurnID:     r.input.turnID,
			Latency:    max(0, receivedAt.Sub(r.input.endedAt)),
			Characters: len(text),
		}
		if r.IsCancelled() {
			o.transcripts.restore(text)
			return nil, false
		}
	}
	if r.IsCancelled() {
		return nil, false
	}

	message, err := o.conversation.OnUserTurn(transcript, snapshot)
	if err != nil {
		if errors.Is(err, conversations.ErrEmptyContent) {
			logger.InfoContext(ctx, "nothing to respond to", "turn_id", r.input.turnID)
			span.AddEvent("empty user turn")
		} else {
			logger.WarnContext(ctx, "failed to record user turn", "turn_id", r.input.turnID, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record user turn")
		}
		return nil, false
	}
	span.SetAttributes(
		attribute.String("message.id", message.ID),
		attribute.Int("message.images", len(message.Images())),
	)

	return sttSample, true
}

// captureSnapshot never fails: transport errors and timeouts degrade the
// turn to text-only. The capture ignores cancellation of ctx and is bounded
// by the snapshot timeout instead.
func (o *Orchestrator) captureSnapshot(ctx context.Context) *vision.Snapshot {
	if o.snapshots == nil {
		o.emitEvent(events.NewSnapshotAbsent(nil))
		return nil
	}

	ctx, span := tracer.Start(ctx, "attach snapshot")
	defer span.End()

	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.SnapshotTimeout)
	defer cancel()

	snapshot, err := o.snapshots.Capture(captureCtx)
	if err != nil {
		logger.WarnContext(ctx, "failed to capture snapshot, continuing without image", "error", err)
		span.RecordError(err)
		o.emitEvent(events.NewSnapshotAbsent(err))
		return nil
	}
	if snapshot == nil {
		span.AddEvent("no video track")
		o.emitEvent(events.NewSnapshotAbsent(nil))
		return nil
	}

	span.SetAttributes(
		attribute.String("snapshot.track_id", snapshot.TrackID),
		attribute.Int("snapshot.width", snapshot.Width),
		attribute.Int("snapshot.height", snapshot.Height),
	)
	o.emitEvent(events.NewSnapshotCaptured(snapshot.TrackID, snapshot.Width, snapshot.Height))
	return snapshot
}

// respond runs generation, synthesis and playback as one group of workers;
// the first failure cancels the others.
func (o *Orchestrator) respond(ctx context.Context, r *activeResponse, input responseInput) (string, []metrics.Sample, error) {
	text := newTextBuffer()

	var synthesis *speechSynthesis
	if o.textToSpeech != nil {
		var err error
		synthesis, err = startSpeechSynthesis(ctx, o.textToSpeech, o.outputEncoding)
		if err != nil {
			return "", nil, err
		}
		r.attachSynthesis(synthesis)
		defer r.detachSynthesis()
		defer synthesis.Close()
	}

	var generation generationUsage
	generate := panicSafeNamedWorker("llm generation", func(ctx context.Context) error {
		if input.kind == responseSay {
			return o.say(r, input.text, text)
		}
		var err error
		generation, err = o.generate(ctx, r, text)
		return err
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return generate(gctx) })
	if synthesis != nil {
		synthesize := panicSafeNamedWorker("speech synthesis", func(ctx context.Context) error {
			return o.synthesize(ctx, r, text, synthesis)
		})
		play := panicSafeNamedWorker("playback", func(ctx context.Context) error {
			return o.play(ctx, r, text, synthesis)
		})
		g.Go(func() error { return synthesize(gctx) })
		g.Go(func() error { return play(gctx) })
	}

	if err := g.Wait(); err != nil {
		return "", nil, fmt.Errorf("one or more response workers failed: %w", err)
	}

	response := joinText(text)
	o.emitEvent(events.NewAssistantResponseFinal(response))

	var samples []metrics.Sample
	if input.kind != responseSay {
		samples = append(samples, metrics.Sample{
			Stage:        metrics.StageLLM,
			TurnID:       input.turnID,
			Latency:      generation.firstTokenAt.Sub(generation.startedAt),
			Duration:     generation.endedAt.Sub(generation.startedAt),
			InputTokens:  generation.usage.InputTokens,
			OutputTokens: generation.usage.OutputTokens,
			Characters:   len(response),
		})
	}
	if synthesis != nil {
		usage := synthesis.usage()
		samples = append(samples, metrics.Sample{
			Stage:         metrics.StageTTS,
			TurnID:        input.turnID,
			Latency:       usage.latency,
			Characters:    usage.characters,
			AudioDuration: usage.audioDuration,
		})
	}

	return response, samples, nil
}

func (o *Orchestrator) generate(ctx context.Context, r *activeResponse, text *chunkBuffer[string]) (generationUsage, error) {
	ctx, span := tracer.Start(ctx, "generate response")
	defer span.End()

	o.setState(r, StateGenerating)
	generation := generationUsage{startedAt: time.Now()}

	if o.llm == nil {
		text.Clear()
		span.SetStatus(codes.Error, ErrLLMNotConfigured.Error())
		return generation, ErrLLMNotConfigured
	}

	stream := o.llm.StreamResponse(ctx, o.conversation.Context())
	for chunk, err := range stream.Chunks(ctx) {
		if r.IsCancelled() {
			return generation, nil
		}
		if err != nil {
			text.Clear()
			err = fmt.Errorf("failed to stream llm response: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return generation, err
		}

		if contentChunk, ok := chunk.(llms.StreamContentChunk); ok && contentChunk.Content() != "" {
			if generation.firstTokenAt.IsZero() {
				generation.firstTokenAt = time.Now()
				span.AddEvent("first token")
			}
			text.Add(contentChunk.Content())
			o.emitEvent(events.NewAssistantResponseSegment(contentChunk.Content()))
		}
		if usageChunk, ok := chunk.(llms.StreamUsageChunk); ok {
			generation.usage = usageChunk.Usage()
		}
	}

	generation.endedAt = time.Now()
	if generation.firstTokenAt.IsZero() {
		generation.firstTokenAt = generation.endedAt
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", generation.usage.InputTokens),
		attribute.Int("llm.output_tokens", generation.usage.OutputTokens),
	)
	text.Complete(nil)
	return generation, nil
}

func (o *Orchestrator) say(r *activeResponse, utterance string, text *chunkBuffer[string]) error {
	o.setState(r, StateGenerating)
	text.Add(utterance)
	o.emitEvent(events.NewAssistantResponseSegment(utterance))
	text.Complete(nil)
	return nil
}

func (o *Orchestrator) synthesize(ctx context.Context, r *activeResponse, text *chunkBuffer[string], synthesis *speechSynthesis) error {
	ctx, span := tracer.Start(ctx, "synthesize response")
	defer span.End()

	done := withContextCancelHook(ctx, text.Clear)
	defer close(done)

	for chunk := range text.Chunks {
		if r.IsCancelled() {
			return nil
		}
		if err := synthesis.SendText(chunk); err != nil {
			span.RecordError(err)
			return err
		}
		if endsSentence(chunk) {
			if err := synthesis.Mark(); err != nil {
				span.RecordError(err)
				return err
			}
		}
	}

	if r.IsCancelled() || ctx.Err() != nil {
		return nil
	}
	if err := synthesis.EndOfText(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (o *Orchestrator) play(ctx context.Context, r *activeResponse, text *chunkBuffer[string], synthesis *speechSynthesis) error {
	ctx, span := tracer.Start(ctx, "play response")
	defer span.End()

	done := withContextCancelHook(ctx, synthesis.audio.Clear)
	defer close(done)

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	synthesis.watch(watchCtx, o.config.SynthesisIdleTimeout)

	frames := 0
	for chunk := range synthesis.audio.Chunks {
		if r.IsCancelled() {
			o.clearPlayback()
			return nil
		}
		if frames == 0 {
			o.setState(r, StateSpeaking)
		}
		frames++

		if o.playback != nil {
			if err := o.playback.SendAudio(chunk); err != nil {
				err = fmt.Errorf("failed to send audio to playback sink: %w", err)
				span.RecordError(err)
				return err
			}
		}
		o.emitEvent(events.NewAssistantSpeechFrame(chunk))
	}
	span.SetAttributes(attribute.Int("playback.frames", frames))

	if r.IsCancelled() {
		o.clearPlayback()
		return nil
	}
	if err := synthesis.audio.Err(); err != nil {
		span.RecordError(err)
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	o.emitEvent(events.NewAssistantPlaybackEnded(joinText(text)))
	return nil
}

// failResponse reports a model or synthesis failure and, when configured,
// speaks the fallback message before returning to listening.
func (o *Orchestrator) failResponse(ctx context.Context, r *activeResponse, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, "response failed")
	logger.WarnContext(ctx, "response failed", "response_id", r.id, "turn_id", r.input.turnID, "error", err)
	o.emitEvent(events.NewResponseFailed(r.id, err))

	if o.config.FallbackMessage == "" || o.textToSpeech == nil || r.IsCancelled() {
		return
	}

	fallback := responseInput{kind: responseSay, turnID: r.input.turnID, text: o.config.FallbackMessage}
	if _, _, err := o.respond(ctx, r, fallback); err != nil && !r.IsCancelled() {
		logger.WarnContext(ctx, "failed to speak fallback message", "response_id", r.id, "error", err)
		span.RecordError(err)
	}
}

func (o *Orchestrator) clearPlayback() {
	if o.playback != nil {
		o.playback.ClearBuffer()
	}
}

func (o *Orchestrator) collect(samples []metrics.Sample) {
	if o.metrics == nil {
		return
	}
	for _, sample := range samples {
		sample.Timestamp = time.Now()
		o.metrics.Collect(sample)
	}
}
