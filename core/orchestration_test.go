package orchestration

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/metrics"
	"github.com/koscakluka/ema-vision/core/vision"
)

func TestFinishedTurnIsAnsweredWithSnapshot(t *testing.T) {
	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"I see ", "a red mug."}}
	tts := &textToSpeechStub{}
	playback := &playbackStub{}
	collector := &metricsStub{}
	capturer := &capturerStub{snapshot: &vision.Snapshot{
		TrackID:  "camera",
		Data:     []byte{0xff, 0xd8},
		MIMEType: "image/jpeg",
		Width:    64,
		Height:   48,
	}}

	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
		WithTextToSpeechClient(tts),
		WithActivityDetector(activityStub{}),
		WithSnapshotCapturer(capturer),
		WithPlaybackSink(playback),
		WithMetricsCollector(collector),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	var statesMu sync.Mutex
	var states []State
	snapshotTracks := make(chan string, 1)
	if err := o.Orchestrate(context.Background(),
		WithEventCallback(recorder.record),
		WithStateChangedCallback(func(_, to State) {
			statesMu.Lock()
			states = append(states, to)
			statesMu.Unlock()
		}),
		WithSnapshotCallback(func(trackID string, _, _ int) { snapshotTracks <- trackID }),
	); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	if err := o.SendAudio(speech); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}
	stt.transcribe("what do you see")
	if err := o.SendAudio(silence); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}

	waitForCondition(t, 2*time.Second, "response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})
	waitForCondition(t, time.Second, "orchestrator to listen again", func() bool {
		return o.State() == StateListening
	})

	conversation := o.Conversation()
	if conversation.Len() != 3 {
		t.Fatalf("expected system, user and assistant messages, got %d messages", conversation.Len())
	}
	user := conversation.Messages[1]
	if user.Role != conversations.RoleUser || user.Text() != "what do you see" {
		t.Fatalf("unexpected user message: %+v", user)
	}
	if images := user.Images(); len(images) != 1 || images[0].TrackID != "camera" {
		t.Fatalf("expected the snapshot attached to the user message, got %+v", images)
	}
	assistant := conversation.Messages[2]
	if assistant.Role != conversations.RoleAssistant || assistant.Text() != "I see a red mug." {
		t.Fatalf("unexpected assistant message: %+v", assistant)
	}
	select {
	case trackID := <-snapshotTracks:
		if trackID != "camera" {
			t.Fatalf("expected snapshot callback for camera, got %q", trackID)
		}
	default:
		t.Fatalf("expected a snapshot callback")
	}

	calls := llm.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one llm call, got %d", len(calls))
	}
	if last, ok := calls[0].Last(); !ok || last.Role != conversations.RoleUser {
		t.Fatalf("expected llm context to end with the user turn, got %+v", last)
	}
	if preamble := calls[0].Preamble(); preamble != "You can see and hear." {
		t.Fatalf("expected configured preamble, got %q", preamble)
	}

	if frames, _ := playback.counts(); frames != 2 {
		t.Fatalf("expected two played frames, got %d", frames)
	}
	if texts := tts.spokenTexts(); len(texts) != 1 || texts[0] != "I see a red mug." {
		t.Fatalf("unexpected synthesized text: %q", texts)
	}

	statesMu.Lock()
	gotStates := slices.Clone(states)
	statesMu.Unlock()
	wantStates := []State{StateAssembling, StateGenerating, StateSpeaking, StateListening}
	if !slices.Equal(gotStates, wantStates) {
		t.Fatalf("expected states %v, got %v", wantStates, gotStates)
	}

	samples := collector.stages()
	for _, stage := range []metrics.Stage{metrics.StageSTT, metrics.StageLLM, metrics.StageTTS} {
		if _, ok := samples[stage]; !ok {
			t.Fatalf("expected a %s sample, got %+v", stage, samples)
		}
	}
	if llmSample := samples[metrics.StageLLM]; llmSample.InputTokens != 12 || llmSample.OutputTokens != 4 {
		t.Fatalf("expected llm token usage, got %+v", llmSample)
	}
	if ttsSample := samples[metrics.StageTTS]; ttsSample.Characters != len("I see a red mug.") {
		t.Fatalf("expected tts characters, got %+v", ttsSample)
	}
}

func TestSpeechToTextSignalsDriveTurnsWithoutActivityDetector(t *testing.T) {
	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"Sure."}}

	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	stt.speechStarted()
	waitForCondition(t, time.Second, "turn to start", func() bool {
		return recorder.count(events.KindUserTurnStarted) == 1
	})
	stt.transcribe("can you help")
	stt.speechEnded()

	waitForCondition(t, 2*time.Second, "response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})

	conversation := o.Conversation()
	if conversation.Len() != 3 || conversation.Messages[1].Text() != "can you help" {
		t.Fatalf("unexpected conversation: %+v", conversation.Messages)
	}
	if images := conversation.Messages[1].Images(); len(images) != 0 {
		t.Fatalf("expected a text-only turn without a capturer, got %d images", len(images))
	}
	if recorder.count(events.KindSnapshotAbsent) != 1 {
		t.Fatalf("expected a snapshot absent event")
	}
}

func TestSnapshotFailureDegradesToTextOnlyTurn(t *testing.T) {
	for _, tc := range []struct {
		name     string
		capturer *capturerStub
	}{
		{name: "no video track", capturer: &capturerStub{}},
		{name: "capture error", capturer: &capturerStub{err: vision.ErrCaptureTimeout}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			llm := &scriptedLLMStub{chunks: []string{"I cannot see anything."}}
			o := NewOrchestrator(
				WithConfig(testConfig()),
				WithStreamingLLM(llm),
				WithSnapshotCapturer(tc.capturer),
			)
			defer o.Close()

			recorder := &eventRecorder{}
			if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
				t.Fatalf("failed to orchestrate: %v", err)
			}
			if err := o.SendPrompt("what am I holding"); err != nil {
				t.Fatalf("failed to send prompt: %v", err)
			}

			waitForCondition(t, 2*time.Second, "response to complete", func() bool {
				return recorder.count(events.KindResponseCompleted) == 1
			})

			conversation := o.Conversation()
			if conversation.Len() != 3 {
				t.Fatalf("expected 3 messages, got %d", conversation.Len())
			}
			if images := conversation.Messages[1].Images(); len(images) != 0 {
				t.Fatalf("expected no image, got %d", len(images))
			}

			event, ok := recorder.last(events.KindSnapshotAbsent)
			if !ok {
				t.Fatalf("expected a snapshot absent event")
			}
			if absent := event.(events.SnapshotAbsent); !errors.Is(absent.Err, tc.capturer.err) {
				t.Fatalf("expected snapshot error %v, got %v", tc.capturer.err, absent.Err)
			}
		})
	}
}

func TestUserSpeechCancelsActiveResponse(t *testing.T) {
	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"and so on. "}, interval: 5 * time.Millisecond, repeat: true}
	tts := &textToSpeechStub{}
	playback := &playbackStub{}

	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
		WithTextToSpeechClient(tts),
		WithActivityDetector(activityStub{}),
		WithPlaybackSink(playback),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	cancelled := make(chan struct{}, 1)
	if err := o.Orchestrate(context.Background(),
		WithEventCallback(recorder.record),
		WithCancellationCallback(func() {
			select {
			case cancelled <- struct{}{}:
			default:
			}
		}),
	); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	_ = o.SendAudio(speech)
	stt.transcribe("tell me a long story")
	_ = o.SendAudio(silence)

	waitForCondition(t, 2*time.Second, "assistant to speak", func() bool {
		return o.State() == StateSpeaking
	})

	_ = o.SendAudio(speech)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for cancellation callback")
	}

	if state := o.State(); state != StateListening {
		t.Fatalf("expected listening after barge-in, got %s", state)
	}
	if _, clears := playback.counts(); clears == 0 {
		t.Fatalf("expected playback to be cleared")
	}

	o.Close()

	if recorder.count(events.KindResponseCompleted) != 0 {
		t.Fatalf("expected the cancelled response never to complete")
	}
	conversation := o.Conversation()
	for _, message := range conversation.Messages {
		if message.Role == conversations.RoleAssistant {
			t.Fatalf("expected no assistant message for a cancelled response, got %q", message.Text())
		}
	}
	tts.mu.Lock()
	generator := tts.generators[0]
	tts.mu.Unlock()
	if !generator.isCancelled() {
		t.Fatalf("expected speech generation to be cancelled")
	}
}

func TestLateTranscriptOfCancelledTurnJoinsInterruptingTurn(t *testing.T) {
	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"Got it."}}

	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
		WithActivityDetector(activityStub{}),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	_ = o.SendAudio(speech)
	_ = o.SendAudio(silence)
	waitForCondition(t, 2*time.Second, "first turn to end", func() bool {
		return recorder.count(events.KindUserTurnEnded) == 1
	})

	_ = o.SendAudio(speech)
	waitForCondition(t, time.Second, "first response to be cancelled", func() bool {
		return recorder.count(events.KindResponseCancelled) == 1
	})
	stt.transcribe("turn A words")
	_ = o.SendAudio(silence)
	waitForCondition(t, 2*time.Second, "second turn to end", func() bool {
		return recorder.count(events.KindUserTurnEnded) == 2
	})

	time.Sleep(30 * time.Millisecond)
	stt.transcribe("turn B words")

	waitForCondition(t, 2*time.Second, "response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})

	calls := llm.calls()
	if len(calls) != 1 {
		t.Fatalf("expected one llm call, got %d", len(calls))
	}
	last, ok := calls[0].Last()
	if !ok || last.Role != conversations.RoleUser {
		t.Fatalf("expected llm context to end with the user turn, got %+v", last)
	}
	if last.Text() != "turn A words turn B words" {
		t.Fatalf("expected the interrupting turn to carry both transcripts, got %q", last.Text())
	}
	if pending := o.transcripts.pending(); pending != "" {
		t.Fatalf("expected no transcript left for a later turn, got %q", pending)
	}
}

func TestInterruptionDuringGenerationStartsNewCycle(t *testing.T) {
	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"Second answer."}, stallCalls: 1}
	capturer := &capturerStub{snapshot: &vision.Snapshot{
		TrackID:  "camera",
		Data:     []byte{0xff, 0xd8},
		MIMEType: "image/jpeg",
		Width:    64,
		Height:   48,
	}}

	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
		WithActivityDetector(activityStub{}),
		WithSnapshotCapturer(capturer),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	_ = o.SendAudio(speech)
	stt.transcribe("first")
	_ = o.SendAudio(silence)

	waitForCondition(t, 2*time.Second, "generation to start", func() bool {
		return o.State() == StateGenerating && len(llm.calls()) == 1
	})

	_ = o.SendAudio(speech)
	waitForCondition(t, time.Second, "generation to be cancelled", func() bool {
		return recorder.count(events.KindResponseCancelled) == 1
	})
	stt.transcribe("second")
	_ = o.SendAudio(silence)

	waitForCondition(t, 2*time.Second, "second response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})

	calls := llm.calls()
	if len(calls) != 2 {
		t.Fatalf("expected two llm calls, got %d", len(calls))
	}
	capturer.mu.Lock()
	captures := capturer.calls
	capturer.mu.Unlock()
	if captures != 2 {
		t.Fatalf("expected a fresh snapshot per turn, got %d captures", captures)
	}

	messages := calls[1].Messages
	if len(messages) != 3 {
		t.Fatalf("expected system and two user messages, got %d messages", len(messages))
	}
	for i, want := range []string{"first", "second"} {
		message := messages[i+1]
		if message.Role != conversations.RoleUser || message.Text() != want {
			t.Fatalf("expected user message %q, got %+v", want, message)
		}
		if images := message.Images(); len(images) != 1 {
			t.Fatalf("expected user message %q to carry its snapshot, got %d images", want, len(images))
		}
	}

	conversation := o.Conversation()
	if conversation.Len() != 4 {
		t.Fatalf("expected system, two user and one assistant message, got %d messages", conversation.Len())
	}
	if assistant := conversation.Messages[3]; assistant.Role != conversations.RoleAssistant || assistant.Text() != "Second answer." {
		t.Fatalf("unexpected assistant message: %+v", assistant)
	}
}

func TestDisabledInterruptionsDropTurnsDuringResponse(t *testing.T) {
	config := testConfig()
	config.AllowInterruptions = false

	stt := &speechToTextStub{}
	llm := &scriptedLLMStub{chunks: []string{"one ", "two ", "three ", "four ", "five"}, interval: 40 * time.Millisecond}

	o := NewOrchestrator(
		WithConfig(config),
		WithSpeechToTextClient(stt),
		WithStreamingLLM(llm),
		WithActivityDetector(activityStub{}),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(), WithEventCallback(recorder.record)); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	_ = o.SendAudio(speech)
	stt.transcribe("count to five")
	_ = o.SendAudio(silence)

	waitForCondition(t, 2*time.Second, "generation to start", func() bool {
		return o.State() == StateGenerating
	})

	_ = o.SendAudio(speech)
	_ = o.SendAudio(silence)

	waitForCondition(t, 2*time.Second, "second turn to end", func() bool {
		return recorder.count(events.KindUserTurnEnded) == 2
	})
	waitForCondition(t, 2*time.Second, "response to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})

	if recorder.count(events.KindResponseCancelled) != 0 {
		t.Fatalf("expected no cancellation with interruptions disabled")
	}
	if calls := llm.calls(); len(calls) != 1 {
		t.Fatalf("expected the dropped turn not to reach the llm, got %d calls", len(calls))
	}
	if conversation := o.Conversation(); conversation.Len() != 3 {
		t.Fatalf("expected one exchange, got %d messages", conversation.Len())
	}
}

func TestFailedResponseSpeaksFallback(t *testing.T) {
	errModel := errors.New("model unavailable")
	config := testConfig()
	config.FallbackMessage = "Sorry, something went wrong."

	tts := &textToSpeechStub{}
	playback := &playbackStub{}
	o := NewOrchestrator(
		WithConfig(config),
		WithStreamingLLM(&scriptedLLMStub{err: errModel}),
		WithTextToSpeechClient(tts),
		WithPlaybackSink(playback),
	)
	defer o.Close()

	failures := make(chan error, 1)
	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(),
		WithEventCallback(recorder.record),
		WithFailureCallback(func(err error) { failures <- err }),
	); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}
	if err := o.SendPrompt("hello"); err != nil {
		t.Fatalf("failed to send prompt: %v", err)
	}

	select {
	case err := <-failures:
		if !errors.Is(err, errModel) {
			t.Fatalf("expected model error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for failure callback")
	}

	waitForCondition(t, 2*time.Second, "fallback to be spoken", func() bool {
		return slices.Contains(tts.spokenTexts(), config.FallbackMessage)
	})
	waitForCondition(t, time.Second, "orchestrator to listen again", func() bool {
		return o.State() == StateListening
	})

	if frames, _ := playback.counts(); frames == 0 {
		t.Fatalf("expected the fallback to be played")
	}
	if recorder.count(events.KindResponseCompleted) != 0 {
		t.Fatalf("expected a failed response not to complete")
	}
	conversation := o.Conversation()
	if conversation.Len() != 2 {
		t.Fatalf("expected only system and user messages, got %d", conversation.Len())
	}
}

func TestStalledSynthesisFailsBackToListening(t *testing.T) {
	config := testConfig()
	config.SynthesisIdleTimeout = 100 * time.Millisecond

	tts := &textToSpeechStub{neverEnds: true}
	playback := &playbackStub{}
	o := NewOrchestrator(
		WithConfig(config),
		WithTextToSpeechClient(tts),
		WithPlaybackSink(playback),
	)
	defer o.Close()

	recorder := &eventRecorder{}
	failures := make(chan error, 1)
	if err := o.Orchestrate(context.Background(),
		WithEventCallback(recorder.record),
		WithFailureCallback(func(err error) { failures <- err }),
	); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	if err := o.Say(context.Background(), "hello there"); err != nil {
		t.Fatalf("failed to say: %v", err)
	}

	select {
	case err := <-failures:
		if !errors.Is(err, ErrSynthesisStalled) {
			t.Fatalf("expected ErrSynthesisStalled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for failure callback")
	}
	waitForCondition(t, time.Second, "orchestrator to listen again", func() bool {
		return o.State() == StateListening
	})

	if frames, _ := playback.counts(); frames != 1 {
		t.Fatalf("expected the audio received before the stall to play, got %d frames", frames)
	}
	if recorder.count(events.KindResponseCompleted) != 0 {
		t.Fatalf("expected the stalled response never to complete")
	}
	if conversation := o.Conversation(); conversation.Len() != 1 {
		t.Fatalf("expected only the system message, got %d messages", conversation.Len())
	}
}

func TestPromptWithoutLLMFails(t *testing.T) {
	o := NewOrchestrator(WithConfig(testConfig()))
	defer o.Close()

	failures := make(chan error, 1)
	if err := o.Orchestrate(context.Background(), WithFailureCallback(func(err error) { failures <- err })); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}
	if err := o.SendPrompt("anyone there?"); err != nil {
		t.Fatalf("failed to send prompt: %v", err)
	}

	select {
	case err := <-failures:
		if !errors.Is(err, ErrLLMNotConfigured) {
			t.Fatalf("expected ErrLLMNotConfigured, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for failure callback")
	}
}

func TestSayAppendsAssistantMessage(t *testing.T) {
	const greeting = "Hey, how can I help you today?"

	tts := &textToSpeechStub{}
	playback := &playbackStub{}
	llm := &scriptedLLMStub{chunks: []string{"unused"}}
	o := NewOrchestrator(
		WithConfig(testConfig()),
		WithStreamingLLM(llm),
		WithTextToSpeechClient(tts),
		WithPlaybackSink(playback),
	)
	defer o.Close()

	audioEnded := make(chan string, 1)
	recorder := &eventRecorder{}
	if err := o.Orchestrate(context.Background(),
		WithEventCallback(recorder.record),
		WithAudioEndedCallback(func(transcript string) { audioEnded <- transcript }),
	); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}

	if err := o.Say(context.Background(), greeting); err != nil {
		t.Fatalf("failed to say greeting: %v", err)
	}

	select {
	case transcript := <-audioEnded:
		if transcript != greeting {
			t.Fatalf("expected played transcript %q, got %q", greeting, transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for playback to end")
	}
	waitForCondition(t, time.Second, "greeting to complete", func() bool {
		return recorder.count(events.KindResponseCompleted) == 1
	})

	conversation := o.Conversation()
	if conversation.Len() != 2 {
		t.Fatalf("expected system and assistant messages, got %d", conversation.Len())
	}
	if last, _ := conversation.Last(); last.Role != conversations.RoleAssistant || last.Text() != greeting {
		t.Fatalf("unexpected greeting message: %+v", last)
	}
	if calls := llm.calls(); len(calls) != 0 {
		t.Fatalf("expected no llm calls, got %d", len(calls))
	}
	if recorder.count(events.KindSnapshotAbsent) != 0 {
		t.Fatalf("expected no snapshot for an utterance")
	}
}

func TestSayRejectsEmptyText(t *testing.T) {
	o := NewOrchestrator()
	defer o.Close()

	if err := o.Say(context.Background(), "  "); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if err := o.SendPrompt(""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
}

func TestOrchestratorLifecycle(t *testing.T) {
	o := NewOrchestrator(WithConfig(testConfig()))

	if err := o.SendAudio(speech); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := o.Orchestrate(ctx); err != nil {
		t.Fatalf("failed to orchestrate: %v", err)
	}
	if err := o.Orchestrate(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	if err := o.SendAudio(silence); err != nil {
		t.Fatalf("expected audio to be accepted, got %v", err)
	}

	cancel()
	select {
	case <-o.Done():
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for orchestrator to stop")
	}
	waitForCondition(t, time.Second, "orchestrator to close", func() bool {
		return errors.Is(o.SendAudio(silence), ErrClosed)
	})
	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := o.Say(context.Background(), "hello"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseBeforeOrchestrate(t *testing.T) {
	o := NewOrchestrator()
	o.Close()
	o.Close()

	select {
	case <-o.Done():
	default:
		t.Fatalf("expected done to be closed")
	}
	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOrchestrateRejectsInvalidConfig(t *testing.T) {
	config := testConfig()
	config.ActivationThreshold = 0

	o := NewOrchestrator(WithConfig(config))
	defer o.Close()

	if err := o.Orchestrate(context.Background()); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
