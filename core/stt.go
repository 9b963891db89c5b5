package orchestration

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/events"
	"github.com/koscakluka/ema-vision/core/speechtotext"
)

type speechToTextCallbacks struct {
	onSpeechStarted func()
	onSpeechEnded   func()
	onTranscription func(transcript string)
}

type speechToText struct {
	// client stores the configured speech-to-text implementation.
	client SpeechToText

	emitEvent eventEmitter
}

func newSpeechToText(client SpeechToText) *speechToText {
	return &speechToText{
		client:    client,
		emitEvent: noopEventEmitter,
	}
}

func (s *speechToText) set(client SpeechToText) {
	if s != nil {
		s.client = client
	}
}

func (s *speechToText) start(ctx context.Context, callbacks speechToTextCallbacks, transcripts *transcriptCollector, encodingInfo audio.EncodingInfo) error {
	if !s.isConfigured() {
		return nil
	}

	sttOptions := []speechtotext.TranscriptionOption{
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			s.emitEvent(events.NewUserTranscriptInterimUpdated(transcript))
		}),
		speechtotext.WithPartialTranscriptionCallback(func(segment string) {
			transcripts.addSegment(segment)
			s.emitEvent(events.NewUserTranscriptSegment(segment))
		}),
		speechtotext.WithTranscriptionCallback(func(transcript string) {
			transcripts.addFinal(transcript)
			s.emitEvent(events.NewUserTranscriptInterimUpdated(""))
			s.emitEvent(events.NewUserTranscriptFinal(transcript))
			if callbacks.onTranscription != nil {
				callbacks.onTranscription(transcript)
			}
		}),
		speechtotext.WithEncodingInfo(encodingInfo),
	}
	if callbacks.onSpeechStarted != nil {
		sttOptions = append(sttOptions, speechtotext.WithSpeechStartedCallback(callbacks.onSpeechStarted))
	}
	if callbacks.onSpeechEnded != nil {
		sttOptions = append(sttOptions, speechtotext.WithSpeechEndedCallback(callbacks.onSpeechEnded))
	}

	if err := s.client.Transcribe(ctx, sttOptions...); err != nil {
		return fmt.Errorf("failed to start transcribing: %w", err)
	}

	return nil
}

func (s *speechToText) SendAudio(audio []byte) error {
	if !s.isConfigured() {
		return nil
	}

	return s.client.SendAudio(audio)
}

func (s *speechToText) Close(ctx context.Context) error {
	if !s.isConfigured() {
		return nil
	}

	switch c := s.client.(type) {
	case interface{ Close(context.Context) error }:
		if err := c.Close(ctx); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	case interface{ StopStream() error }:
		if err := c.StopStream(); err != nil {
			return fmt.Errorf("failed to stop speech-to-text stream: %w", err)
		}
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close speech-to-text client: %w", err)
		}
	}

	return nil
}

func (s *speechToText) SetEventEmitter(emitEvent eventEmitter) {
	if s != nil {
		if emitEvent != nil {
			s.emitEvent = emitEvent
		} else {
			s.emitEvent = noopEventEmitter
		}
	}
}

func (s *speechToText) isConfigured() bool {
	return s != nil && s.client != nil
}

// transcriptCollector gathers speech-to-text results between finished
// turns. Final transcripts are complete utterances; segments are finalized
// pieces of an utterance still in progress.
//
// owed counts the turns whose final transcript has not been taken yet. A
// turn abandoned before its take leaves its debt behind, so the next take
// waits for one final per owed turn and returns them merged.
type transcriptCollector struct {
	mu          sync.Mutex
	finals      []string
	segments    []string
	owed        int
	lastFinalAt time.Time
	signal      chan struct{}
}

func newTranscriptCollector() *transcriptCollector {
	return &transcriptCollector{signal: make(chan struct{}, 1)}
}

func (c *transcriptCollector) addSegment(segment string) {
	if strings.TrimSpace(segment) == "" {
		return
	}
	c.mu.Lock()
	c.segments = append(c.segments, segment)
	c.mu.Unlock()
}

func (c *transcriptCollector) addFinal(transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}
	c.mu.Lock()
	c.finals = append(c.finals, transcript)
	c.segments = nil
	c.lastFinalAt = time.Now()
	c.mu.Unlock()
	c.notify()
}

func (c *transcriptCollector) notify() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// expectTurn records a finished turn that will take its transcript.
func (c *transcriptCollector) expectTurn() {
	c.mu.Lock()
	c.owed++
	c.mu.Unlock()
}

// restore puts back a transcript that was taken by a turn which got
// cancelled before using it. The turn owes it again, and the text ends up
// in front of whatever the next turn takes.
func (c *transcriptCollector) restore(transcript string) {
	if strings.TrimSpace(transcript) == "" {
		return
	}
	c.mu.Lock()
	c.finals = append([]string{transcript}, c.finals...)
	c.owed++
	c.mu.Unlock()
	c.notify()
}

// pending returns everything transcribed since the last take without
// consuming it.
func (c *transcriptCollector) pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(append(append([]string(nil), c.finals...), c.segments...), " ")
}

// take returns every final transcript received so far once there is one for
// each owed turn, waiting up to timeout for the rest to arrive. On timeout
// whatever finals and segments are pending are returned instead. receivedAt
// is when the returned text became available. ok is false only when ctx
// ended first, in which case nothing is consumed.
func (c *transcriptCollector) take(ctx context.Context, timeout time.Duration) (transcript string, receivedAt time.Time, ok bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		if len(c.finals) > 0 && len(c.finals) >= c.owed {
			transcript = strings.Join(c.finals, " ")
			receivedAt = c.lastFinalAt
			c.finals = nil
			c.owed = 0
			c.mu.Unlock()
			return transcript, receivedAt, true
		}
		c.mu.Unlock()

		select {
		case <-c.signal:
		case <-timer.C:
			c.mu.Lock()
			transcript = strings.Join(append(c.finals, c.segments...), " ")
			c.finals = nil
			c.segments = nil
			c.owed = 0
			c.mu.Unlock()
			return transcript, time.Now(), true
		case <-ctx.Done():
			return "", time.Time{}, false
		}
	}
}
