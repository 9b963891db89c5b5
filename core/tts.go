package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

var ErrSynthesisStalled = errors.New("speech synthesis stalled")

// speechSynthesis wraps the speech generator of one response and buffers
// its audio for the playback worker.
type speechSynthesis struct {
	generator    texttospeech.SpeechGenerator
	audio        *chunkBuffer[[]byte]
	encodingInfo audio.EncodingInfo
	progress     chan struct{}

	// closeStarted makes Cancel and Close idempotent under concurrent
	// shutdown paths.
	closeStarted atomic.Bool

	mu           sync.Mutex
	firstTextAt  time.Time
	firstAudioAt time.Time
	characters   int
	audioBytes   int
	report       *texttospeech.SpeechEndedReport
}

func startSpeechSynthesis(ctx context.Context, client TextToSpeech, encodingInfo audio.EncodingInfo) (*speechSynthesis, error) {
	s := &speechSynthesis{
		audio:        newAudioBuffer(),
		encodingInfo: encodingInfo,
		progress:     make(chan struct{}, 1),
	}

	generator, err := client.NewSpeechGenerator(ctx,
		texttospeech.WithSpeechAudioCallback(s.onAudio),
		texttospeech.WithSpeechEndedCallback(s.onEnded),
		texttospeech.WithErrorCallback(func(err error) {
			if !s.closeStarted.Load() {
				s.audio.Complete(fmt.Errorf("speech generation failed: %w", err))
			}
		}),
		texttospeech.WithEncodingInfo(encodingInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech generator: %w", err)
	}
	s.generator = generator
	return s, nil
}

func (s *speechSynthesis) onAudio(audio []byte) {
	s.mu.Lock()
	if s.firstAudioAt.IsZero() {
		s.firstAudioAt = time.Now()
	}
	s.audioBytes += len(audio)
	s.mu.Unlock()

	s.audio.Add(audio)
	s.touch()
}

func (s *speechSynthesis) touch() {
	select {
	case s.progress <- struct{}{}:
	default:
	}
}

// watch fails the audio stream with ErrSynthesisStalled once text has been
// sent and then neither text nor audio moved for timeout. It stops when ctx
// ends.
func (s *speechSynthesis) watch(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	go func() {
		timer := time.NewTimer(timeout)
		timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.progress:
				timer.Reset(timeout)
			case <-timer.C:
				s.audio.Complete(fmt.Errorf("%w: no progress for %s", ErrSynthesisStalled, timeout))
				return
			}
		}
	}()
}

func (s *speechSynthesis) onEnded(report texttospeech.SpeechEndedReport) {
	s.mu.Lock()
	s.report = &report
	s.mu.Unlock()

	s.audio.Complete(nil)
}

func (s *speechSynthesis) SendText(text string) error {
	s.mu.Lock()
	if s.firstTextAt.IsZero() {
		s.firstTextAt = time.Now()
	}
	s.characters += len(text)
	s.mu.Unlock()

	if err := s.generator.SendText(text); err != nil {
		return fmt.Errorf("failed to send text to tts: %w", err)
	}
	s.touch()
	return nil
}

func (s *speechSynthesis) Mark() error {
	if err := s.generator.Mark(); err != nil {
		return fmt.Errorf("failed to send mark to tts: %w", err)
	}
	return nil
}

func (s *speechSynthesis) EndOfText() error {
	s.mu.Lock()
	nothingSent := s.characters == 0
	s.mu.Unlock()

	if err := s.generator.EndOfText(); err != nil {
		return fmt.Errorf("failed to send end of text to tts: %w", err)
	}
	if nothingSent {
		s.audio.Complete(nil)
	}
	return nil
}

// Cancel stops generation and releases the playback worker.
func (s *speechSynthesis) Cancel() error {
	if !s.closeStarted.CompareAndSwap(false, true) {
		return nil
	}
	s.audio.Clear()
	if err := s.generator.Cancel(); err != nil {
		return fmt.Errorf("failed to cancel tts: %w", err)
	}
	return nil
}

func (s *speechSynthesis) Close() error {
	if !s.closeStarted.CompareAndSwap(false, true) {
		return nil
	}
	if err := s.generator.Close(); err != nil {
		return fmt.Errorf("failed to close tts: %w", err)
	}
	return nil
}

type synthesisUsage struct {
	latency       time.Duration
	characters    int
	audioDuration time.Duration
}

func (s *speechSynthesis) usage() synthesisUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	usage := synthesisUsage{
		characters:    s.characters,
		audioDuration: s.encodingInfo.Duration(s.audioBytes),
	}
	if s.report != nil && s.report.Characters > 0 {
		usage.characters = s.report.Characters
	}
	if !s.firstTextAt.IsZero() && !s.firstAudioAt.IsZero() {
		usage.latency = s.firstAudioAt.Sub(s.firstTextAt)
	}
	return usage
}
