package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
)

const (
	pcmBytesPerSample = 2
	pcmMaxAmplitude   = 32768.0

	DefaultMinVolume = 0.01
	DefaultMaxVolume = 0.3
	DefaultSmoothing = 0.3
)

// RMSModel holds the immutable parameters of the RMS activity model. It is
// meant to be created once per process and shared by every session; the
// per-session smoothing state lives in the analyzers it creates.
type RMSModel struct {
	// MinVolume is the normalized RMS level at or below which audio counts
	// as silence.
	MinVolume float64
	// MaxVolume is the normalized RMS level mapped to full confidence.
	MaxVolume float64
	// Smoothing is the exponential smoothing factor applied to the RMS
	// level (0 disables the current frame, 1 disables smoothing).
	Smoothing float64
}

func DefaultRMSModel() *RMSModel {
	return &RMSModel{
		MinVolume: DefaultMinVolume,
		MaxVolume: DefaultMaxVolume,
		Smoothing: DefaultSmoothing,
	}
}

// NewAnalyzer creates a per-session analyzer backed by the model.
func (m *RMSModel) NewAnalyzer() *RMSAnalyzer {
	return &RMSAnalyzer{model: m}
}

// RMSAnalyzer converts linear16 PCM frames into voice activity
// probabilities.
type RMSAnalyzer struct {
	model *RMSModel

	mu       sync.Mutex
	smoothed float64
}

func (a *RMSAnalyzer) Analyze(_ context.Context, pcm []byte) (float64, error) {
	if len(pcm) < pcmBytesPerSample {
		return 0, nil
	}

	level := rms(pcm)

	a.mu.Lock()
	a.smoothed = a.model.Smoothing*level + (1-a.model.Smoothing)*a.smoothed
	smoothed := a.smoothed
	a.mu.Unlock()

	return a.model.probability(smoothed), nil
}

func (a *RMSAnalyzer) Reset() {
	a.mu.Lock()
	a.smoothed = 0
	a.mu.Unlock()
}

func (m *RMSModel) probability(level float64) float64 {
	if level <= m.MinVolume {
		return 0
	}
	if m.MaxVolume <= m.MinVolume {
		return 1
	}

	probability := (level - m.MinVolume) / (m.MaxVolume - m.MinVolume)
	return math.Min(1, math.Max(0, probability))
}

func rms(pcm []byte) float64 {
	samples := len(pcm) / pcmBytesPerSample
	var sumSquares float64
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*pcmBytesPerSample:]))
		normalized := float64(sample) / pcmMaxAmplitude
		sumSquares += normalized * normalized
	}

	return math.Sqrt(sumSquares / float64(samples))
}
