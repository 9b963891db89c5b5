package deepgram

import (
	"errors"
	"fmt"

	"github.com/koscakluka/ema-vision/core/audio"
)

var (
	ErrUnsupportedSampleRate = errors.New("unsupported sample rate")
	ErrUnsupportedEncoding   = errors.New("unsupported encoding")
)

type encodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

type encodingFormat string

func (e encodingFormat) Name() string { return string(e) }

const (
	encodingLinear16 encodingFormat = "linear16"
	encodingALaw     encodingFormat = "alaw"
	encodingMulaw    encodingFormat = "mulaw"
)

func convertEncoding(encoding audio.EncodingInfo) (*encodingInfo, error) {
	deepgramEncoding := encodingInfo{}
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
		deepgramEncoding.SampleRate = encoding.SampleRate
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSampleRate, encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		deepgramEncoding.Format = encodingLinear16
	case audio.EncodingALaw, audio.EncodingMulaw:
		deepgramEncoding.Format = encodingFormat(encoding.Format.Name())
		if deepgramEncoding.SampleRate != 8000 {
			return nil, fmt.Errorf("%w: %s requires 8000 Hz", ErrUnsupportedSampleRate, encoding.Format.Name())
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, encoding.Format.Name())
	}

	return &deepgramEncoding, nil
}
