package deepgram

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
)

const defaultSpeakURL = "wss://api.deepgram.com/v1/speak"

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrInvalidVoice  = errors.New("invalid voice")
)

type TextToSpeechClient struct {
	apiKey       string
	speakURL     string
	voice        deepgramVoice
	encodingInfo audio.EncodingInfo
	dialer       *websocket.Dialer
}

type TextToSpeechClientOption func(*TextToSpeechClient)

func WithSpeakURL(url string) TextToSpeechClientOption {
	return func(c *TextToSpeechClient) {
		c.speakURL = url
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TextToSpeechClientOption {
	return func(c *TextToSpeechClient) {
		if !encodingInfo.IsZero() {
			c.encodingInfo = encodingInfo
		}
	}
}

// NewTextToSpeechClient creates a client speaking with voice. An empty
// apiKey falls back to the DEEPGRAM_API_KEY environment variable and an
// empty voice selects the default one.
func NewTextToSpeechClient(apiKey string, voice string, opts ...TextToSpeechClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	client := &TextToSpeechClient{
		apiKey:       apiKey,
		speakURL:     defaultSpeakURL,
		voice:        defaultVoice,
		encodingInfo: audio.GetDefaultEncodingInfo(),
		dialer:       websocket.DefaultDialer,
	}

	if voice != "" {
		if !slices.Contains(GetAvailableVoices(), deepgramVoice(voice)) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidVoice, voice)
		}
		client.voice = deepgramVoice(voice)
	}

	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *TextToSpeechClient) Voice() string {
	return string(c.voice)
}
