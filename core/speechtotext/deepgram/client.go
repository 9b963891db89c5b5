package deepgram

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en-US"
)

var (
	ErrMissingAPIKey = errors.New("deepgram api key not found")
	ErrNotConnected  = errors.New("deepgram transcription stream is not connected")
)

// TranscriptionClient streams audio to Deepgram's live transcription API.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer

	connMu    sync.Mutex
	conn      *websocket.Conn
	lastMsgTs time.Time

	transcriptMu          sync.Mutex
	accumulatedTranscript string
	unendedSegment        bool
}

type TranscriptionClientOption func(*TranscriptionClient)

func WithListenURL(url string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		c.listenURL = url
	}
}

func WithModel(model string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		c.model = model
	}
}

func WithLanguage(language string) TranscriptionClientOption {
	return func(c *TranscriptionClient) {
		c.language = language
	}
}

// NewTranscriptionClient creates a client. An empty apiKey falls back to
// the DEEPGRAM_API_KEY environment variable.
func NewTranscriptionClient(apiKey string, opts ...TranscriptionClientOption) *TranscriptionClient {
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	c := &TranscriptionClient{
		apiKey:    apiKey,
		listenURL: defaultListenURL,
		model:     defaultModel,
		language:  defaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
