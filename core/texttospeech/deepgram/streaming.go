package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/audio"
	"github.com/koscakluka/ema-vision/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrGeneratorClosed    = errors.New("speech generator closed")
	ErrGeneratorCancelled = errors.New("speech generator cancelled")
	ErrTextCompleted      = errors.New("speech generator text already completed")
)

type streamingRequest struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu sync.Mutex
	// textBuffer holds the text segments separated by marks. The first
	// segment is the one Deepgram is currently synthesizing.
	textBuffer   []string
	textComplete bool
	cancelled    bool
	closed       bool
	report       texttospeech.SpeechEndedReport

	options texttospeech.TextToSpeechOptions
}

func (c *TextToSpeechClient) NewSpeechGenerator(ctx context.Context, opts ...texttospeech.TextToSpeechOption) (texttospeech.SpeechGenerator, error) {
	ctx, span := tracer.Start(ctx, "open speech generator")
	defer span.End()

	req := &streamingRequest{
		options: texttospeech.TextToSpeechOptions{
			SpeechAudioCallback: func([]byte) {},
			SpeechMarkCallback:  func(string) {},
			SpeechEndedCallback: func(texttospeech.SpeechEndedReport) {},
			ErrorCallback:       func(error) {},
			EncodingInfo:        c.encodingInfo,
		},
	}
	for _, opt := range opts {
		opt(&req.options)
	}
	span.SetAttributes(attribute.String("tts.voice", string(c.voice)))

	var err error
	if req.ws, err = c.connectWebsocket(ctx, req.options.EncodingInfo); err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	go req.processIncomingMessages(ctx)

	return req, nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	speakURL, err := url.Parse(c.speakURL)
	if err != nil {
		return nil, fmt.Errorf("invalid speak url: %w", err)
	}
	urlValues := speakURL.Query()
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", string(c.voice))
	urlValues.Set("container", "none")
	speakURL.RawQuery = urlValues.Encode()

	conn, _, err := c.dialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func (r *streamingRequest) processIncomingMessages(ctx context.Context) {
	for {
		msgType, msg, err := r.ws.ReadMessage()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					logger.WarnContext(ctx, "speech websocket read error", "error", err)
				}
				r.options.ErrorCallback(err)
				_ = r.Close()
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			r.mu.Lock()
			active := !r.closed && !r.cancelled
			if active {
				r.report.AudioBytes += len(msg)
			}
			r.mu.Unlock()
			if active && len(msg) > 0 {
				r.options.SpeechAudioCallback(msg)
			}

		case websocket.TextMessage:
			var parsedMsg websocketMessage
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.DebugContext(ctx, "failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				r.onFlushed(ctx)
			case "Warning", "Error":
				logger.WarnContext(ctx, "deepgram speech message", "type", parsedMsg.Type, "message", string(msg))
			}
		}
	}
}

func (r *streamingRequest) onFlushed(ctx context.Context) {
	r.mu.Lock()
	if r.closed || r.cancelled {
		r.mu.Unlock()
		return
	}

	var (
		mark   string
		marked bool
	)
	if len(r.textBuffer) > 0 {
		mark, marked = r.textBuffer[0], true
		r.textBuffer = r.textBuffer[1:]
	}

	ended := r.textComplete && allEmpty(r.textBuffer)
	if !ended && len(r.textBuffer) > 0 {
		if r.textBuffer[0] != "" {
			if err := r.sendWebsocketMessage(sendTextMsg(r.textBuffer[0])); err != nil {
				logger.WarnContext(ctx, "failed to send deepgram text", "error", err)
			}
		}
		if len(r.textBuffer) > 1 {
			if err := r.sendWebsocketMessage(flushMsg); err != nil {
				logger.WarnContext(ctx, "failed to flush deepgram buffer", "error", err)
			}
		}
	}
	report := r.report
	r.mu.Unlock()

	if marked {
		r.options.SpeechMarkCallback(mark)
	}
	if ended {
		_ = r.Close()
		r.options.SpeechEndedCallback(report)
	}
}

func (r *streamingRequest) checkWritable() error {
	if r.closed {
		return ErrGeneratorClosed
	} else if r.cancelled {
		return ErrGeneratorCancelled
	} else if r.textComplete {
		return ErrTextCompleted
	}
	return nil
}

func (r *streamingRequest) SendText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}

	if len(r.textBuffer) == 0 {
		r.textBuffer = append(r.textBuffer, "")
	}

	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(sendTextMsg(text)); err != nil {
			return fmt.Errorf("failed to send websocket send text message: %w", err)
		}
	}
	r.textBuffer[len(r.textBuffer)-1] += text
	r.report.Characters += len([]rune(text))
	return nil
}

func (r *streamingRequest) Mark() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkWritable(); err != nil {
		return err
	}
	return r.mark()
}

func (r *streamingRequest) mark() error {
	if len(r.textBuffer) == 0 {
		r.textBuffer = append(r.textBuffer, "")
	}
	if len(r.textBuffer) == 1 {
		if err := r.sendWebsocketMessage(flushMsg); err != nil {
			return fmt.Errorf("failed to send websocket flush message: %w", err)
		}
	}

	// NOTE: Deepgram sometimes drops text that is passed after a flush unless
	// there is some kind of break, so text after a mark is held back until
	// the flush is confirmed.
	r.textBuffer = append(r.textBuffer, "")
	return nil
}

func (r *streamingRequest) EndOfText() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrGeneratorClosed
	} else if r.cancelled {
		r.mu.Unlock()
		return ErrGeneratorCancelled
	} else if r.textComplete {
		r.mu.Unlock()
		return nil
	}

	r.textComplete = true
	if n := len(r.textBuffer); n > 0 && r.textBuffer[n-1] != "" {
		if err := r.mark(); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	ended := allEmpty(r.textBuffer)
	report := r.report
	r.mu.Unlock()

	if ended {
		err := r.Close()
		r.options.SpeechEndedCallback(report)
		return err
	}
	return nil
}

func (r *streamingRequest) Cancel() error {
	r.mu.Lock()
	if r.closed || r.cancelled {
		r.mu.Unlock()
		return nil
	}
	r.cancelled = true
	err := r.sendWebsocketMessage(clearMsg)
	r.mu.Unlock()

	closeErr := r.Close()
	if err != nil {
		return errors.Join(fmt.Errorf("failed to send websocket clear message: %w", err), closeErr)
	}
	return closeErr
}

func (r *streamingRequest) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	sendErr := r.sendWebsocketMessage(closeMsg)
	r.closed = true
	r.mu.Unlock()

	if err := r.ws.Close(); err != nil && sendErr != nil {
		return fmt.Errorf("failed to close websocket: %w", errors.Join(sendErr, err))
	}
	return nil
}

func allEmpty(segments []string) bool {
	for _, segment := range segments {
		if segment != "" {
			return false
		}
	}
	return true
}

type websocketMessage struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func sendTextMsg(text string) websocketMessage {
	return websocketMessage{Type: "Speak", Text: text}
}

var (
	flushMsg = websocketMessage{Type: "Flush"}
	clearMsg = websocketMessage{Type: "Clear"}
	closeMsg = websocketMessage{Type: "Close"}
)

func (r *streamingRequest) sendWebsocketMessage(msg websocketMessage) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.closed || r.ws == nil {
		return ErrGeneratorClosed
	}

	if err := r.ws.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write to websocket: %w", err)
	}
	return nil
}
