package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-vision/core/texttospeech"
)

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

// newFakeSpeakServer answers every Flush with one audio frame per pending
// Speak message followed by a Flushed message.
func newFakeSpeakServer(t *testing.T) (*httptest.Server, *[]websocketMessage, *sync.Mutex) {
	t.Helper()
	var (
		mu       sync.Mutex
		received []websocketMessage
	)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()

		pending := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg websocketMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			mu.Lock()
			received = append(received, msg)
			mu.Unlock()

			switch msg.Type {
			case "Speak":
				pending++
			case "Flush":
				for range pending {
					_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4})
				}
				pending = 0
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
			case "Close":
				return
			}
		}
	}))
	return server, &received, &mu
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSpeechGeneratorDeliversAudioMarksAndEnd(t *testing.T) {
	server, _, _ := newFakeSpeakServer(t)
	defer server.Close()

	client, err := NewTextToSpeechClient("key", "", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var (
		mu         sync.Mutex
		audioBytes int
		marks      []string
		report     *texttospeech.SpeechEndedReport
	)
	generator, err := client.NewSpeechGenerator(context.Background(),
		texttospeech.WithSpeechAudioCallback(func(audio []byte) {
			mu.Lock()
			defer mu.Unlock()
			audioBytes += len(audio)
		}),
		texttospeech.WithSpeechMarkCallback(func(mark string) {
			mu.Lock()
			defer mu.Unlock()
			marks = append(marks, mark)
		}),
		texttospeech.WithSpeechEndedCallback(func(r texttospeech.SpeechEndedReport) {
			mu.Lock()
			defer mu.Unlock()
			report = &r
		}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := generator.SendText("Hello there."); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := generator.Mark(); err != nil {
		t.Fatalf("unexpected mark error: %v", err)
	}
	if err := generator.SendText(" How are you?"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := generator.EndOfText(); err != nil {
		t.Fatalf("unexpected end of text error: %v", err)
	}

	waitForCondition(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return report != nil
	})

	mu.Lock()
	defer mu.Unlock()
	if len(marks) != 2 || marks[0] != "Hello there." || marks[1] != " How are you?" {
		t.Fatalf("unexpected marks %+v", marks)
	}
	if audioBytes != 8 {
		t.Fatalf("expected 8 audio bytes, got %d", audioBytes)
	}
	if report.Characters != len("Hello there. How are you?") || report.AudioBytes != 8 {
		t.Fatalf("unexpected report %+v", report)
	}

	if err := generator.SendText("more"); !errors.Is(err, ErrGeneratorClosed) {
		t.Fatalf("expected ErrGeneratorClosed after end, got %v", err)
	}
}

func TestSpeechGeneratorCancelStopsGeneration(t *testing.T) {
	server, received, receivedMu := newFakeSpeakServer(t)
	defer server.Close()

	client, err := NewTextToSpeechClient("key", "aura-2-thalia-en", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	generator, err := client.NewSpeechGenerator(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := generator.SendText("This will be interrupted"); err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}
	if err := generator.Cancel(); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if err := generator.Cancel(); err != nil {
		t.Fatalf("expected repeated cancel to be ignored, got %v", err)
	}
	if err := generator.Mark(); !errors.Is(err, ErrGeneratorClosed) {
		t.Fatalf("expected ErrGeneratorClosed after cancel, got %v", err)
	}

	waitForCondition(t, 2*time.Second, func() bool {
		receivedMu.Lock()
		defer receivedMu.Unlock()
		for _, msg := range *received {
			if msg.Type == "Clear" {
				return true
			}
		}
		return false
	})
}

func TestNewTextToSpeechClientRejectsUnknownVoice(t *testing.T) {
	if _, err := NewTextToSpeechClient("key", "robot-voice"); !errors.Is(err, ErrInvalidVoice) {
		t.Fatalf("expected ErrInvalidVoice, got %v", err)
	}
}
