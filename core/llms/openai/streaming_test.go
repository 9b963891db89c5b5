package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/vision"
)

func sseEvent(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

func TestStreamYieldsContentAndUsage(t *testing.T) {
	var received requestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, sseEvent("response.created", `{}`))
		_, _ = io.WriteString(w, sseEvent("response.in_progress", `{}`))
		_, _ = io.WriteString(w, sseEvent("response.output_item.added", `{}`))
		_, _ = io.WriteString(w, sseEvent("response.output_text.delta", `{"delta":"It is "}`))
		_, _ = io.WriteString(w, sseEvent("response.output_text.delta", `{"delta":"a cat."}`))
		_, _ = io.WriteString(w, sseEvent("response.completed", `{"response":{"usage":{"input_tokens":120,"output_tokens":4,"total_tokens":124}}}`))
	}))
	defer server.Close()

	builder := conversations.NewBuilder("Describe what you see.")
	if _, err := builder.OnUserTurn("what is this?", &vision.Snapshot{Data: []byte("jpeg"), MIMEType: "image/jpeg"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	client := NewClient("test-key", "gpt-test", WithURL(server.URL), WithHTTPClient(server.Client()))
	stream := client.StreamResponse(context.Background(), builder.Context())

	var content strings.Builder
	var usage *llms.Usage
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		switch c := chunk.(type) {
		case llms.StreamContentChunk:
			content.WriteString(c.Content())
		case llms.StreamUsageChunk:
			u := c.Usage()
			usage = &u
		}
	}

	if content.String() != "It is a cat." {
		t.Fatalf("unexpected content %q", content.String())
	}
	if usage == nil || usage.InputTokens != 120 || usage.OutputTokens != 4 {
		t.Fatalf("unexpected usage %+v", usage)
	}

	if received.Model != "gpt-test" || !received.Stream {
		t.Fatalf("unexpected request %+v", received)
	}
	if len(received.Input) != 2 {
		t.Fatalf("expected developer and user messages, got %+v", received.Input)
	}
	user := received.Input[1]
	if user.Role != messageRoleUser || len(user.Content) != 2 {
		t.Fatalf("expected user message with two parts, got %+v", user)
	}
	if user.Content[1].Type != contentTypeInputImage || !strings.HasPrefix(user.Content[1].ImageURL, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected image part %+v", user.Content[1])
	}
}

func TestStreamReportsHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("key", "", WithURL(server.URL), WithHTTPClient(server.Client()))
	stream := client.StreamResponse(context.Background(), conversations.NewBuilder("preamble").Context())

	var streamErr error
	for _, err := range stream.Chunks(context.Background()) {
		if err != nil {
			streamErr = err
			break
		}
	}
	if streamErr == nil || !strings.Contains(streamErr.Error(), "429") {
		t.Fatalf("expected HTTP status error, got %v", streamErr)
	}
}

func TestStreamStopsWhenConsumerBreaks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		for i := range 50 {
			_, _ = io.WriteString(w, sseEvent("response.output_text.delta", fmt.Sprintf(`{"delta":"%d "}`, i)))
		}
	}))
	defer server.Close()

	client := NewClient("key", "", WithURL(server.URL), WithHTTPClient(server.Client()))
	stream := client.StreamResponse(context.Background(), conversations.Context{})

	received := 0
	for chunk, err := range stream.Chunks(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := chunk.(llms.StreamContentChunk); ok {
			received++
		}
		if received == 3 {
			break
		}
	}
	if received != 3 {
		t.Fatalf("expected to stop after three chunks, got %d", received)
	}
}
