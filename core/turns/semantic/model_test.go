package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/core/vision"
)

type structuredLLMStub struct {
	probability float64
	err         error

	prompt  string
	options llms.StructuredPromptOptions
}

func (s *structuredLLMStub) PromptWithStructure(_ context.Context, prompt string, output any, opts ...llms.StructuredPromptOption) error {
	s.prompt = prompt
	for _, opt := range opts {
		opt(&s.options)
	}
	if s.err != nil {
		return s.err
	}
	output.(*prediction).Probability = s.probability
	return nil
}

func TestPredictEndOfTurn(t *testing.T) {
	llm := &structuredLLMStub{probability: 0.7}
	model := NewModel(llm)

	probability, err := model.PredictEndOfTurn(context.Background(), "what time is it?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probability != 0.7 {
		t.Fatalf("unexpected probability %f", probability)
	}
	if llm.prompt != "what time is it?" {
		t.Fatalf("unexpected prompt %q", llm.prompt)
	}
	if llm.options.Instructions == "" {
		t.Fatalf("expected system prompt to be set")
	}
}

func TestPredictEndOfTurnClampsProbability(t *testing.T) {
	model := NewModel(&structuredLLMStub{probability: 1.7})

	probability, err := model.PredictEndOfTurn(context.Background(), "done")
	if err != nil || probability != 1 {
		t.Fatalf("expected clamped probability, got (%f, %v)", probability, err)
	}
}

func TestPredictEndOfTurnPropagatesErrors(t *testing.T) {
	llmErr := errors.New("rate limited")
	model := NewModel(&structuredLLMStub{err: llmErr})

	if _, err := model.PredictEndOfTurn(context.Background(), "so"); !errors.Is(err, llmErr) {
		t.Fatalf("expected wrapped llm error, got %v", err)
	}
}

func TestPredictEndOfTurnSendsRecentTextHistory(t *testing.T) {
	builder := conversations.NewBuilder("preamble")
	_, _ = builder.OnUserTurn("first", &vision.Snapshot{Data: []byte{1}, MIMEType: "image/jpeg"})
	_, _ = builder.OnAssistantTurn("reply one")
	_, _ = builder.OnUserTurn("second", nil)
	_, _ = builder.OnAssistantTurn("reply two")

	llm := &structuredLLMStub{probability: 0.4}
	model := NewModel(llm, WithHistory(builder.Context), WithHistoryLimit(3))

	if _, err := model.PredictEndOfTurn(context.Background(), "and"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history := llm.options.History
	if len(history) != 3 {
		t.Fatalf("expected last three messages, got %d", len(history))
	}
	if history[0].Text() != "reply one" || history[2].Text() != "reply two" {
		t.Fatalf("unexpected history %+v", history)
	}
	for _, message := range history {
		if len(message.Images()) != 0 {
			t.Fatalf("expected images to be stripped from classifier history")
		}
	}
}
