package semantic

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/koscakluka/ema-vision/core/conversations"
	"github.com/koscakluka/ema-vision/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

//go:embed endOfTurnInstr.tmpl
var endOfTurnSystemPrompt string

const defaultHistoryLimit = 6

type StructuredLLM interface {
	PromptWithStructure(ctx context.Context, prompt string, output any, opts ...llms.StructuredPromptOption) error
}

type prediction struct {
	Probability float64 `json:"probability" jsonschema:"title=Probability,description=Probability that the user finished their turn,minimum=0,maximum=1"`
}

// Model is an end-of-utterance model backed by a language model with
// structured output.
type Model struct {
	llm          StructuredLLM
	history      func() conversations.Context
	historyLimit int
}

type ModelOption func(*Model)

// WithHistory gives the model access to the most recent conversation
// messages.
func WithHistory(history func() conversations.Context) ModelOption {
	return func(m *Model) {
		m.history = history
	}
}

func WithHistoryLimit(limit int) ModelOption {
	return func(m *Model) {
		m.historyLimit = limit
	}
}

func NewModel(llm StructuredLLM, opts ...ModelOption) *Model {
	m := &Model{llm: llm, historyLimit: defaultHistoryLimit}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) PredictEndOfTurn(ctx context.Context, transcript string) (float64, error) {
	ctx, span := tracer.Start(ctx, "classify end of turn")
	defer span.End()

	opts := []llms.StructuredPromptOption{llms.WithSystemPrompt(endOfTurnSystemPrompt)}
	if m.history != nil {
		messages := m.history().Messages
		if m.historyLimit > 0 && len(messages) > m.historyLimit {
			messages = messages[len(messages)-m.historyLimit:]
		}
		opts = append(opts, llms.WithHistory(textOnly(messages)...))
	}

	var resp prediction
	if err := m.llm.PromptWithStructure(ctx, transcript, &resp, opts...); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to classify end of turn: %w", err)
	}

	probability := min(1, max(0, resp.Probability))
	span.SetAttributes(attribute.Float64("end_of_turn.probability", probability))
	logger.DebugContext(ctx, "classified end of turn", "probability", probability)
	return probability, nil
}

// textOnly strips image parts; the classifier only needs what was said.
func textOnly(messages []conversations.Message) []conversations.Message {
	out := make([]conversations.Message, 0, len(messages))
	for _, message := range messages {
		text := message.Text()
		if text == "" {
			continue
		}
		out = append(out, conversations.Message{
			ID:      message.ID,
			Role:    message.Role,
			Content: []conversations.ContentPart{conversations.TextPart(text)},
		})
	}
	return out
}
