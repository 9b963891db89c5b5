package llms

import "github.com/koscakluka/ema-vision/core/conversations"

// StructuredPromptOptions contains the options for a prompt whose answer is
// decoded into a Go value.
type StructuredPromptOptions struct {
	Instructions string
	History      []conversations.Message
}

type StructuredPromptOption func(*StructuredPromptOptions)

// WithSystemPrompt sets the system prompt for the prompt.
// Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		opts.Instructions = prompt
	}
}

// WithHistory adds conversation messages to the prompt. System messages are
// skipped, instructions are set with WithSystemPrompt.
// Repeating this option will sequentially add more messages.
func WithHistory(messages ...conversations.Message) StructuredPromptOption {
	return func(opts *StructuredPromptOptions) {
		for _, message := range messages {
			if message.Role == conversations.RoleSystem {
				continue
			}
			opts.History = append(opts.History, message)
		}
	}
}
