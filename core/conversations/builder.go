package conversations

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-vision/core/vision"
)

// ErrEmptyContent is returned when a turn has nothing to append.
var ErrEmptyContent = errors.New("message has no content")

// Builder owns the conversation history. It is the only writer; everyone
// else reads copies obtained from Context.
type Builder struct {
	mu       sync.RWMutex
	messages []Message
	newID    func() string
}

type BuilderOption func(*Builder)

func WithMessageIDGenerator(newID func() string) BuilderOption {
	return func(b *Builder) {
		if newID != nil {
			b.newID = newID
		}
	}
}

// NewBuilder creates a builder seeded with a system message holding the
// preamble. An empty preamble starts an empty history.
func NewBuilder(preamble string, opts ...BuilderOption) *Builder {
	b := &Builder{newID: uuid.NewString}
	for _, opt := range opts {
		opt(b)
	}

	if preamble = strings.TrimSpace(preamble); preamble != "" {
		b.messages = append(b.messages, Message{
			ID:      b.newID(),
			Role:    RoleSystem,
			Content: []ContentPart{TextPart(preamble)},
		})
	}
	return b
}

// OnUserTurn appends a single user message built from the finalized
// transcript and, when present, the snapshot taken at the end of the turn.
// The text part comes first.
func (b *Builder) OnUserTurn(transcript string, snapshot *vision.Snapshot) (Message, error) {
	var content []ContentPart
	if transcript = strings.TrimSpace(transcript); transcript != "" {
		content = append(content, TextPart(transcript))
	}
	if snapshot != nil && len(snapshot.Data) > 0 {
		content = append(content, ImagePart(Image{
			Data:     snapshot.Data,
			MIMEType: snapshot.MIMEType,
			Width:    snapshot.Width,
			Height:   snapshot.Height,
			TrackID:  snapshot.TrackID,
		}))
	}
	if len(content) == 0 {
		return Message{}, ErrEmptyContent
	}

	return b.append(RoleUser, content)
}

func (b *Builder) OnAssistantTurn(text string) (Message, error) {
	if strings.TrimSpace(text) == "" {
		return Message{}, ErrEmptyContent
	}
	return b.append(RoleAssistant, []ContentPart{TextPart(text)})
}

// Context returns a deep copy of the history.
func (b *Builder) Context() Context {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var messages []Message
	if err := copier.CopyWithOption(&messages, b.messages, copier.Option{DeepCopy: true}); err != nil {
		logger.Error("failed to copy conversation history", "error", err)
		return Context{}
	}
	return Context{Messages: messages}
}

func (b *Builder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}

func (b *Builder) append(role Role, content []ContentPart) (Message, error) {
	message := Message{ID: b.newID(), Role: role}
	if err := copier.CopyWithOption(&message.Content, content, copier.Option{DeepCopy: true}); err != nil {
		return Message{}, fmt.Errorf("failed to copy message content: %w", err)
	}

	b.mu.Lock()
	b.messages = append(b.messages, message)
	b.mu.Unlock()

	return message, nil
}
