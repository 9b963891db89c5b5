package groq

import (
	"encoding/base64"

	"github.com/koscakluka/ema-vision/core/conversations"
)

type message struct {
	Role messageRole `json:"role"`
	// Content is either a plain string or a list of content parts for
	// messages carrying images.
	Content any `json:"content"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type contentPart struct {
	Type     string           `json:"type"`
	Text     string           `json:"text,omitempty"`
	ImageURL *contentImageURL `json:"image_url,omitempty"`
}

type contentImageURL struct {
	URL string `json:"url"`
}

func toMessages(instructions string, history []conversations.Message) []message {
	messages := []message{}
	if instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: instructions,
		})
	}

	for _, msg := range history {
		var role messageRole
		switch msg.Role {
		case conversations.RoleSystem:
			role = messageRoleSystem
		case conversations.RoleUser:
			role = messageRoleUser
		case conversations.RoleAssistant:
			role = messageRoleAssistant
		default:
			continue
		}

		images := msg.Images()
		if len(images) == 0 || role != messageRoleUser {
			if text := msg.Text(); text != "" {
				messages = append(messages, message{Role: role, Content: text})
			}
			continue
		}

		parts := []contentPart{}
		if text := msg.Text(); text != "" {
			parts = append(parts, contentPart{Type: "text", Text: text})
		}
		for _, image := range images {
			mimeType := image.MIMEType
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			parts = append(parts, contentPart{
				Type: "image_url",
				ImageURL: &contentImageURL{
					URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image.Data),
				},
			})
		}
		messages = append(messages, message{Role: role, Content: parts})
	}
	return messages
}
