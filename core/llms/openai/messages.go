package openai

import (
	"encoding/base64"

	"github.com/koscakluka/ema-vision/core/conversations"
)

type openAIMessage struct {
	Type    messageType         `json:"type"`
	Role    messageRole         `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     contentType `json:"type"`
	Text     string      `json:"text,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

type messageRole string

const (
	messageRoleDeveloper messageRole = "developer"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
)

type messageType string

const (
	messageTypeMessage messageType = "message"
)

type contentType string

const (
	contentTypeInputText  contentType = "input_text"
	contentTypeInputImage contentType = "input_image"
	contentTypeOutputText contentType = "output_text"
)

func toOpenAIMessages(conversation conversations.Context) []openAIMessage {
	messages := []openAIMessage{}
	for _, message := range conversation.Messages {
		var msg openAIMessage
		switch message.Role {
		case conversations.RoleSystem:
			msg = openAIMessage{Type: messageTypeMessage, Role: messageRoleDeveloper}
		case conversations.RoleUser:
			msg = openAIMessage{Type: messageTypeMessage, Role: messageRoleUser}
		case conversations.RoleAssistant:
			msg = openAIMessage{Type: messageTypeMessage, Role: messageRoleAssistant}
		default:
			continue
		}

		for _, part := range message.Content {
			switch part.Type {
			case conversations.ContentPartText:
				textType := contentTypeInputText
				if message.Role == conversations.RoleAssistant {
					textType = contentTypeOutputText
				}
				msg.Content = append(msg.Content, openAIContentPart{Type: textType, Text: part.Text})
			case conversations.ContentPartImage:
				if part.Image == nil || message.Role != conversations.RoleUser {
					continue
				}
				msg.Content = append(msg.Content, openAIContentPart{
					Type:     contentTypeInputImage,
					ImageURL: dataURL(part.Image.MIMEType, part.Image.Data),
					Detail:   "auto",
				})
			}
		}

		if len(msg.Content) > 0 {
			messages = append(messages, msg)
		}
	}
	return messages
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
