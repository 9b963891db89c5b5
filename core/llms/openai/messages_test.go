package openai

import (
	"testing"

	"github.com/koscakluka/ema-vision/core/conversations"
)

func TestToOpenAIMessagesMapsRolesAndParts(t *testing.T) {
	conversation := conversations.Context{Messages: []conversations.Message{
		{Role: conversations.RoleSystem, Content: []conversations.ContentPart{conversations.TextPart("be brief")}},
		{Role: conversations.RoleUser, Content: []conversations.ContentPart{
			conversations.TextPart("what colour is this?"),
			conversations.ImagePart(conversations.Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}),
		}},
		{Role: conversations.RoleAssistant, Content: []conversations.ContentPart{conversations.TextPart("Red.")}},
	}}

	messages := toOpenAIMessages(conversation)
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}

	if messages[0].Role != messageRoleDeveloper || messages[0].Content[0].Text != "be brief" {
		t.Fatalf("unexpected developer message %+v", messages[0])
	}

	user := messages[1]
	if user.Role != messageRoleUser || len(user.Content) != 2 {
		t.Fatalf("unexpected user message %+v", user)
	}
	if user.Content[0].Type != contentTypeInputText {
		t.Fatalf("expected text part first, got %+v", user.Content[0])
	}
	if user.Content[1].ImageURL != "data:image/png;base64,AQID" {
		t.Fatalf("unexpected image url %q", user.Content[1].ImageURL)
	}

	if messages[2].Role != messageRoleAssistant || messages[2].Content[0].Type != contentTypeOutputText {
		t.Fatalf("unexpected assistant message %+v", messages[2])
	}
}
