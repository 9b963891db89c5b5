package conversations

import "strings"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ContentPartType string

const (
	ContentPartText  ContentPartType = "text"
	ContentPartImage ContentPartType = "image"
)

// ContentPart is one piece of a message. Exactly one of Text or Image is
// set, matching Type.
type ContentPart struct {
	Type  ContentPartType
	Text  string
	Image *Image
}

// Image is an encoded picture attached to a message.
type Image struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	TrackID  string
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

func ImagePart(image Image) ContentPart {
	return ContentPart{Type: ContentPartImage, Image: &image}
}

// Message is an entry in the conversation. Messages are never modified once
// appended to a Builder.
type Message struct {
	ID      string
	Role    Role
	Content []ContentPart
}

// Text joins all text parts of the message.
func (m Message) Text() string {
	var text strings.Builder
	for _, part := range m.Content {
		if part.Type != ContentPartText {
			continue
		}
		if text.Len() > 0 {
			text.WriteString(" ")
		}
		text.WriteString(part.Text)
	}
	return text.String()
}

func (m Message) Images() []Image {
	var images []Image
	for _, part := range m.Content {
		if part.Type == ContentPartImage && part.Image != nil {
			images = append(images, *part.Image)
		}
	}
	return images
}

// Context is a read-only view of the conversation history, oldest first.
type Context struct {
	Messages []Message
}

func (c Context) Len() int {
	return len(c.Messages)
}

// Last returns the newest message, if any.
func (c Context) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// Preamble returns the text of the leading system message, if any.
func (c Context) Preamble() string {
	if len(c.Messages) == 0 || c.Messages[0].Role != RoleSystem {
		return ""
	}
	return c.Messages[0].Text()
}
