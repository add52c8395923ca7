package models

// Role identifies the author of a transcript message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Attachment is the displayable file chip on a user message. DisplayData is a
// base64 data URL and is only ever set for images.
type Attachment struct {
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	DisplayData string `json:"display_data,omitempty"`
}

// Message is a single transcript entry.
type Message struct {
	Role       Role        `json:"role"`
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// InlineData is a binary part: a media type plus the base64 payload without
// any data URL prefix.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Part is one element of a composed request. Exactly one field is set.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inline_data,omitempty"`
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func BlobPart(mimeType, data string) Part {
	return Part{InlineData: &InlineData{MimeType: mimeType, Data: data}}
}

// ChatState is the state of a chat session engine.
type ChatState string

const (
	ChatIdle      ChatState = "idle"
	ChatSending   ChatState = "sending"
	ChatStreaming ChatState = "streaming"
)
