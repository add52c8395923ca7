package models

// WebSocket message envelope, used in both directions.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Chat socket events (server → client)
const (
	EventTranscript       = "transcript"
	EventMessageAppended  = "message_appended"
	EventMessageUpdated   = "message_updated"
	EventStateChanged     = "state_changed"
	EventAttachmentStaged = "attachment_staged"
	EventAttachmentClear  = "attachment_cleared"
	EventInputError       = "input_error"
	EventFocusMode        = "focus_mode"
	EventSendRejected     = "send_rejected"
	EventProtocolError    = "protocol_error"
)

// App-wide events
const (
	EventPaymentStatus       = "payment_status"
	EventSubscriptionChanged = "subscription_changed"
	EventLanguageChanged     = "language_changed"
)

type TranscriptEvent struct {
	Messages []Message `json:"messages"`
	State    ChatState `json:"state"`
}

type MessageAppendedEvent struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// MessageUpdatedEvent carries the full trailing content plus the chunk that
// was just appended.
type MessageUpdatedEvent struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
	Delta   string `json:"delta,omitempty"`
}

type AttachmentStagedEvent struct {
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Kind       string `json:"kind"`
	PreviewURL string `json:"preview_url,omitempty"`
}

type StateChangedEvent struct {
	State ChatState `json:"state"`
}

type FocusModeEvent struct {
	On bool `json:"on"`
}

type InputErrorEvent struct {
	Message string `json:"message"`
}

type SendRejectedEvent struct {
	Reason string `json:"reason"`
}

type ProtocolErrorEvent struct {
	Message string `json:"message"`
}

type PaymentStatusEvent struct {
	Attempt PaymentAttempt `json:"attempt"`
	Status  StatusMessage  `json:"status"`
}

type LanguageChangedEvent struct {
	Language string        `json:"language"`
	Status   StatusMessage `json:"status"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
