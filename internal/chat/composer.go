package chat

import (
	"errors"
	"fmt"
	"strings"

	"studybuddy-backend/internal/models"
)

// DefaultDocumentRequest replaces the user request when a text attachment is
// sent without any typed text.
const DefaultDocumentRequest = "Summarize the following document, highlighting key points, definitions, and formulas:"

var ErrEmptyPrompt = errors.New("nothing to send")

// Compose builds the ordered parts for one send. An image is always the
// first part; a text attachment is folded into the prompt text between
// document markers.
func Compose(text string, staged *Staged) ([]models.Part, error) {
	var parts []models.Part
	prompt := strings.TrimSpace(text)

	if staged != nil {
		switch staged.Kind {
		case KindImage:
			parts = append(parts, models.BlobPart(staged.MimeType, staged.Payload))
		case KindText:
			prompt = documentPrompt(staged.Name, staged.Text, prompt)
		}
	}

	if prompt != "" {
		parts = append(parts, models.TextPart(prompt))
	}

	if len(parts) == 0 {
		return nil, ErrEmptyPrompt
	}
	return parts, nil
}

func documentPrompt(name, content, request string) string {
	if request == "" {
		request = DefaultDocumentRequest
	}
	return fmt.Sprintf("Based on the content of \"%s\" provided below, please respond to the user's request.\n\n--- DOCUMENT START ---\n%s\n--- DOCUMENT END ---\n\nUSER REQUEST: %s", name, content, request)
}
