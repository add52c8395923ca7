package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"strings"

	"studybuddy-backend/internal/models"
)

var (
	ErrUnsupportedAttachment = errors.New("Unsupported file type. Please upload an image (JPEG, PNG, WEBP) or a text file (TXT).")
	ErrAttachmentTooLarge    = errors.New("File is too large to attach.")
	ErrEmptyAttachment       = errors.New("The attached file is empty.")
	ErrUnreadableAttachment  = errors.New("Could not read any text from the attached file.")
)

type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

var imageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// Upload is a file as received from the client, before classification.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Staged is a normalised attachment waiting to be sent. Images carry a
// preview data URL and the same bytes as a bare base64 payload; text
// attachments carry their extracted content.
type Staged struct {
	Name       string
	MimeType   string
	Kind       Kind
	PreviewURL string
	Payload    string
	Text       string
}

// DisplayAttachment is what the transcript shows for this attachment. Text
// attachments are never displayed as a file chip.
func (s *Staged) DisplayAttachment() *models.Attachment {
	if s == nil || s.Kind != KindImage {
		return nil
	}
	return &models.Attachment{Name: s.Name, MimeType: s.MimeType, DisplayData: s.PreviewURL}
}

// DocumentExtractor turns document bytes into text.
type DocumentExtractor interface {
	Supports(mimeType string) bool
	ExtractText(data []byte, mimeType string) (string, error)
}

type Normalizer struct {
	extractor      DocumentExtractor
	maxBytes       int64
	allowDocuments bool
}

// NewNormalizer builds a Normalizer. With allowDocuments false only
// text/plain goes through the extractor; everything that is not an image or
// plain text is rejected.
func NewNormalizer(extractor DocumentExtractor, maxBytes int64, allowDocuments bool) *Normalizer {
	return &Normalizer{extractor: extractor, maxBytes: maxBytes, allowDocuments: allowDocuments}
}

func (n *Normalizer) Normalize(u Upload) (*Staged, error) {
	mimeType := baseMediaType(u.MimeType)

	if n.maxBytes > 0 && int64(len(u.Data)) > n.maxBytes {
		return nil, ErrAttachmentTooLarge
	}

	switch {
	case imageTypes[mimeType]:
		if len(u.Data) == 0 {
			return nil, ErrEmptyAttachment
		}
		payload := base64.StdEncoding.EncodeToString(u.Data)
		return &Staged{
			Name:       u.Name,
			MimeType:   mimeType,
			Kind:       KindImage,
			PreviewURL: fmt.Sprintf("data:%s;base64,%s", mimeType, payload),
			Payload:    payload,
		}, nil

	case mimeType == "text/plain" || (n.allowDocuments && n.extractor.Supports(mimeType)):
		text, err := n.extractor.ExtractText(u.Data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableAttachment, err)
		}
		return &Staged{Name: u.Name, MimeType: mimeType, Kind: KindText, Text: text}, nil
	}

	return nil, ErrUnsupportedAttachment
}

// PayloadFromPreview strips the data URL prefix from a preview.
func PayloadFromPreview(preview string) string {
	if i := strings.Index(preview, ","); i >= 0 {
		return preview[i+1:]
	}
	return preview
}

func baseMediaType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return mt
}

// InputErrorMessage is the text shown next to the input for a rejected file.
func InputErrorMessage(err error) string {
	for _, known := range []error{ErrUnsupportedAttachment, ErrAttachmentTooLarge, ErrEmptyAttachment, ErrUnreadableAttachment} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrUnsupportedAttachment.Error()
}
