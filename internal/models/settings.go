package models

type Settings struct {
	Language           string   `json:"language"`
	SuggestedLanguages []string `json:"suggested_languages"`
	Plan               Plan     `json:"plan"`
	FocusMode          bool     `json:"focus_mode"`
}

type UpdateLanguageRequest struct {
	Language string `json:"language"`
}

type StartPaymentRequest struct {
	Method string `json:"method"`
}

// PaymentWebhook is the gateway callback body.
type PaymentWebhook struct {
	Method        string `json:"method"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"` // "completed" | "cancelled"
}

const (
	WebhookCompleted = "completed"
	WebhookCancelled = "cancelled"
)
