package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	CompletionSimulated = "simulated"
	CompletionWebhook   = "webhook"
)

type Config struct {
	// Server
	Port    string `env:"PORT" envDefault:"8080"`
	Env     string `env:"ENV" envDefault:"development"`
	LogMode string `env:"LOG_MODE" envDefault:"dev"`

	// Database (optional, in-memory subscription store when empty)
	DatabaseURL string `env:"DATABASE_URL"`

	// Redis (optional, local fan-out and inline webhook delivery when empty)
	RedisURL string `env:"REDIS_URL"`

	// Gemini AI
	GeminiAPIKey         string `env:"GEMINI_API_KEY,required,notEmpty"`
	GeminiModel          string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiConcurrentReqs int    `env:"GEMINI_CONCURRENT_REQUESTS" envDefault:"5"`

	// Chat
	DefaultLanguage          string `env:"DEFAULT_LANGUAGE" envDefault:"English"`
	MaxAttachmentBytes       int64  `env:"MAX_ATTACHMENT_BYTES" envDefault:"10485760"`
	AllowDocumentAttachments bool   `env:"ALLOW_DOCUMENT_ATTACHMENTS" envDefault:"false"`

	// Payments
	PaymentAmount         decimal.Decimal `env:"PAYMENT_AMOUNT" envDefault:"9.99"`
	PaymentCurrency       string          `env:"PAYMENT_CURRENCY" envDefault:"USD"`
	PaymentCompletionMode string          `env:"PAYMENT_COMPLETION_MODE" envDefault:"simulated"`
	PaymentGatewayDelay   time.Duration   `env:"PAYMENT_GATEWAY_DELAY" envDefault:"3s"`
	PaymentVerifyDelay    time.Duration   `env:"PAYMENT_VERIFY_DELAY" envDefault:"1500ms"`
	PaymentSuccessRate    float64         `env:"PAYMENT_SUCCESS_RATE" envDefault:"0.9"`
	PaymentVerifyAttempts int             `env:"PAYMENT_VERIFY_ATTEMPTS" envDefault:"1"`
	PaymentVerifyBackoff  time.Duration   `env:"PAYMENT_VERIFY_BACKOFF" envDefault:"2s"`
	PaymentWebhookTimeout time.Duration   `env:"PAYMENT_WEBHOOK_TIMEOUT" envDefault:"15m"`
	PaymentWebhookSecret  string          `env:"PAYMENT_WEBHOOK_SECRET"`
	WebhookWorkers        int             `env:"WEBHOOK_WORKERS" envDefault:"2"`

	// Frontend
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
}

// Load reads an optional .env file, then the process environment.
// A missing GEMINI_API_KEY is an error: the generation client must never be
// built without credentials.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1, got %d", c.GeminiConcurrentReqs)
	}
	if c.MaxAttachmentBytes < 1 {
		return fmt.Errorf("MAX_ATTACHMENT_BYTES must be positive, got %d", c.MaxAttachmentBytes)
	}
	if !c.PaymentAmount.IsPositive() {
		return fmt.Errorf("PAYMENT_AMOUNT must be positive, got %s", c.PaymentAmount)
	}
	if c.PaymentSuccessRate < 0 || c.PaymentSuccessRate > 1 {
		return fmt.Errorf("PAYMENT_SUCCESS_RATE must be within [0,1], got %v", c.PaymentSuccessRate)
	}
	if c.PaymentVerifyAttempts < 1 {
		return fmt.Errorf("PAYMENT_VERIFY_ATTEMPTS must be at least 1, got %d", c.PaymentVerifyAttempts)
	}
	switch c.PaymentCompletionMode {
	case CompletionSimulated, CompletionWebhook:
	default:
		return fmt.Errorf("unknown PAYMENT_COMPLETION_MODE %q", c.PaymentCompletionMode)
	}
	if c.WebhookWorkers < 1 {
		return fmt.Errorf("WEBHOOK_WORKERS must be at least 1, got %d", c.WebhookWorkers)
	}
	return nil
}
