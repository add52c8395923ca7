package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/payments"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	maxWebhookBody  = 64 << 10
)

type paymentOrchestrator interface {
	OpenSelection(ctx context.Context) error
	CloseSelection() error
	Start(ctx context.Context, method string) (models.PaymentAttempt, error)
	Current() payments.Snapshot
	HandleWebhook(method payments.Method, transactionID string, completed bool) (bool, error)
}

// WebhookQueue hands a callback to the worker pool instead of applying it
// inline.
type WebhookQueue interface {
	Enqueue(ctx context.Context, wh models.PaymentWebhook) error
}

type PaymentHandler struct {
	orchestrator  paymentOrchestrator
	queue         WebhookQueue
	webhookSecret string
	log           *logger.Logger
}

// NewPaymentHandler builds the payment endpoints. A nil queue applies
// webhooks inline.
func NewPaymentHandler(orchestrator paymentOrchestrator, queue WebhookQueue, webhookSecret string, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{
		orchestrator:  orchestrator,
		queue:         queue,
		webhookSecret: webhookSecret,
		log:           log.With("handler", "payments"),
	}
}

func (h *PaymentHandler) Methods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"methods": payments.Methods()})
}

func (h *PaymentHandler) OpenSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.OpenSelection(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orchestrator.Current())
}

func (h *PaymentHandler) CloseSelection(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.CloseSelection(); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orchestrator.Current())
}

func (h *PaymentHandler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req models.StartPaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attempt, err := h.orchestrator.Start(r.Context(), req.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, attempt)
}

func (h *PaymentHandler) CurrentAttempt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orchestrator.Current())
}

// Webhook receives a gateway callback for an attempt awaiting the gateway.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	method, err := payments.ParseMethod(chi.URLParam(r, "method"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Unknown payment method", r))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if err := payments.VerifySignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)); err != nil {
		h.log.Warn("webhook signature rejected", "method", method)
		writeJSON(w, http.StatusUnauthorized, errorResp("INVALID_SIGNATURE", "Invalid webhook signature", r))
		return
	}

	var wh models.PaymentWebhook
	if err := json.Unmarshal(body, &wh); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	wh.Method = string(method)
	wh.TransactionID = strings.TrimSpace(wh.TransactionID)
	wh.Status = strings.ToLower(strings.TrimSpace(wh.Status))

	fields := map[string]string{}
	if wh.TransactionID == "" {
		fields["transaction_id"] = "Transaction ID is required"
	}
	if wh.Status != models.WebhookCompleted && wh.Status != models.WebhookCancelled {
		fields["status"] = "Status must be completed or cancelled"
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if h.queue != nil {
		if err := h.queue.Enqueue(r.Context(), wh); err != nil {
			h.log.Error("failed to queue webhook", "transaction_id", wh.TransactionID, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, errorResp("QUEUE_UNAVAILABLE", "Webhook could not be queued", r))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"queued": true})
		return
	}

	accepted, err := h.orchestrator.HandleWebhook(method, wh.TransactionID, wh.Status == models.WebhookCompleted)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": accepted})
}

func (h *PaymentHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, payments.ErrUnknownMethod):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Unknown payment method",
			map[string]string{"method": "Must be one of Stripe, PayPal, JazzCash, Easypaisa"}, r))
	case errors.Is(err, payments.ErrAttemptInProgress):
		writeJSON(w, http.StatusConflict, errorResp("ATTEMPT_IN_PROGRESS", err.Error(), r))
	case errors.Is(err, payments.ErrAlreadyPremium):
		writeJSON(w, http.StatusConflict, errorResp("ALREADY_PREMIUM", err.Error(), r))
	case errors.Is(err, payments.ErrUnknownTransaction):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Unknown transaction", r))
	case errors.Is(err, payments.ErrWebhooksDisabled):
		writeJSON(w, http.StatusConflict, errorResp("WEBHOOKS_DISABLED", err.Error(), r))
	default:
		h.log.Error("payment request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
