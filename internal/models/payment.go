package models

import (
	"time"

	"github.com/google/uuid"
)

type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPremium Plan = "Premium"
)

// SubscriptionState is the entitlement record. Plan only moves Free → Premium,
// and only through a successful verification.
type SubscriptionState struct {
	Plan              Plan       `json:"plan"`
	LastTransactionID *string    `json:"last_transaction_id"`
	PaymentMethod     *string    `json:"payment_method,omitempty"`
	ActivatedAt       *time.Time `json:"activated_at,omitempty"`
}

type PaymentStatus string

const (
	PaymentIdle            PaymentStatus = "idle"
	PaymentSelecting       PaymentStatus = "selecting"
	PaymentCreating        PaymentStatus = "creating"
	PaymentAwaitingGateway PaymentStatus = "awaiting_gateway"
	PaymentVerifying       PaymentStatus = "verifying"
	PaymentSucceeded       PaymentStatus = "succeeded"
	PaymentFailed          PaymentStatus = "failed"
)

// Terminal reports whether no further transition can happen for an attempt.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSucceeded || s == PaymentFailed
}

type FailureCause string

const (
	CauseCreation     FailureCause = "creation_failed"
	CauseCancelled    FailureCause = "cancelled"
	CauseVerification FailureCause = "verification_failed"
	CauseUnexpected   FailureCause = "unexpected"
)

type PaymentAttempt struct {
	ID            uuid.UUID     `json:"id"`
	Method        string        `json:"method"`
	TransactionID string        `json:"transaction_id,omitempty"`
	CheckoutURL   string        `json:"checkout_url,omitempty"`
	Status        PaymentStatus `json:"status"`
	FailureCause  FailureCause  `json:"failure_cause,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

type StatusType string

const (
	StatusInfo    StatusType = "info"
	StatusSuccess StatusType = "success"
	StatusError   StatusType = "error"
)

// StatusMessage is the user-visible status banner text.
type StatusMessage struct {
	Type StatusType `json:"type"`
	Text string     `json:"text"`
}
