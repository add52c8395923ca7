package payments

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	VerifiedMessage   = "Transaction verified successfully."
	UnverifiedMessage = "Could not verify the transaction with the payment provider."
)

// Verification is the provider's answer for one transaction. It is the only
// source of truth for entitlement.
type Verification struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Verifier interface {
	Verify(ctx context.Context, transactionID string, method Method) (Verification, error)
}

// SimulatedVerifier answers after a fixed delay, successfully with
// probability SuccessRate.
type SimulatedVerifier struct {
	Delay       time.Duration
	SuccessRate float64
	Rand        func() float64
}

func NewSimulatedVerifier(delay time.Duration, successRate float64) *SimulatedVerifier {
	return &SimulatedVerifier{Delay: delay, SuccessRate: successRate, Rand: rand.Float64}
}

func (v *SimulatedVerifier) Verify(ctx context.Context, transactionID string, method Method) (Verification, error) {
	if err := sleep(ctx, v.Delay); err != nil {
		return Verification{}, err
	}
	if v.Rand() < v.SuccessRate {
		return Verification{Success: true, Message: VerifiedMessage}, nil
	}
	return Verification{Success: false, Message: UnverifiedMessage}, nil
}
