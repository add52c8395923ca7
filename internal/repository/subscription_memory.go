package repository

import (
	"context"
	"sync"
	"time"

	"studybuddy-backend/internal/models"
)

// MemorySubscriptionRepo is used when no database is configured. State lives
// for the lifetime of the process.
type MemorySubscriptionRepo struct {
	mu        sync.Mutex
	state     models.SubscriptionState
	activated map[string]bool
	now       func() time.Time
}

func NewMemorySubscriptionRepo() *MemorySubscriptionRepo {
	return &MemorySubscriptionRepo{
		state:     models.SubscriptionState{Plan: models.PlanFree},
		activated: make(map[string]bool),
		now:       time.Now,
	}
}

func (r *MemorySubscriptionRepo) Get(ctx context.Context) (models.SubscriptionState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySubscription(r.state), nil
}

func (r *MemorySubscriptionRepo) Activate(ctx context.Context, transactionID, method string) (models.SubscriptionState, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activated[transactionID] {
		return copySubscription(r.state), false, nil
	}
	r.activated[transactionID] = true

	r.state.Plan = models.PlanPremium
	r.state.LastTransactionID = &transactionID
	r.state.PaymentMethod = &method
	if r.state.ActivatedAt == nil {
		at := r.now().UTC()
		r.state.ActivatedAt = &at
	}
	return copySubscription(r.state), true, nil
}

func copySubscription(s models.SubscriptionState) models.SubscriptionState {
	out := models.SubscriptionState{Plan: s.Plan}
	if s.LastTransactionID != nil {
		v := *s.LastTransactionID
		out.LastTransactionID = &v
	}
	if s.PaymentMethod != nil {
		v := *s.PaymentMethod
		out.PaymentMethod = &v
	}
	if s.ActivatedAt != nil {
		v := *s.ActivatedAt
		out.ActivatedAt = &v
	}
	return out
}
