package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studybuddy-backend/internal/models"
)

// SubscriptionRepo keeps the single entitlement record in PostgreSQL. Every
// activated transaction id is recorded so a repeated activation is a no-op.
type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) Get(ctx context.Context) (models.SubscriptionState, error) {
	return scanSubscription(r.pool.QueryRow(ctx, selectSubscription))
}

func (r *SubscriptionRepo) Activate(ctx context.Context, transactionID, method string) (models.SubscriptionState, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return models.SubscriptionState{}, false, fmt.Errorf("begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO subscription_activations (transaction_id, payment_method) VALUES ($1, $2)
		ON CONFLICT (transaction_id) DO NOTHING`,
		transactionID, method,
	)
	if err != nil {
		return models.SubscriptionState{}, false, fmt.Errorf("record activation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		state, err := scanSubscription(tx.QueryRow(ctx, selectSubscription))
		return state, false, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE subscription_state
		SET plan = $1, last_transaction_id = $2, payment_method = $3,
			activated_at = COALESCE(activated_at, NOW()), updated_at = NOW()
		WHERE id = 1`,
		string(models.PlanPremium), transactionID, method,
	)
	if err != nil {
		return models.SubscriptionState{}, false, fmt.Errorf("update subscription: %w", err)
	}

	state, err := scanSubscription(tx.QueryRow(ctx, selectSubscription))
	if err != nil {
		return models.SubscriptionState{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.SubscriptionState{}, false, fmt.Errorf("commit activation: %w", err)
	}
	return state, true, nil
}

const selectSubscription = `SELECT plan, last_transaction_id, payment_method, activated_at
	FROM subscription_state WHERE id = 1`

func scanSubscription(row pgx.Row) (models.SubscriptionState, error) {
	var (
		s         models.SubscriptionState
		plan      string
		activated *time.Time
	)
	if err := row.Scan(&plan, &s.LastTransactionID, &s.PaymentMethod, &activated); err != nil {
		return models.SubscriptionState{}, fmt.Errorf("read subscription: %w", err)
	}
	s.Plan = models.Plan(plan)
	s.ActivatedAt = activated
	return s, nil
}
