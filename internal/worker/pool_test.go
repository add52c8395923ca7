package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/payments"
	"studybuddy-backend/internal/repository"
)

type recordedCall struct {
	method    payments.Method
	txn       string
	completed bool
}

type stubHandler struct {
	calls []recordedCall
	err   error
}

func (h *stubHandler) HandleWebhook(method payments.Method, transactionID string, completed bool) (bool, error) {
	h.calls = append(h.calls, recordedCall{method, transactionID, completed})
	return h.err == nil, h.err
}

func newTestPool(h WebhookHandler) *Pool {
	p := NewPool(nil, h, 1, logger.Nop())
	claimed := map[string]bool{}
	p.lock = func(ctx context.Context, txn string) (bool, error) {
		if claimed[txn] {
			return false, nil
		}
		claimed[txn] = true
		return true, nil
	}
	p.unlock = func(ctx context.Context, txn string) error {
		delete(claimed, txn)
		return nil
	}
	return p
}

func TestProcess_AppliesOncePerTransaction(t *testing.T) {
	h := &stubHandler{}
	p := newTestPool(h)
	raw := `{"method":"jazzcash","transaction_id":"txn_jazzcash_1_ab","status":"completed"}`

	for i := 0; i < 3; i++ {
		if err := p.process(context.Background(), raw); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(h.calls) != 1 {
		t.Fatalf("expected one applied webhook, got %d", len(h.calls))
	}
	if got := h.calls[0]; got.method != payments.JazzCash || got.txn != "txn_jazzcash_1_ab" || !got.completed {
		t.Fatalf("unexpected call %+v", got)
	}
}

func TestProcess_CancelledStatus(t *testing.T) {
	h := &stubHandler{}
	p := newTestPool(h)

	p.process(context.Background(), `{"method":"Stripe","transaction_id":"txn_stripe_1_a","status":"cancelled"}`)
	if len(h.calls) != 1 || h.calls[0].completed {
		t.Fatalf("expected a cancelled callback, got %+v", h.calls)
	}
}

func TestProcess_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"malformed", `{`, nil},
		{"unknown method", `{"method":"cash","transaction_id":"t","status":"completed"}`, payments.ErrUnknownMethod},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := &stubHandler{}
			err := newTestPool(h).process(context.Background(), tc.raw)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(h.calls) != 0 {
				t.Fatal("handler must not be called")
			}
		})
	}
}

func TestProcess_HandlerErrorIsReported(t *testing.T) {
	h := &stubHandler{err: payments.ErrUnknownTransaction}
	err := newTestPool(h).process(context.Background(), `{"method":"PayPal","transaction_id":"txn_x","status":"completed"}`)
	if !errors.Is(err, payments.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestProcess_RejectedWebhookReleasesLock(t *testing.T) {
	h := &stubHandler{err: payments.ErrUnknownTransaction}
	p := newTestPool(h)
	raw := `{"method":"Stripe","transaction_id":"txn_stripe_1_a","status":"completed"}`

	p.process(context.Background(), raw)
	h.err = nil
	if err := p.process(context.Background(), raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(h.calls) != 2 {
		t.Fatalf("expected the second callback to reach the handler, got %d calls", len(h.calls))
	}
}

func TestProcess_MismatchedMethodDoesNotBlockRealCallback(t *testing.T) {
	subs := repository.NewMemorySubscriptionRepo()
	orch := payments.NewOrchestrator(context.Background(), payments.Config{
		Gateways:      payments.NewStubGateways(0),
		Verifier:      payments.NewSimulatedVerifier(0, 1),
		Completion:    payments.NewWebhookCompletion(time.Minute),
		Subscriptions: subs,
		Amount:        decimal.RequireFromString("9.99"),
		Currency:      "USD",
	})
	defer orch.Shutdown()

	if _, err := orch.Start(context.Background(), "Stripe"); err != nil {
		t.Fatal(err)
	}
	txn := awaitGateway(t, orch)
	p := newTestPool(orch)

	wrong := fmt.Sprintf(`{"method":"paypal","transaction_id":%q,"status":"completed"}`, txn)
	if err := p.process(context.Background(), wrong); !errors.Is(err, payments.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}

	right := fmt.Sprintf(`{"method":"stripe","transaction_id":%q,"status":"completed"}`, txn)
	if err := p.process(context.Background(), right); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	orch.Wait()

	snap := orch.Current()
	if snap.State != models.PaymentSucceeded {
		t.Fatalf("expected succeeded, got %s (%+v)", snap.State, snap.Status)
	}
	if sub, _ := subs.Get(context.Background()); sub.Plan != models.PlanPremium {
		t.Fatalf("expected Premium, got %s", sub.Plan)
	}
}

func awaitGateway(t *testing.T, orch *payments.Orchestrator) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap := orch.Current()
		if snap.State == models.PaymentAwaitingGateway && snap.Attempt != nil && snap.Attempt.TransactionID != "" {
			return snap.Attempt.TransactionID
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("attempt never reached the gateway")
	return ""
}
