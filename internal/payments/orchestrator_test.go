package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"studybuddy-backend/internal/models"
)

// ─── Stubs ───

type memStore struct {
	mu        sync.Mutex
	state     models.SubscriptionState
	seen      map[string]bool
	activates int
	err       error
}

func newMemStore() *memStore {
	return &memStore{state: models.SubscriptionState{Plan: models.PlanFree}, seen: map[string]bool{}}
}

func (s *memStore) Get(ctx context.Context) (models.SubscriptionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, nil
}

func (s *memStore) Activate(ctx context.Context, transactionID, method string) (models.SubscriptionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activates++
	if s.err != nil {
		return s.state, false, s.err
	}
	if s.seen[transactionID] {
		return s.state, false, nil
	}
	s.seen[transactionID] = true
	s.state.Plan = models.PlanPremium
	s.state.LastTransactionID = &transactionID
	return s.state, true, nil
}

func (s *memStore) plan() models.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Plan
}

type scriptedVerifier struct {
	mu      sync.Mutex
	results []Verification
	err     error
	calls   int
}

func (v *scriptedVerifier) Verify(ctx context.Context, transactionID string, method Method) (Verification, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return Verification{}, v.err
	}
	if len(v.results) == 0 {
		return Verification{Success: true, Message: VerifiedMessage}, nil
	}
	r := v.results[0]
	v.results = v.results[1:]
	return r, nil
}

type statusLog struct {
	mu      sync.Mutex
	texts   []string
	subs    []models.SubscriptionState
	updates chan models.PaymentAttempt
}

func newStatusLog() *statusLog {
	return &statusLog{updates: make(chan models.PaymentAttempt, 16)}
}

func (l *statusLog) onStatus(a models.PaymentAttempt, s models.StatusMessage) {
	l.mu.Lock()
	l.texts = append(l.texts, s.Text)
	l.mu.Unlock()
	l.updates <- a
}

func (l *statusLog) onSubscription(s models.SubscriptionState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, s)
}

func (l *statusLog) waitFor(t *testing.T, status models.PaymentStatus) models.PaymentAttempt {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case a := <-l.updates:
			if a.Status == status {
				return a
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", status)
		}
	}
}

func always(v float64) func() float64 {
	return func() float64 { return v }
}

type fixture struct {
	orch     *Orchestrator
	store    *memStore
	verifier *scriptedVerifier
	log      *statusLog
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{store: newMemStore(), verifier: &scriptedVerifier{}, log: newStatusLog()}
	cfg := Config{
		Gateways:       NewStubGateways(0),
		Verifier:       f.verifier,
		Completion:     &SimulatedCompletion{ProceedRate: 0.9, Rand: always(0.5)},
		Subscriptions:  f.store,
		Amount:         decimal.RequireFromString("9.99"),
		Currency:       "USD",
		VerifyAttempts: 1,
		OnStatus:       f.log.onStatus,
		OnSubscription: f.log.onSubscription,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	f.orch = NewOrchestrator(context.Background(), cfg)
	t.Cleanup(f.orch.Shutdown)
	return f
}

// ─── Tests ───

func TestOrchestrator_SuccessfulUpgrade(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.orch.OpenSelection(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.orch.Current().State; got != models.PaymentSelecting {
		t.Fatalf("expected selecting, got %s", got)
	}

	attempt, err := f.orch.Start(context.Background(), "Stripe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempt.Status != models.PaymentCreating {
		t.Fatalf("expected creating, got %s", attempt.Status)
	}
	f.orch.Wait()

	want := []string{
		"Creating secure Stripe session...",
		"Redirecting to Stripe...",
		"Verifying transaction...",
		SuccessText,
	}
	if strings.Join(f.log.texts, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected status sequence %q", f.log.texts)
	}

	snap := f.orch.Current()
	if snap.State != models.PaymentSucceeded || snap.Processing {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if !strings.HasPrefix(snap.Attempt.TransactionID, "txn_stripe_") {
		t.Fatalf("unexpected transaction id %q", snap.Attempt.TransactionID)
	}

	sub, _ := f.store.Get(context.Background())
	if sub.Plan != models.PlanPremium || sub.LastTransactionID == nil || *sub.LastTransactionID != snap.Attempt.TransactionID {
		t.Fatalf("expected Premium with the attempt's transaction id, got %+v", sub)
	}
	if len(f.log.subs) != 1 {
		t.Fatalf("expected one subscription change, got %d", len(f.log.subs))
	}
}

func TestOrchestrator_FailuresLeavePlanUnchanged(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		mutate    func(*Config)
		wantText  string
		wantCause models.FailureCause
	}{
		{
			name:   "user cancels at gateway",
			method: "JazzCash",
			mutate: func(c *Config) {
				c.Completion = &SimulatedCompletion{ProceedRate: 0.9, Rand: always(0.95)}
			},
			wantText:  "❌ Payment with JazzCash was cancelled. Please try again.",
			wantCause: models.CauseCancelled,
		},
		{
			name:   "verification rejects",
			method: "Stripe",
			mutate: func(c *Config) {
				c.Verifier.(*scriptedVerifier).results = []Verification{{Success: false, Message: UnverifiedMessage}}
			},
			wantText:  "❌ Stripe payment verification failed. Please try again.",
			wantCause: models.CauseVerification,
		},
		{
			name:   "gateway returns no checkout url",
			method: "PayPal",
			mutate: func(c *Config) {
				c.Gateways[PayPal] = GatewayFunc(func(ctx context.Context, d PaymentDetails) (*Session, error) {
					return &Session{Method: PayPal, TransactionID: "txn_paypal_1_x"}, nil
				})
			},
			wantText:  "❌ Failed to create payment session. Please try again.",
			wantCause: models.CauseCreation,
		},
		{
			name:   "gateway errors",
			method: "Easypaisa",
			mutate: func(c *Config) {
				c.Gateways[Easypaisa] = GatewayFunc(func(ctx context.Context, d PaymentDetails) (*Session, error) {
					return nil, errors.New("connection refused")
				})
			},
			wantText:  "❌ Failed to create payment session. Please try again.",
			wantCause: models.CauseCreation,
		},
		{
			name:   "verifier errors",
			method: "Stripe",
			mutate: func(c *Config) {
				c.Verifier.(*scriptedVerifier).err = errors.New("timeout")
			},
			wantText:  "❌ An unexpected error occurred. Please try again.",
			wantCause: models.CauseUnexpected,
		},
		{
			name:   "gateway panics",
			method: "Stripe",
			mutate: func(c *Config) {
				c.Gateways[Stripe] = GatewayFunc(func(ctx context.Context, d PaymentDetails) (*Session, error) {
					panic("boom")
				})
			},
			wantText:  "❌ An unexpected error occurred. Please try again.",
			wantCause: models.CauseUnexpected,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.mutate)

			if _, err := f.orch.Start(context.Background(), tc.method); err != nil {
				t.Fatalf("unexpected start error: %v", err)
			}
			f.orch.Wait()

			snap := f.orch.Current()
			if snap.State != models.PaymentFailed || snap.Processing {
				t.Fatalf("expected failed and not processing, got %+v", snap)
			}
			if snap.Status.Text != tc.wantText || snap.Status.Type != models.StatusError {
				t.Fatalf("unexpected status %+v", snap.Status)
			}
			if snap.Attempt.FailureCause != tc.wantCause {
				t.Fatalf("expected cause %s, got %s", tc.wantCause, snap.Attempt.FailureCause)
			}
			if f.store.plan() != models.PlanFree {
				t.Fatal("plan must stay Free on failure")
			}
			if len(f.log.subs) != 0 {
				t.Fatal("no subscription change expected")
			}
		})
	}
}

func TestOrchestrator_ActivationErrorIsUnexpected(t *testing.T) {
	f := newFixture(t, nil)
	f.store.err = errors.New("db unavailable")

	f.orch.Start(context.Background(), "Stripe")
	f.orch.Wait()

	snap := f.orch.Current()
	if snap.Attempt.FailureCause != models.CauseUnexpected {
		t.Fatalf("expected unexpected cause, got %s", snap.Attempt.FailureCause)
	}
	if f.store.plan() != models.PlanFree {
		t.Fatal("plan must stay Free")
	}
}

func TestOrchestrator_RejectsConcurrentAttempt(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, func(c *Config) {
		stripe := c.Gateways[Stripe]
		c.Gateways[Stripe] = GatewayFunc(func(ctx context.Context, d PaymentDetails) (*Session, error) {
			<-gate
			return stripe.CreateTransaction(ctx, d)
		})
	})

	if _, err := f.orch.Start(context.Background(), "Stripe"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.orch.Start(context.Background(), "PayPal"); !errors.Is(err, ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}
	if err := f.orch.OpenSelection(context.Background()); !errors.Is(err, ErrAttemptInProgress) {
		t.Fatalf("menu must not open while processing, got %v", err)
	}

	close(gate)
	f.orch.Wait()

	if got := f.orch.Current().Attempt.Method; got != "Stripe" {
		t.Fatalf("expected the first attempt to complete, got %s", got)
	}
}

func TestOrchestrator_RetryAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.verifier.results = []Verification{{Success: false, Message: UnverifiedMessage}}

	f.orch.Start(context.Background(), "Stripe")
	f.orch.Wait()
	if f.orch.Current().State != models.PaymentFailed {
		t.Fatal("expected first attempt to fail")
	}

	if _, err := f.orch.Start(context.Background(), "Stripe"); err != nil {
		t.Fatalf("a new attempt must be allowed after failure: %v", err)
	}
	f.orch.Wait()
	if f.orch.Current().State != models.PaymentSucceeded {
		t.Fatal("expected second attempt to succeed")
	}
}

func TestOrchestrator_UnknownMethodStartsNothing(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.Start(context.Background(), "Bitcoin"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
	snap := f.orch.Current()
	if snap.Attempt != nil || snap.Processing || len(f.log.texts) != 0 {
		t.Fatalf("nothing may start, got %+v", snap)
	}
}

func TestOrchestrator_PremiumCannotUpgrade(t *testing.T) {
	f := newFixture(t, nil)
	f.store.state.Plan = models.PlanPremium

	if err := f.orch.OpenSelection(context.Background()); !errors.Is(err, ErrAlreadyPremium) {
		t.Fatalf("expected ErrAlreadyPremium, got %v", err)
	}
	if _, err := f.orch.Start(context.Background(), "Stripe"); !errors.Is(err, ErrAlreadyPremium) {
		t.Fatalf("expected ErrAlreadyPremium, got %v", err)
	}
}

func TestOrchestrator_SelectionMenu(t *testing.T) {
	f := newFixture(t, nil)

	f.orch.OpenSelection(context.Background())
	if err := f.orch.CloseSelection(); err != nil {
		t.Fatal(err)
	}
	if got := f.orch.Current().State; got != models.PaymentIdle {
		t.Fatalf("expected idle after closing the menu, got %s", got)
	}
}

func TestOrchestrator_VerificationRetries(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.VerifyAttempts = 3
		c.VerifyBackoff = time.Millisecond
	})
	f.verifier.results = []Verification{
		{Success: false, Message: UnverifiedMessage},
		{Success: false, Message: UnverifiedMessage},
		{Success: true, Message: VerifiedMessage},
	}

	f.orch.Start(context.Background(), "JazzCash")
	f.orch.Wait()

	if f.orch.Current().State != models.PaymentSucceeded {
		t.Fatalf("expected success on the third try, got %+v", f.orch.Current())
	}
	if f.verifier.calls != 3 {
		t.Fatalf("expected 3 verification calls, got %d", f.verifier.calls)
	}
}

func TestOrchestrator_WebhookCompletion(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Completion = NewWebhookCompletion(time.Minute)
	})

	f.orch.Start(context.Background(), "Stripe")
	attempt := f.log.waitFor(t, models.PaymentAwaitingGateway)

	if _, err := f.orch.HandleWebhook(Stripe, "txn_stripe_0_nope", true); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}

	accepted, err := f.orch.HandleWebhook(Stripe, attempt.TransactionID, true)
	if err != nil || !accepted {
		t.Fatalf("expected webhook to be accepted, got %v %v", accepted, err)
	}
	accepted, err = f.orch.HandleWebhook(Stripe, attempt.TransactionID, true)
	if err != nil || accepted {
		t.Fatalf("duplicate webhook must be acknowledged and ignored, got %v %v", accepted, err)
	}

	f.orch.Wait()
	if f.orch.Current().State != models.PaymentSucceeded {
		t.Fatalf("expected success, got %+v", f.orch.Current())
	}

	accepted, err = f.orch.HandleWebhook(Stripe, attempt.TransactionID, true)
	if err != nil || accepted {
		t.Fatalf("late webhook must be ignored, got %v %v", accepted, err)
	}
	if f.store.activates != 1 {
		t.Fatalf("expected exactly one activation, got %d", f.store.activates)
	}
}

func TestOrchestrator_WebhookCancelledAndTimeout(t *testing.T) {
	t.Run("cancelled callback", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.Completion = NewWebhookCompletion(time.Minute) })

		f.orch.Start(context.Background(), "PayPal")
		attempt := f.log.waitFor(t, models.PaymentAwaitingGateway)
		f.orch.HandleWebhook(PayPal, attempt.TransactionID, false)
		f.orch.Wait()

		if got := f.orch.Current().Attempt.FailureCause; got != models.CauseCancelled {
			t.Fatalf("expected cancellation, got %s", got)
		}
	})

	t.Run("no callback before timeout", func(t *testing.T) {
		f := newFixture(t, func(c *Config) { c.Completion = NewWebhookCompletion(10 * time.Millisecond) })

		f.orch.Start(context.Background(), "Easypaisa")
		f.orch.Wait()

		if got := f.orch.Current().Status.Text; got != "❌ Payment with Easypaisa was cancelled. Please try again." {
			t.Fatalf("unexpected status %q", got)
		}
	})
}

func TestOrchestrator_WebhooksDisabledInSimulatedMode(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.orch.HandleWebhook(Stripe, "txn_stripe_1_a", true); !errors.Is(err, ErrWebhooksDisabled) {
		t.Fatalf("expected ErrWebhooksDisabled, got %v", err)
	}
}

func TestOrchestrator_ShutdownAbandonsAttempt(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.Completion = NewWebhookCompletion(time.Hour)
	})

	f.orch.Start(context.Background(), "Stripe")
	f.log.waitFor(t, models.PaymentAwaitingGateway)
	f.orch.Shutdown()

	if f.orch.Current().Processing {
		t.Fatal("attempt must be resolved after shutdown")
	}
	if f.store.plan() != models.PlanFree {
		t.Fatal("plan must stay Free")
	}
}

func TestOrchestrator_StatusCallbackMayReadSnapshot(t *testing.T) {
	var orch *Orchestrator
	var seen []models.PaymentStatus
	f := newFixture(t, func(c *Config) {
		c.OnStatus = func(models.PaymentAttempt, models.StatusMessage) {
			seen = append(seen, orch.Current().State)
		}
	})
	orch = f.orch

	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.Start(context.Background(), "Stripe")
		orch.Wait()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("status callback deadlocked against the orchestrator")
	}
	if len(seen) != 4 || seen[3] != models.PaymentSucceeded {
		t.Fatalf("unexpected states observed from callbacks %v", seen)
	}
}

func TestOrchestrator_TrackedWebhooksAreBounded(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Completion = NewWebhookCompletion(time.Minute) })

	f.orch.mu.Lock()
	for i := 0; i < maxTrackedWebhooks+10; i++ {
		f.orch.track(fmt.Sprintf("txn_stripe_%d_x", i))
	}
	size, order := len(f.orch.webhooks), len(f.orch.webhookOrder)
	f.orch.mu.Unlock()

	if size != maxTrackedWebhooks || order != maxTrackedWebhooks {
		t.Fatalf("expected %d tracked transactions, got %d/%d", maxTrackedWebhooks, size, order)
	}
	if _, err := f.orch.HandleWebhook(Stripe, "txn_stripe_0_x", true); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("oldest transaction must be forgotten, got %v", err)
	}
	last := fmt.Sprintf("txn_stripe_%d_x", maxTrackedWebhooks+9)
	if accepted, err := f.orch.HandleWebhook(Stripe, last, true); err != nil || accepted {
		t.Fatalf("recent transaction must still be recognised, got %v %v", accepted, err)
	}
}
