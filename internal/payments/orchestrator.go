package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/notify"
)

var (
	ErrAttemptInProgress  = errors.New("a payment attempt is already in progress")
	ErrAlreadyPremium     = errors.New("subscription is already Premium")
	ErrUnknownTransaction = errors.New("unknown transaction")
	ErrWebhooksDisabled   = errors.New("webhook completion is not enabled")
)

const SuccessText = "✅ Payment successful! You are now Premium."

// maxTrackedWebhooks bounds the issued-transaction set. Older transactions
// are forgotten and their callbacks treated as unknown.
const maxTrackedWebhooks = 256

// AttemptError is a failed attempt: the stage that failed and the reason shown
// to the user.
type AttemptError struct {
	Cause   models.FailureCause
	Message string
	Err     error
}

func (e *AttemptError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AttemptError) Unwrap() error { return e.Err }

func creationFailed(err error) *AttemptError {
	return &AttemptError{Cause: models.CauseCreation, Message: "Failed to create payment session.", Err: err}
}

func cancelled(m Method) *AttemptError {
	return &AttemptError{Cause: models.CauseCancelled, Message: fmt.Sprintf("Payment with %s was cancelled.", m)}
}

func verificationFailed(m Method) *AttemptError {
	return &AttemptError{Cause: models.CauseVerification, Message: fmt.Sprintf("%s payment verification failed.", m)}
}

func unexpected(err error) *AttemptError {
	return &AttemptError{Cause: models.CauseUnexpected, Message: "An unexpected error occurred.", Err: err}
}

// SubscriptionStore holds the entitlement record. Activate is idempotent per
// transaction id and reports whether this call changed anything.
type SubscriptionStore interface {
	Get(ctx context.Context) (models.SubscriptionState, error)
	Activate(ctx context.Context, transactionID, method string) (models.SubscriptionState, bool, error)
}

type Config struct {
	Gateways      map[Method]Gateway
	Verifier      Verifier
	Completion    Completion
	Subscriptions SubscriptionStore

	Amount   decimal.Decimal
	Currency string

	// VerifyAttempts is the total number of verification calls before a
	// failure is surfaced. VerifyBackoff separates them.
	VerifyAttempts int
	VerifyBackoff  time.Duration

	// OnStatus and OnSubscription run after the orchestrator lock is
	// released, in the order the events happened.
	OnStatus       func(models.PaymentAttempt, models.StatusMessage)
	OnSubscription func(models.SubscriptionState)
	Logger         *logger.Logger
}

// Snapshot is the orchestrator as seen by a client.
type Snapshot struct {
	State      models.PaymentStatus   `json:"state"`
	Processing bool                   `json:"processing"`
	Attempt    *models.PaymentAttempt `json:"attempt,omitempty"`
	Status     *models.StatusMessage  `json:"status,omitempty"`
}

// Orchestrator drives the upgrade flow: session creation, the gateway round
// trip, verification and activation. At most one attempt runs at a time.
type Orchestrator struct {
	cfg Config
	log *logger.Logger

	mu         sync.Mutex
	state      models.PaymentStatus
	processing bool
	current    *models.PaymentAttempt
	status     *models.StatusMessage
	// transaction id -> callback already received, oldest first in order
	webhooks     map[string]bool
	webhookOrder []string

	// callbacks queued under mu, run by unlock in order
	pending []func()
	emits   notify.Sequencer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(ctx context.Context, cfg Config) *Orchestrator {
	if cfg.VerifyAttempts < 1 {
		cfg.VerifyAttempts = 1
	}
	if cfg.OnStatus == nil {
		cfg.OnStatus = func(models.PaymentAttempt, models.StatusMessage) {}
	}
	if cfg.OnSubscription == nil {
		cfg.OnSubscription = func(models.SubscriptionState) {}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(ctx)
	return &Orchestrator{
		cfg:      cfg,
		log:      log.With("component", "payments"),
		state:    models.PaymentIdle,
		webhooks: make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OpenSelection shows the method menu.
func (o *Orchestrator) OpenSelection(ctx context.Context) error {
	if err := o.ensureFree(ctx); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return ErrAttemptInProgress
	}
	o.state = models.PaymentSelecting
	return nil
}

// CloseSelection dismisses the menu without starting an attempt.
func (o *Orchestrator) CloseSelection() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return ErrAttemptInProgress
	}
	if o.state == models.PaymentSelecting {
		o.state = models.PaymentIdle
	}
	return nil
}

// Start begins an attempt with the chosen method and returns immediately.
// Progress is reported through OnStatus.
func (o *Orchestrator) Start(ctx context.Context, method string) (models.PaymentAttempt, error) {
	m, err := ParseMethod(method)
	if err != nil {
		return models.PaymentAttempt{}, err
	}
	gw, ok := o.cfg.Gateways[m]
	if !ok {
		return models.PaymentAttempt{}, ErrUnknownMethod
	}
	if err := o.ensureFree(ctx); err != nil {
		return models.PaymentAttempt{}, err
	}

	o.mu.Lock()
	defer o.unlock()
	if o.processing {
		return models.PaymentAttempt{}, ErrAttemptInProgress
	}

	o.processing = true
	o.current = &models.PaymentAttempt{
		ID:        uuid.New(),
		Method:    string(m),
		StartedAt: time.Now().UTC(),
	}
	o.advance(models.PaymentCreating, fmt.Sprintf("Creating secure %s session...", m))
	o.log.Info("payment attempt started", "attempt_id", o.current.ID, "method", m)

	o.wg.Add(1)
	go o.run(m, gw)
	return *o.current, nil
}

func (o *Orchestrator) Current() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	snap := Snapshot{State: o.state, Processing: o.processing}
	if o.current != nil {
		a := *o.current
		snap.Attempt = &a
	}
	if o.status != nil {
		s := *o.status
		snap.Status = &s
	}
	return snap
}

// HandleWebhook routes a gateway callback to the waiting attempt. It returns
// false without error for duplicates and callbacks that arrive too late.
func (o *Orchestrator) HandleWebhook(method Method, transactionID string, completed bool) (bool, error) {
	receiver, ok := o.cfg.Completion.(WebhookReceiver)
	if !ok {
		return false, ErrWebhooksDisabled
	}

	o.mu.Lock()
	received, issued := o.webhooks[transactionID]
	if !issued {
		o.mu.Unlock()
		return false, ErrUnknownTransaction
	}
	a := o.current
	if received || a == nil || a.TransactionID != transactionID || a.Status != models.PaymentAwaitingGateway {
		o.mu.Unlock()
		o.log.Info("ignoring webhook", "transaction_id", transactionID, "duplicate", received)
		return false, nil
	}
	if a.Method != string(method) {
		o.mu.Unlock()
		return false, ErrUnknownTransaction
	}
	o.webhooks[transactionID] = true
	o.mu.Unlock()

	receiver.Deliver(transactionID, completed)
	return true, nil
}

// Wait blocks until no attempt is running.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown abandons any running attempt and waits for it to unwind.
func (o *Orchestrator) Shutdown() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) run(m Method, gw Gateway) {
	defer o.wg.Done()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = unexpected(fmt.Errorf("panic: %v", r))
			}
		}()
		return o.execute(m, gw)
	}()
	if err != nil {
		o.fail(err)
	}
}

func (o *Orchestrator) execute(m Method, gw Gateway) error {
	ctx := o.ctx

	session, err := gw.CreateTransaction(ctx, PaymentDetails{Amount: o.cfg.Amount, Currency: o.cfg.Currency})
	if err != nil {
		return creationFailed(err)
	}
	if session == nil || session.CheckoutURL == "" {
		return creationFailed(nil)
	}

	o.mu.Lock()
	o.current.TransactionID = session.TransactionID
	o.current.CheckoutURL = session.CheckoutURL
	o.track(session.TransactionID)
	o.advance(models.PaymentAwaitingGateway, fmt.Sprintf("Redirecting to %s...", m))
	o.unlock()

	proceed, err := o.cfg.Completion.Await(ctx, session)
	if err != nil {
		return unexpected(err)
	}
	if !proceed {
		return cancelled(m)
	}

	o.mu.Lock()
	o.advance(models.PaymentVerifying, "Verifying transaction...")
	o.unlock()

	verification, err := o.verify(ctx, session)
	if err != nil {
		return unexpected(err)
	}
	if !verification.Success {
		return verificationFailed(m)
	}

	sub, activated, err := o.cfg.Subscriptions.Activate(ctx, session.TransactionID, string(m))
	if err != nil {
		return unexpected(fmt.Errorf("activate subscription: %w", err))
	}

	o.mu.Lock()
	defer o.unlock()
	if activated {
		o.pending = append(o.pending, func() { o.cfg.OnSubscription(sub) })
	}
	o.finish(models.PaymentSucceeded, "")
	o.setStatus(models.StatusSuccess, SuccessText)
	o.log.Info("payment attempt succeeded", "attempt_id", o.current.ID, "transaction_id", session.TransactionID, "activated", activated)
	return nil
}

func (o *Orchestrator) verify(ctx context.Context, s *Session) (Verification, error) {
	var (
		result Verification
		err    error
	)
	for i := 0; i < o.cfg.VerifyAttempts; i++ {
		if i > 0 {
			if err := sleep(ctx, o.cfg.VerifyBackoff); err != nil {
				return Verification{}, err
			}
		}
		result, err = o.cfg.Verifier.Verify(ctx, s.TransactionID, s.Method)
		if err == nil && result.Success {
			return result, nil
		}
		o.log.Warn("verification did not succeed", "transaction_id", s.TransactionID, "try", i+1, "message", result.Message, "error", err)
	}
	return result, err
}

func (o *Orchestrator) fail(err error) {
	var ae *AttemptError
	if !errors.As(err, &ae) {
		ae = unexpected(err)
	}

	o.mu.Lock()
	defer o.unlock()

	o.log.Warn("payment attempt failed", "attempt_id", o.current.ID, "cause", ae.Cause, "error", ae)
	o.finish(models.PaymentFailed, ae.Cause)
	o.setStatus(models.StatusError, fmt.Sprintf("❌ %s Please try again.", ae.Message))
}

// advance moves the running attempt to an intermediate stage. Callers hold mu.
func (o *Orchestrator) advance(status models.PaymentStatus, text string) {
	o.state = status
	o.current.Status = status
	o.setStatus(models.StatusInfo, text)
}

// finish ends the running attempt. Callers hold mu and emit the final status.
func (o *Orchestrator) finish(status models.PaymentStatus, cause models.FailureCause) {
	now := time.Now().UTC()
	o.state = status
	o.processing = false
	o.current.Status = status
	o.current.FailureCause = cause
	o.current.FinishedAt = &now
}

func (o *Orchestrator) setStatus(t models.StatusType, text string) {
	msg := models.StatusMessage{Type: t, Text: text}
	o.status = &msg
	attempt := *o.current
	o.pending = append(o.pending, func() { o.cfg.OnStatus(attempt, msg) })
}

// unlock releases mu and then runs the callbacks queued while it was held.
func (o *Orchestrator) unlock() {
	pending := o.pending
	o.pending = nil
	if len(pending) == 0 {
		o.mu.Unlock()
		return
	}
	ticket := o.emits.Ticket()
	o.mu.Unlock()
	o.emits.Run(ticket, pending)
}

// track records an issued transaction. Callers hold mu.
func (o *Orchestrator) track(transactionID string) {
	o.webhooks[transactionID] = false
	o.webhookOrder = append(o.webhookOrder, transactionID)
	for len(o.webhookOrder) > maxTrackedWebhooks {
		delete(o.webhooks, o.webhookOrder[0])
		o.webhookOrder = o.webhookOrder[1:]
	}
}

func (o *Orchestrator) ensureFree(ctx context.Context) error {
	sub, err := o.cfg.Subscriptions.Get(ctx)
	if err != nil {
		return fmt.Errorf("read subscription: %w", err)
	}
	if sub.Plan == models.PlanPremium {
		return ErrAlreadyPremium
	}
	return nil
}
