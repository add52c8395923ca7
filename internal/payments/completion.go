package payments

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Completion is the gateway round trip: the user finishing or abandoning
// payment on the provider's page. Await reports whether payment went ahead.
type Completion interface {
	Await(ctx context.Context, s *Session) (bool, error)
}

// SimulatedProceedRate is the share of simulated round trips that go ahead;
// the rest count as the user cancelling.
const SimulatedProceedRate = 0.9

// SimulatedCompletion waits a fixed delay and lets the payment proceed with
// probability ProceedRate.
type SimulatedCompletion struct {
	Delay       time.Duration
	ProceedRate float64
	Rand        func() float64
}

func NewSimulatedCompletion(delay time.Duration, proceedRate float64) *SimulatedCompletion {
	return &SimulatedCompletion{Delay: delay, ProceedRate: proceedRate, Rand: rand.Float64}
}

func (c *SimulatedCompletion) Await(ctx context.Context, s *Session) (bool, error) {
	if err := sleep(ctx, c.Delay); err != nil {
		return false, err
	}
	return c.Rand() < c.ProceedRate, nil
}

// WebhookReceiver accepts gateway callbacks keyed by transaction id.
type WebhookReceiver interface {
	Deliver(transactionID string, completed bool)
}

// WebhookCompletion waits for the provider's callback. A callback may arrive
// before Await starts; it is buffered for the waiter. No callback within
// Timeout counts as cancellation.
type WebhookCompletion struct {
	Timeout time.Duration

	mu    sync.Mutex
	slots map[string]chan bool
}

func NewWebhookCompletion(timeout time.Duration) *WebhookCompletion {
	return &WebhookCompletion{Timeout: timeout, slots: make(map[string]chan bool)}
}

func (c *WebhookCompletion) slot(transactionID string) chan bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.slots[transactionID]
	if !ok {
		ch = make(chan bool, 1)
		c.slots[transactionID] = ch
	}
	return ch
}

func (c *WebhookCompletion) Await(ctx context.Context, s *Session) (bool, error) {
	ch := c.slot(s.TransactionID)
	defer func() {
		c.mu.Lock()
		delete(c.slots, s.TransactionID)
		c.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if c.Timeout > 0 {
		t := time.NewTimer(c.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case completed := <-ch:
		return completed, nil
	case <-timeout:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Deliver hands the callback to the waiter. Only the first callback per
// transaction is kept.
func (c *WebhookCompletion) Deliver(transactionID string, completed bool) {
	select {
	case c.slot(transactionID) <- completed:
	default:
	}
}
