package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/payments"
)

// WebhookQueue holds gateway callbacks waiting to be applied.
const WebhookQueue = "queue:payment-webhooks"

const (
	popTimeout = 5 * time.Second
	lockTTL    = 10 * time.Minute
)

// WebhookHandler applies one gateway callback.
type WebhookHandler interface {
	HandleWebhook(method payments.Method, transactionID string, completed bool) (bool, error)
}

// Pool drains the webhook queue. A callback is applied at most once per
// transaction across all workers and instances.
type Pool struct {
	redis       *redis.Client
	handler     WebhookHandler
	workerCount int
	log         *logger.Logger

	// lock claims a transaction; it reports false when another worker
	// already has it. unlock gives a claim back.
	lock   func(ctx context.Context, transactionID string) (bool, error)
	unlock func(ctx context.Context, transactionID string) error

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewPool(redisClient *redis.Client, handler WebhookHandler, workerCount int, log *logger.Logger) *Pool {
	p := &Pool{
		redis:       redisClient,
		handler:     handler,
		workerCount: workerCount,
		log:         log.With("component", "webhook_worker"),
		stopChan:    make(chan struct{}),
	}
	p.lock = func(ctx context.Context, transactionID string) (bool, error) {
		return p.redis.SetNX(ctx, lockKey(transactionID), "1", lockTTL).Result()
	}
	p.unlock = func(ctx context.Context, transactionID string) error {
		return p.redis.Del(ctx, lockKey(transactionID)).Err()
	}
	return p
}

// Enqueue appends a callback to the queue.
func (p *Pool) Enqueue(ctx context.Context, wh models.PaymentWebhook) error {
	data, err := json.Marshal(wh)
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	if err := p.redis.RPush(ctx, WebhookQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}
	return nil
}

func (p *Pool) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.log.Info("started webhook workers", "count", p.workerCount)
}

func (p *Pool) Stop() {
	select {
	case <-p.stopChan:
		return
	default:
		close(p.stopChan)
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			p.log.Debug("worker shutting down", "worker", id)
			return
		default:
		}

		result, err := p.redis.BLPop(ctx, popTimeout, WebhookQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				p.log.Warn("queue read failed", "worker", id, "error", err)
				time.Sleep(time.Second)
			}
			continue
		}
		if len(result) < 2 {
			continue
		}

		if err := p.process(ctx, result[1]); err != nil {
			p.log.Warn("webhook not applied", "worker", id, "error", err)
		}
	}
}

func lockKey(transactionID string) string {
	return "webhook_lock:" + transactionID
}

func (p *Pool) process(ctx context.Context, raw string) error {
	var wh models.PaymentWebhook
	if err := json.Unmarshal([]byte(raw), &wh); err != nil {
		return fmt.Errorf("parse webhook: %w", err)
	}

	method, err := payments.ParseMethod(wh.Method)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", wh.TransactionID, err)
	}

	locked, err := p.lock(ctx, wh.TransactionID)
	if err != nil {
		return fmt.Errorf("lock webhook %s: %w", wh.TransactionID, err)
	}
	if !locked {
		p.log.Info("duplicate webhook skipped", "transaction_id", wh.TransactionID)
		return nil
	}

	accepted, err := p.handler.HandleWebhook(method, wh.TransactionID, wh.Status == models.WebhookCompleted)
	if err != nil {
		// A rejected callback must not shadow the real one for the same
		// transaction.
		if uerr := p.unlock(ctx, wh.TransactionID); uerr != nil {
			p.log.Warn("failed to release webhook lock", "transaction_id", wh.TransactionID, "error", uerr)
		}
		return fmt.Errorf("webhook %s: %w", wh.TransactionID, err)
	}
	p.log.Info("webhook processed", "transaction_id", wh.TransactionID, "status", wh.Status, "accepted", accepted)
	return nil
}
