package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"studybuddy-backend/internal/chat"
	"studybuddy-backend/internal/config"
	"studybuddy-backend/internal/database"
	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/logger"
	"studybuddy-backend/internal/models"
	"studybuddy-backend/internal/payments"
	"studybuddy-backend/internal/repository"
	"studybuddy-backend/internal/router"
	"studybuddy-backend/internal/services"
	"studybuddy-backend/internal/websocket"
	"studybuddy-backend/internal/worker"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("✗ Configuration error: %v", err)
	}

	appLog, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer appLog.Sync()
	appLog.Info("starting StudyBuddy backend", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ──── Step 2: Subscription Store (PostgreSQL or in-memory) ────
	var subscriptions payments.SubscriptionStore
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			appLog.Fatal("PostgreSQL connection failed", "error", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(cfg.DatabaseURL, appLog); err != nil {
			appLog.Fatal("database migration failed", "error", err)
		}
		subscriptions = repository.NewSubscriptionRepo(pool)
		appLog.Info("PostgreSQL connected, migrations applied")
	} else {
		subscriptions = repository.NewMemorySubscriptionRepo()
		appLog.Warn("DATABASE_URL not set, subscription state is kept in memory")
	}

	// ──── Step 3: Redis (optional) ────
	var queueClient, pubsubClient *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			appLog.Fatal("Redis connection failed", "error", err)
		}
		defer redisClients.Close()
		queueClient, pubsubClient = redisClients.Queue, redisClients.PubSub
		appLog.Info("Redis connected")
	} else {
		appLog.Warn("REDIS_URL not set, events fan out locally and webhooks are applied inline")
	}

	// ──── Step 4: Event Hub ────
	wsHub := websocket.NewHub(pubsubClient, appLog)
	if err := wsHub.Run(ctx); err != nil {
		appLog.Fatal("event hub failed to start", "error", err)
	}

	// ──── Step 5: Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, appLog)
	if err != nil {
		appLog.Fatal("Gemini client initialization failed", "error", err)
	}
	defer geminiService.Close()
	appLog.Info("Gemini client initialized", "model", cfg.GeminiModel)

	// ──── Step 6: Services ────
	normalizer := chat.NewNormalizer(services.NewFileExtractService(), cfg.MaxAttachmentBytes, cfg.AllowDocumentAttachments)
	appState := services.NewAppState(cfg.DefaultLanguage, subscriptions, wsHub, appLog)
	planner := services.NewPlannerService(geminiService, appState, appLog)

	var completion payments.Completion
	switch cfg.PaymentCompletionMode {
	case config.CompletionWebhook:
		completion = payments.NewWebhookCompletion(cfg.PaymentWebhookTimeout)
	default:
		completion = payments.NewSimulatedCompletion(cfg.PaymentGatewayDelay, payments.SimulatedProceedRate)
	}

	orchestrator := payments.NewOrchestrator(context.Background(), payments.Config{
		Gateways:       payments.NewStubGateways(1),
		Verifier:       payments.NewSimulatedVerifier(cfg.PaymentVerifyDelay, cfg.PaymentSuccessRate),
		Completion:     completion,
		Subscriptions:  subscriptions,
		Amount:         cfg.PaymentAmount,
		Currency:       cfg.PaymentCurrency,
		VerifyAttempts: cfg.PaymentVerifyAttempts,
		VerifyBackoff:  cfg.PaymentVerifyBackoff,
		OnStatus: func(a models.PaymentAttempt, s models.StatusMessage) {
			wsHub.Publish(context.Background(), models.WSMessage{
				Type:    models.EventPaymentStatus,
				Payload: models.PaymentStatusEvent{Attempt: a, Status: s},
			})
		},
		OnSubscription: func(sub models.SubscriptionState) {
			wsHub.Publish(context.Background(), models.WSMessage{Type: models.EventSubscriptionChanged, Payload: sub})
		},
		Logger: appLog,
	})

	// ──── Step 7: Webhook Worker Pool ────
	var webhookQueue handlers.WebhookQueue
	var workerPool *worker.Pool
	if queueClient != nil && cfg.PaymentCompletionMode == config.CompletionWebhook {
		workerPool = worker.NewPool(queueClient, orchestrator, cfg.WebhookWorkers, appLog)
		workerPool.Start()
		webhookQueue = workerPool
	}

	// ──── Step 8: Handlers & Router ────
	r := router.New(
		handlers.NewSettingsHandler(appState, appLog),
		handlers.NewPlannerHandler(planner, appLog),
		handlers.NewPaymentHandler(orchestrator, webhookQueue, cfg.PaymentWebhookSecret, appLog),
		websocket.NewChatHandler(geminiService, normalizer, appState, cfg.MaxAttachmentBytes, appLog),
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		appLog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)

		if workerPool != nil {
			workerPool.Stop()
		}
		orchestrator.Shutdown()
	}()

	appLog.Info("StudyBuddy backend ready",
		"api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
		"payment_completion", cfg.PaymentCompletionMode,
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		appLog.Fatal("server error", "error", err)
	}
	<-stopped
}
