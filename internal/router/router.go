package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/websocket"
)

func New(
	settingsHandler *handlers.SettingsHandler,
	plannerHandler *handlers.PlannerHandler,
	paymentHandler *handlers.PaymentHandler,
	chatHandler *websocket.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Generation and payment limiters (per IP)
	generationLimiter := middleware.NewRateLimiter(20, time.Minute)
	paymentLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Pages & Settings ────
		r.Get("/pages", settingsHandler.Pages)
		r.Get("/settings", settingsHandler.GetSettings)
		r.Put("/settings/language", settingsHandler.UpdateLanguage)
		r.Get("/subscription", settingsHandler.GetSubscription)

		// ──── Study Planner ────
		r.With(generationLimiter.Middleware).Post("/study-plans", plannerHandler.Generate)

		// ──── Payments ────
		r.Route("/payments", func(r chi.Router) {
			r.Get("/methods", paymentHandler.Methods)
			r.Get("/attempts/current", paymentHandler.CurrentAttempt)

			r.Group(func(r chi.Router) {
				r.Use(paymentLimiter.Middleware)
				r.Post("/selection", paymentHandler.OpenSelection)
				r.Delete("/selection", paymentHandler.CloseSelection)
				r.Post("/attempts", paymentHandler.StartAttempt)
			})

			// Gateway callbacks are server-to-server and not rate limited.
			r.Post("/webhooks/{method}", paymentHandler.Webhook)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
		// Each chat socket can drive a model session.
		r.With(generationLimiter.Middleware).Get("/pages/{page}/chat", chatHandler.HandleChat)
	})

	return r
}
