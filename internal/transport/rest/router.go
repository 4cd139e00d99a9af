package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	"github.com/thaiGO2003/DigiGO-sub000/internal/purchase"
	"github.com/thaiGO2003/DigiGO-sub000/internal/topup"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport/middleware"
	"github.com/thaiGO2003/DigiGO-sub000/internal/transport/swagger"
	"github.com/thaiGO2003/DigiGO-sub000/internal/user"
)

// PermissionManageTopups gates the manual-review endpoints.
const PermissionManageTopups = "manage_topups"

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	cfg *internal.Config,
	topupHandler *topup.Handler,
	webhookHandler *topup.WebhookHandler,
	purchaseHandler *purchase.Handler,
	userHandler *user.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Metrics)

	if cfg.Observability.Metrics.Enabled {
		router.Handle(cfg.Observability.Metrics.Path, promhttp.Handler())
	}

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Bank rail callback, gated on the shared secret instead of a user token
		if webhookHandler != nil {
			r.Group(func(wr chi.Router) {
				wr.Use(middleware.RequireWebhookSecret(cfg.Webhook.Secret, logger))
				wr.Post("/bank/notifications", webhookHandler.HandleBankNotification)
			})
		}

		// Authenticated routes
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.Authenticate(cfg.Security.JWTSecret))

			if userHandler != nil {
				pr.Get("/users/me/balance", userHandler.GetBalance)
			}

			if topupHandler != nil {
				pr.Route("/topups", func(tr chi.Router) {
					tr.Post("/", topupHandler.CreateTopup) // POST /topups
					tr.Get("/", topupHandler.ListTopups)   // GET /topups
					tr.Post("/{id}/cancel", topupHandler.CancelTopup)
				})

				// Manual review queue
				pr.Route("/admin/topups", func(ar chi.Router) {
					ar.Use(middleware.RequirePermissions(PermissionManageTopups))
					ar.Get("/pending", topupHandler.ListPendingTopups)
					ar.Patch("/{id}/approve", topupHandler.ApproveTopup)
					ar.Patch("/{id}/reject", topupHandler.RejectTopup)
				})
			}

			if purchaseHandler != nil {
				pr.Post("/purchases", purchaseHandler.CreatePurchase)
			}
		})
	})
}
