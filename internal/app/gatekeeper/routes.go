// Package gatekeeper собирает основной процесс движка: HTTP-сервер,
// задачи опроса платежей, свипер и планировщик уведомлений.
package gatekeeper

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/handlers/health"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/handlers/payment/create"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/handlers/payment/webhook"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/handlers/subscription/status"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/mercadopago"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/plancatalog"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/reconciler"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/storage/repository"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/store"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/telegram"
)

// RegisterRoutes регистрирует все маршруты приложения. watchCtx — контекст
// процесса для фоновых задач опроса, переживающих HTTP-запрос.
func RegisterRoutes(r chi.Router, logger *slog.Logger, watchCtx context.Context,
	gateway *mercadopago.Client, catalog *plancatalog.Catalog,
	engine *reconciler.Service, pollManager *reconciler.PollManager,
	messenger *telegram.Client, st *store.Store, db *repository.Storage) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payments", create.New(logger, gateway, catalog, pollManager, messenger, watchCtx).ServeHTTP)
		r.Post("/payments/webhook", webhook.New(logger, pollManager, engine).ServeHTTP)
		r.Get("/subscriptions/{userID}", status.New(logger, st, catalog).ServeHTTP)
	})

	r.Get("/healthz", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
