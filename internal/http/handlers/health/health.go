// Package health реализует проверку готовности процесса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
)

// ReadinessChecker проверяет готовность вспомогательной БД.
type ReadinessChecker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler управляет HTTP-запросами проверки готовности.
type Handler struct {
	log     *slog.Logger
	checker ReadinessChecker
}

// New создает новый Handler.
func New(log *slog.Logger, checker ReadinessChecker) *Handler {
	return &Handler{log: log, checker: checker}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"

	if err := h.checker.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("readiness check failed", slog.String("op", op), sl.Err(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database is not ready"))
		return
	}

	render.JSON(w, r, response.OK())
}
