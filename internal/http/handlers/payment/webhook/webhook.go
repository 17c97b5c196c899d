// Package webhook реализует приём уведомлений платёжного шлюза.
//
// Вебхук — только ускоритель: он будит задачу опроса либо запускает
// сверку напрямую, если задачи уже нет. Авторитетным источником статуса
// остаётся сам шлюз, телу вебхука движок не верит.
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/reconciler"
)

// Request — полезная нагрузка уведомления шлюза.
type Request struct {
	Action string `json:"action"`
	Type   string `json:"type"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Poller будит задачу опроса платежа.
type Poller interface {
	Trigger(paymentID string) bool
}

// Reconciler сверяет платёж напрямую, когда задачи опроса нет.
type Reconciler interface {
	Reconcile(ctx context.Context, paymentID string) (reconciler.Result, error)
}

// Handler управляет HTTP-запросами вебхука платёжного шлюза.
type Handler struct {
	log    *slog.Logger
	poller Poller
	engine Reconciler
}

// New создает новый Handler.
func New(log *slog.Logger, poller Poller, engine Reconciler) *Handler {
	return &Handler{log: log, poller: poller, engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if req.Data.ID == "" {
		// Шлюз шлёт и другие типы событий, их подтверждаем без обработки.
		render.JSON(w, r, response.OK())
		return
	}

	log.Info("payment webhook received",
		slog.String("payment_id", req.Data.ID),
		slog.String("action", req.Action))

	if h.poller.Trigger(req.Data.ID) {
		render.JSON(w, r, response.OK())
		return
	}

	// Задачи опроса нет: процесс перезапускался или платёж создан не здесь.
	// Сверяем напрямую, идемпотентность гарантирует хранилище.
	res, err := h.engine.Reconcile(r.Context(), req.Data.ID)
	if err != nil {
		log.Warn("direct reconcile failed",
			slog.String("payment_id", req.Data.ID), sl.Err(err))
	} else {
		log.Info("direct reconcile finished",
			slog.String("payment_id", req.Data.ID),
			slog.String("outcome", string(res.Outcome)))
	}

	// Шлюзу всегда отвечаем 200, иначе он продолжит слать повторы.
	render.JSON(w, r, response.OK())
}
