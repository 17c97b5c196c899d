// Package status реализует HTTP-обработчик чтения активной подписки пользователя.
package status

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// SubscriptionReader отдаёт активную запись пользователя.
type SubscriptionReader interface {
	ActiveByUser(userID int64, now time.Time) (models.Subscription, bool)
}

// PlanCatalog отдаёт план по ID.
type PlanCatalog interface {
	Plan(id int) (models.Plan, error)
}

// Handler управляет HTTP-запросами статуса подписки.
type Handler struct {
	log     *slog.Logger
	reader  SubscriptionReader
	catalog PlanCatalog
}

// New создает новый Handler.
func New(log *slog.Logger, reader SubscriptionReader, catalog PlanCatalog) *Handler {
	return &Handler{log: log, reader: reader, catalog: catalog}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		log.Error("invalid user id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	sub, ok := h.reader.ActiveByUser(userID, time.Now())
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("no active subscription"))
		return
	}

	planName := ""
	if plan, err := h.catalog.Plan(sub.PlanID); err == nil {
		planName = plan.Name
	} else {
		log.Warn("plan not found for active subscription",
			slog.Int("plan_id", sub.PlanID), sl.Err(err))
	}

	data := map[string]any{
		"user_id":   sub.UserID,
		"plan_id":   sub.PlanID,
		"plan_name": planName,
		"permanent": sub.IsPermanent,
	}
	if !sub.IsPermanent {
		data["end_date"] = sub.EndDate
	}

	render.JSON(w, r, response.OKWithData(data))
}
