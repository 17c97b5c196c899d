// Package create реализует HTTP-обработчик создания PIX-платежа за план.
//
// Обработчик валидирует запрос, читает план из каталога, создаёт платёж
// у шлюза со структурированной связкой user/plan в metadata и запускает
// фоновую задачу опроса. Клиенту возвращаются данные QR-кода и ID платежа.
package create

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/mercadopago"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/reconciler"
)

// Request — данные запроса на оплату плана.
type Request struct {
	UserID     int64  `json:"user_id" validate:"required"`
	PlanID     int    `json:"plan_id" validate:"required"`
	PayerEmail string `json:"payer_email"`
}

// PaymentCreator создаёт платёж у шлюза.
type PaymentCreator interface {
	CreatePayment(ctx context.Context, req mercadopago.CreatePaymentRequest) (*mercadopago.Payment, error)
}

// PlanCatalog отдаёт план по ID.
type PlanCatalog interface {
	Plan(id int) (models.Plan, error)
}

// Watcher запускает задачу опроса платежа.
type Watcher interface {
	Watch(ctx context.Context, task reconciler.PaymentTask)
}

// StatusMessenger отправляет пользователю сообщение-индикатор ожидания.
type StatusMessenger interface {
	SendStatusMessage(ctx context.Context, chatID int64, text string) error
}

// Handler управляет HTTP-запросами на создание платежа.
type Handler struct {
	log       *slog.Logger
	gateway   PaymentCreator
	catalog   PlanCatalog
	watcher   Watcher
	messenger StatusMessenger
	watchCtx  context.Context
	validate  *validator.Validate
}

// New создает новый Handler. watchCtx — контекст процесса: задачи опроса
// живут дольше HTTP-запроса и завершаются вместе с приложением.
func New(log *slog.Logger, gateway PaymentCreator, catalog PlanCatalog,
	watcher Watcher, messenger StatusMessenger, watchCtx context.Context) *Handler {
	return &Handler{
		log:       log,
		gateway:   gateway,
		catalog:   catalog,
		watcher:   watcher,
		messenger: messenger,
		watchCtx:  watchCtx,
		validate:  validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	plan, err := h.catalog.Plan(req.PlanID)
	if err != nil {
		log.Error("plan not found", slog.Int("plan_id", req.PlanID), sl.Err(err))
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("plan not found"))
		return
	}

	payerEmail := req.PayerEmail
	if payerEmail == "" {
		payerEmail = "cliente@email.com"
	}
	description := fmt.Sprintf("VIP %s - %d dias", plan.Name, plan.DurationDays)
	if plan.IsPermanent() {
		description = fmt.Sprintf("VIP %s - Permanente", plan.Name)
	}

	payment, err := h.gateway.CreatePayment(r.Context(), mercadopago.CreatePaymentRequest{
		TransactionAmount: plan.Price,
		Description:       description,
		PaymentMethodID:   "pix",
		Metadata:          models.Correlation{UserID: req.UserID, PlanID: plan.ID},
		Payer:             mercadopago.Payer{Email: payerEmail},
	})
	if err != nil {
		log.Error("failed to create payment", sl.Err(err))
		w.WriteHeader(http.StatusBadGateway)
		render.JSON(w, r, response.Error("could not create payment, try again later"))
		return
	}

	paymentID := fmt.Sprintf("%d", payment.ID)
	log.Info("payment created",
		slog.String("payment_id", paymentID),
		slog.Int64("user_id", req.UserID),
		slog.Int("plan_id", plan.ID))

	indicator := fmt.Sprintf("Valor: R$%.2f\nID do Pagamento: %s\n\n⏳ Aguardando pagamento...", plan.Price, paymentID)
	if err := h.messenger.SendStatusMessage(r.Context(), req.UserID, indicator); err != nil {
		log.Warn("failed to send status message", sl.Err(err))
	}

	h.watcher.Watch(h.watchCtx, reconciler.PaymentTask{
		PaymentID: paymentID,
		UserID:    req.UserID,
		PlanName:  plan.Name,
		Amount:    plan.Price,
	})

	render.JSON(w, r, response.OKWithData(map[string]any{
		"payment_id":     paymentID,
		"amount":         plan.Price,
		"qr_code":        payment.PointOfInteraction.TransactionData.QRCode,
		"qr_code_base64": payment.PointOfInteraction.TransactionData.QRCodeBase64,
	}))
}
