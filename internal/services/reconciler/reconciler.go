// Package reconciler превращает подтверждённый платёж в корректную
// запись подписки: новая выдача или добавочное продление, ровно один
// раз на каждый payment_id.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/mercadopago"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/metrics"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/storage/repository"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/store"
)

// Outcome — исход сверки платежа.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeRenewed Outcome = "renewed"
	OutcomeIgnored Outcome = "ignored"
	OutcomeFailed  Outcome = "failed"
)

var (
	// ErrUnknownPlan — correlation ссылается на план, которого нет в каталоге.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrBadCorrelation — платёж без пригодной связки user/plan.
	ErrBadCorrelation = errors.New("payment correlation is missing or malformed")
	// ErrNotApproved — платёж ещё не достиг состояния approved.
	ErrNotApproved = errors.New("payment is not approved")
)

// Result — результат сверки. Subscription заполнена для Created и Renewed.
type Result struct {
	Outcome      Outcome
	Subscription models.Subscription
	Plan         models.Plan
	Amount       float64
}

// PaymentGateway опрашивает платёжный шлюз.
type PaymentGateway interface {
	PaymentStatus(ctx context.Context, paymentID string) (models.PaymentInfo, error)
}

// PlanCatalog отдаёт планы, перечитывая каталог на каждом обращении.
type PlanCatalog interface {
	Plan(id int) (models.Plan, error)
}

// MembershipGateway выдаёт доступ в группы плана.
type MembershipGateway interface {
	GrantAccess(ctx context.Context, groupID, userID int64, ttl time.Duration) (string, error)
}

// EntitlementTracker ведёт вспомогательный индикатор VIP-статуса и журнал платежей.
type EntitlementTracker interface {
	SetVIPStatus(ctx context.Context, userID int64, isVIP bool) error
	RecordPayment(ctx context.Context, rec repository.PaymentRecord) error
}

// EventPublisher публикует события уведомлений.
type EventPublisher interface {
	Publish(routingkey string, message any) error
}

// Service реализует движок сверки.
type Service struct {
	store      *store.Store
	gateway    PaymentGateway
	catalog    PlanCatalog
	membership MembershipGateway
	tracker    EntitlementTracker
	publisher  EventPublisher
	inviteTTL  time.Duration
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(st *store.Store, gateway PaymentGateway, catalog PlanCatalog,
	membership MembershipGateway, tracker EntitlementTracker,
	publisher EventPublisher, inviteTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		store:      st,
		gateway:    gateway,
		catalog:    catalog,
		membership: membership,
		tracker:    tracker,
		publisher:  publisher,
		inviteTTL:  inviteTTL,
		log:        log,
	}
}

// Reconcile фиксирует подтверждённый платёж в хранилище подписок.
//
// Проверка идемпотентности, поиск активной записи и запись новой
// выполняются в одной критической секции хранилища: два конкурентных
// платежа одного пользователя не могут оба пройти как «новая выдача»,
// а повторная сверка того же payment_id всегда завершается Ignored.
// Побочные эффекты (выдача доступа, индикатор VIP, события) идут после
// фиксации и никогда её не откатывают.
func (s *Service) Reconcile(ctx context.Context, paymentID string) (Result, error) {
	const op = "reconciler.Reconcile"

	// Быстрый путь: платёж уже зафиксирован, опрос можно останавливать.
	if s.store.HasPayment(paymentID) {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeIgnored)).Inc()
		return Result{Outcome: OutcomeIgnored}, nil
	}

	payment, err := s.gateway.PaymentStatus(ctx, paymentID)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%s: %w", op, err)
	}
	if payment.Status != mercadopago.StatusApproved {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%s: status %q: %w", op, payment.Status, ErrNotApproved)
	}

	userID := payment.Correlation.UserID
	planID := payment.Correlation.PlanID
	if userID == 0 || planID == 0 {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%s: %w", op, ErrBadCorrelation)
	}

	// Каталог читается заново на каждом решении.
	plan, err := s.catalog.Plan(planID)
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%s: plan %d: %w", op, planID, errors.Join(ErrUnknownPlan, err))
	}

	var (
		outcome Outcome
		sub     models.Subscription
	)
	now := time.Now()

	err = s.store.Update(func(subs []models.Subscription) ([]models.Subscription, error) {
		if store.HasPaymentIn(subs, paymentID) {
			outcome = OutcomeIgnored
			return subs, nil
		}

		active, hasActive := store.ActiveUserIn(subs, userID, now)

		var endDate time.Time
		switch {
		case plan.IsPermanent():
			endDate = models.PermanentEndDate
		case hasActive:
			// Продление складывается с остатком: неиспользованное время сохраняется.
			endDate = active.EndDate.AddDate(0, 0, plan.DurationDays)
		default:
			endDate = now.AddDate(0, 0, plan.DurationDays)
		}

		sub = models.Subscription{
			UserID:        userID,
			PlanID:        plan.ID,
			EndDate:       endDate,
			PaymentMethod: "mercadopago",
			PaymentStatus: mercadopago.StatusApproved,
			PaymentID:     paymentID,
			IsPermanent:   plan.IsPermanent(),
		}

		next := subs[:0]
		for _, existing := range subs {
			if hasActive && existing.PaymentID == active.PaymentID {
				continue
			}
			next = append(next, existing)
		}
		next = append(next, sub)

		if hasActive {
			outcome = OutcomeRenewed
		} else {
			outcome = OutcomeCreated
		}
		return next, nil
	})
	if err != nil {
		metrics.ReconcileTotal.WithLabelValues(string(OutcomeFailed)).Inc()
		return Result{Outcome: OutcomeFailed}, fmt.Errorf("%s: commit: %w", op, err)
	}

	metrics.ReconcileTotal.WithLabelValues(string(outcome)).Inc()
	if outcome == OutcomeIgnored {
		return Result{Outcome: OutcomeIgnored}, nil
	}

	s.log.Info("payment reconciled",
		slog.String("payment_id", paymentID),
		slog.Int64("user_id", userID),
		slog.Int("plan_id", plan.ID),
		slog.String("outcome", string(outcome)),
		slog.Time("end_date", sub.EndDate))

	s.applySideEffects(ctx, outcome, sub, plan, payment)

	return Result{Outcome: outcome, Subscription: sub, Plan: plan, Amount: payment.Amount}, nil
}

// applySideEffects выполняет побочные эффекты после фиксации.
// Каждый из них best-effort: ошибка логируется и не влияет на остальные.
func (s *Service) applySideEffects(ctx context.Context, outcome Outcome, sub models.Subscription, plan models.Plan, payment models.PaymentInfo) {
	if err := s.tracker.SetVIPStatus(ctx, sub.UserID, true); err != nil {
		s.log.Error("failed to update vip status", slog.Int64("user_id", sub.UserID), sl.Err(err))
	}

	if err := s.tracker.RecordPayment(ctx, repository.PaymentRecord{
		PaymentID: sub.PaymentID,
		UserID:    sub.UserID,
		PlanID:    plan.ID,
		Amount:    payment.Amount,
		Status:    payment.Status,
		Outcome:   string(outcome),
	}); err != nil {
		s.log.Error("failed to record payment", slog.String("payment_id", sub.PaymentID), sl.Err(err))
	}

	for _, groupID := range plan.Groups {
		if _, err := s.membership.GrantAccess(ctx, groupID, sub.UserID, s.inviteTTL); err != nil {
			s.log.Error("failed to grant group access",
				slog.Int64("group_id", groupID),
				slog.Int64("user_id", sub.UserID),
				sl.Err(err))
		}
	}

	event := models.NotificationEvent{
		Kind:      models.NotificationAdmin,
		UserID:    sub.UserID,
		PlanName:  plan.Name,
		EndDate:   sub.EndDate,
		Permanent: sub.IsPermanent,
		Outcome:   string(outcome),
		Amount:    payment.Amount,
		PaymentID: sub.PaymentID,
	}
	if err := s.publisher.Publish(models.NotificationAdmin, event); err != nil {
		s.log.Error("failed to publish admin event", sl.Err(err))
	} else {
		metrics.NotificationsTotal.WithLabelValues(models.NotificationAdmin).Inc()
	}
}
