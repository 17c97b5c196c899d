// Package sweeper периодически удаляет истёкшие подписки: отзыв доступа
// в группах, сброс индикатора VIP и уведомление пользователя — всё
// best-effort, затем одна пакетная перезапись хранилища.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/metrics"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/store"
)

// PlanCatalog отдаёт план по ID.
type PlanCatalog interface {
	Plan(id int) (models.Plan, error)
}

// MembershipGateway отзывает доступ в группах.
type MembershipGateway interface {
	RevokeAccess(ctx context.Context, groupID, userID int64) error
}

// EntitlementTracker ведёт индикатор VIP-статуса.
type EntitlementTracker interface {
	SetVIPStatus(ctx context.Context, userID int64, isVIP bool) error
}

// EventPublisher публикует события уведомлений.
type EventPublisher interface {
	Publish(routingkey string, message any) error
}

// Service реализует свипер истёкших подписок.
type Service struct {
	store      *store.Store
	catalog    PlanCatalog
	membership MembershipGateway
	tracker    EntitlementTracker
	publisher  EventPublisher
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(st *store.Store, catalog PlanCatalog, membership MembershipGateway,
	tracker EntitlementTracker, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		store:      st,
		catalog:    catalog,
		membership: membership,
		tracker:    tracker,
		publisher:  publisher,
		log:        log,
	}
}

// Run запускает периодический свип: один проход сразу, далее по тикеру.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Sweep(ctx, time.Now()); err != nil {
		s.log.Error("sweep failed", sl.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				s.log.Error("sweep failed", sl.Err(err))
			}
		}
	}
}

func expired(sub models.Subscription, now time.Time) bool {
	return !sub.IsPermanent && !sub.EndDate.After(now)
}

// Sweep обрабатывает все истёкшие небессрочные записи и возвращает их
// число. Бессрочные записи не рассматриваются вовсе. Побочные эффекты
// выполняются до фиксации, поэтому при падении посреди прохода они
// могут повториться на следующем запуске — отзыв и уведомление обязаны
// переносить повторное выполнение.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	const op = "sweeper.Sweep"

	var toProcess []models.Subscription
	err := s.store.View(func(subs []models.Subscription) error {
		for _, sub := range subs {
			if expired(sub, now) {
				toProcess = append(toProcess, sub)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(toProcess) == 0 {
		return 0, nil
	}
	s.log.Info("found expired subscriptions", slog.Int("count", len(toProcess)))

	for _, sub := range toProcess {
		s.processExpired(ctx, sub)
	}

	// Пакетное уплотнение одним проходом. Условие перепроверяется под
	// блокировкой: запись, продлённую между сбором и фиксацией, не трогаем.
	removed := 0
	err = s.store.Update(func(subs []models.Subscription) ([]models.Subscription, error) {
		next := subs[:0]
		for _, sub := range subs {
			if expired(sub, now) {
				removed++
				continue
			}
			next = append(next, sub)
		}
		return next, nil
	})
	if err != nil {
		s.log.Error("failed to compact subscription store", sl.Err(err))
		return 0, err
	}

	metrics.SweptTotal.Add(float64(removed))
	s.log.Info("expired subscriptions removed", slog.Int("count", removed))
	return removed, nil
}

// processExpired выполняет побочные эффекты для одной истёкшей записи.
// Ошибка любого шага логируется и не прерывает обработку остальных.
func (s *Service) processExpired(ctx context.Context, sub models.Subscription) {
	revokeFailed := false
	plan, err := s.catalog.Plan(sub.PlanID)
	if err != nil {
		s.log.Error("plan not found for expired subscription",
			slog.Int("plan_id", sub.PlanID),
			slog.Int64("user_id", sub.UserID),
			sl.Err(err))
		revokeFailed = true
	} else {
		for _, groupID := range plan.Groups {
			if err := s.membership.RevokeAccess(ctx, groupID, sub.UserID); err != nil {
				s.log.Error("failed to revoke group access",
					slog.Int64("group_id", groupID),
					slog.Int64("user_id", sub.UserID),
					sl.Err(err))
				revokeFailed = true
			}
		}
	}

	if revokeFailed {
		// Администратор узнаёт о пользователе, оставшемся в группе
		// после истечения, и убирает его вручную.
		event := models.NotificationEvent{
			Kind:     models.NotificationAdmin,
			UserID:   sub.UserID,
			PlanName: plan.Name,
			EndDate:  sub.EndDate,
			Outcome:  "expiry_error",
		}
		if err := s.publisher.Publish(models.NotificationAdmin, event); err != nil {
			s.log.Error("failed to publish admin event", slog.Int64("user_id", sub.UserID), sl.Err(err))
		}
	}

	if err := s.tracker.SetVIPStatus(ctx, sub.UserID, false); err != nil {
		s.log.Error("failed to reset vip status", slog.Int64("user_id", sub.UserID), sl.Err(err))
	}

	event := models.NotificationEvent{
		Kind:     models.NotificationExpiry,
		UserID:   sub.UserID,
		PlanName: plan.Name,
		EndDate:  sub.EndDate,
	}
	if err := s.publisher.Publish(models.NotificationExpiry, event); err != nil {
		s.log.Error("failed to publish expiry event", slog.Int64("user_id", sub.UserID), sl.Err(err))
	} else {
		metrics.NotificationsTotal.WithLabelValues(models.NotificationExpiry).Inc()
	}
}
