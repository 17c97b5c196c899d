// Package notifier рассылает пороговые напоминания об окончании
// подписки: по одному разу на каждый порог за время жизни записи.
package notifier

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

// EventPublisher публикует события уведомлений.
type EventPublisher interface {
	Publish(routingkey string, message any) error
}

// Service реализует планировщик пороговых уведомлений.
type Service struct {
	store     *store.Store
	catalog   PlanCatalog
	publisher EventPublisher
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(st *store.Store, catalog PlanCatalog, publisher EventPublisher, log *slog.Logger) *Service {
	return &Service{
		store:     st,
		catalog:   catalog,
		publisher: publisher,
		log:       log,
	}
}

// Run запускает периодическую проверку порогов: один проход сразу,
// далее по тикеру.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if _, err := s.Notify(ctx, time.Now()); err != nil {
		s.log.Error("notify pass failed", sl.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Notify(ctx, time.Now()); err != nil {
				s.log.Error("notify pass failed", sl.Err(err))
			}
		}
	}
}

// flagMark — отметка «порог обработан» для конкретной записи.
type flagMark struct {
	paymentID string
	flag      string
}

// threshold выбирает порог для записи. Пороги проверяются в порядке
// приоритета, срабатывает первый подошедший. Последние сутки и «остался
// 1 день» делят один флаг notified_1: не больше одного уведомления на флаг.
func threshold(sub models.Subscription, now time.Time) (flag string, daysLeft, hoursLeft int, ok bool) {
	timeLeft := sub.EndDate.Sub(now)
	daysLeft = int(timeLeft / (24 * time.Hour))
	hoursLeft = int(timeLeft/time.Hour) % 24

	switch {
	case daysLeft == 0 && hoursLeft <= 24:
		return "notified_1", daysLeft, hoursLeft, true
	case daysLeft == 1:
		return "notified_1", daysLeft, hoursLeft, true
	case daysLeft == 2:
		return "notified_2", daysLeft, hoursLeft, true
	case daysLeft == 3:
		return "notified_3", daysLeft, hoursLeft, true
	}
	return "", daysLeft, hoursLeft, false
}

func flagSet(sub models.Subscription, flag string) bool {
	switch flag {
	case "notified_1":
		return sub.Notified1
	case "notified_2":
		return sub.Notified2
	case "notified_3":
		return sub.Notified3
	}
	return false
}

func setFlag(sub *models.Subscription, flag string) {
	switch flag {
	case "notified_1":
		sub.Notified1 = true
	case "notified_2":
		sub.Notified2 = true
	case "notified_3":
		sub.Notified3 = true
	}
}

// Notify проходит по активным небессрочным записям и публикует
// уведомление для каждой, пересёкшей порог с ещё не взведённым флагом.
// Флаг взводится и при неудачной публикации: попытка уже была, шторм
// повторов недопустим. Все отметки фиксируются одной перезаписью
// хранилища в конце прохода.
func (s *Service) Notify(ctx context.Context, now time.Time) (int, error) {
	const op = "notifier.Notify"

	type pending struct {
		sub       models.Subscription
		flag      string
		daysLeft  int
		hoursLeft int
	}

	var toNotify []pending
	err := s.store.View(func(subs []models.Subscription) error {
		for _, sub := range subs {
			if sub.IsPermanent || !sub.EndDate.After(now) {
				continue
			}
			flag, daysLeft, hoursLeft, ok := threshold(sub, now)
			if !ok || flagSet(sub, flag) {
				continue
			}
			toNotify = append(toNotify, pending{sub: sub, flag: flag, daysLeft: daysLeft, hoursLeft: hoursLeft})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(toNotify) == 0 {
		return 0, nil
	}
	s.log.Info("found subscriptions crossing notification thresholds", slog.Int("count", len(toNotify)))

	marks := make([]flagMark, 0, len(toNotify))
	sent := 0
	for _, p := range toNotify {
		planName := ""
		if plan, err := s.catalog.Plan(p.sub.PlanID); err == nil {
			planName = plan.Name
		} else {
			s.log.Error("plan not found for expiring subscription",
				slog.Int("plan_id", p.sub.PlanID), sl.Err(err))
		}

		event := models.NotificationEvent{
			Kind:      models.NotificationThreshold,
			UserID:    p.sub.UserID,
			PlanName:  planName,
			EndDate:   p.sub.EndDate,
			DaysLeft:  p.daysLeft,
			HoursLeft: p.hoursLeft,
		}
		if err := s.publisher.Publish(models.NotificationThreshold, event); err != nil {
			s.log.Error("failed to publish threshold event",
				slog.Int64("user_id", p.sub.UserID), sl.Err(err))
		} else {
			metrics.NotificationsTotal.WithLabelValues(models.NotificationThreshold).Inc()
		}
		sent++
		marks = append(marks, flagMark{paymentID: p.sub.PaymentID, flag: p.flag})
	}

	err = s.store.Update(func(subs []models.Subscription) ([]models.Subscription, error) {
		for i := range subs {
			for _, mark := range marks {
				// Отметка привязана к payment_id: продлённая за время
				// прохода запись получила новый ключ и не затрагивается.
				if subs[i].PaymentID == mark.paymentID {
					setFlag(&subs[i], mark.flag)
				}
			}
		}
		return subs, nil
	})
	if err != nil {
		s.log.Error("failed to persist notification flags", sl.Err(err))
		return sent, err
	}

	return sent, nil
}
