package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/mercadopago"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/metrics"
)

// Messenger редактирует пользовательский индикатор состояния платежа.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
	EditLastStatusMessage(ctx context.Context, chatID int64, text string) error
}

// StatusCache хранит последний наблюдавшийся статус платежа, общий для
// тикера и проверок по вебхуку.
type StatusCache interface {
	LastStatus(ctx context.Context, paymentID string) (string, bool, error)
	SetLastStatus(ctx context.Context, paymentID, status string) error
	Drop(ctx context.Context, paymentID string) error
}

// PaymentTask описывает платёж, ожидающий подтверждения.
type PaymentTask struct {
	PaymentID string
	UserID    int64
	PlanName  string
	Amount    float64
}

type pollTask struct {
	cancel  context.CancelFunc
	trigger chan struct{}
}

// PollManager ведёт по одной фоновой задаче на каждый платёж в ожидании.
// Задача отменяется явным cancel при достижении конечного исхода и
// больше не опрашивает шлюз.
type PollManager struct {
	gateway   PaymentGateway
	engine    *Service
	messenger Messenger
	statuses  StatusCache
	log       *slog.Logger

	interval time.Duration
	timeout  time.Duration

	mu    sync.Mutex
	tasks map[string]*pollTask
}

// NewPollManager создает новый PollManager.
func NewPollManager(gateway PaymentGateway, engine *Service, messenger Messenger,
	statuses StatusCache, interval, timeout time.Duration, log *slog.Logger) *PollManager {
	return &PollManager{
		gateway:   gateway,
		engine:    engine,
		messenger: messenger,
		statuses:  statuses,
		log:       log,
		interval:  interval,
		timeout:   timeout,
		tasks:     make(map[string]*pollTask),
	}
}

// Watch запускает задачу опроса платежа. Повторный Watch для того же
// payment_id игнорируется: задача уже существует.
func (m *PollManager) Watch(ctx context.Context, task PaymentTask) {
	m.mu.Lock()
	if _, exists := m.tasks[task.PaymentID]; exists {
		m.mu.Unlock()
		return
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t := &pollTask{cancel: cancel, trigger: make(chan struct{}, 1)}
	m.tasks[task.PaymentID] = t
	m.mu.Unlock()

	go m.run(taskCtx, task, t)
}

// Trigger инициирует немедленную проверку платежа, например по вебхуку.
// Возвращает false, если задачи для платежа нет.
func (m *PollManager) Trigger(paymentID string) bool {
	m.mu.Lock()
	t, ok := m.tasks[paymentID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case t.trigger <- struct{}{}:
	default:
	}
	return true
}

// Cancel останавливает задачу опроса платежа.
func (m *PollManager) Cancel(paymentID string) {
	m.mu.Lock()
	t, ok := m.tasks[paymentID]
	if ok {
		delete(m.tasks, paymentID)
	}
	m.mu.Unlock()
	if ok {
		t.cancel()
	}
}

func (m *PollManager) run(ctx context.Context, task PaymentTask, t *pollTask) {
	defer m.Cancel(task.PaymentID)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-t.trigger:
		}

		if done := m.check(ctx, task); done {
			if err := m.statuses.Drop(ctx, task.PaymentID); err != nil {
				m.log.Warn("failed to drop payment status", sl.Err(err))
			}
			return
		}
	}
}

// check выполняет один опрос шлюза. Возвращает true, когда задача
// достигла конечного исхода и опрос нужно прекратить.
func (m *PollManager) check(ctx context.Context, task PaymentTask) bool {
	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	payment, err := m.gateway.PaymentStatus(callCtx, task.PaymentID)
	if err != nil {
		// Транзиентная ошибка шлюза: состояние не меняем, опрос продолжается.
		m.log.Warn("payment status query failed",
			slog.String("payment_id", task.PaymentID), sl.Err(err))
		return false
	}
	metrics.PollTotal.WithLabelValues(payment.Status).Inc()

	switch payment.Status {
	case mercadopago.StatusApproved:
		res, err := m.engine.Reconcile(callCtx, task.PaymentID)
		if err != nil {
			m.log.Error("reconcile failed", slog.String("payment_id", task.PaymentID), sl.Err(err))
		}
		if res.Outcome == OutcomeFailed {
			// Повторим на следующем тике: состояние хранилища не изменилось.
			return false
		}
		if res.Outcome != OutcomeIgnored {
			text := fmt.Sprintf("✅ Pagamento aprovado!\n\nID do Pagamento: %s", task.PaymentID)
			if err := m.messenger.EditLastStatusMessage(ctx, task.UserID, text); err != nil {
				m.log.Warn("failed to edit status message", sl.Err(err))
			}
		}
		return true

	case mercadopago.StatusRejected:
		text := fmt.Sprintf("❌ Ocorreu um erro no pagamento. Tente novamente.\n\nID do Pagamento: %s", task.PaymentID)
		if err := m.messenger.EditLastStatusMessage(ctx, task.UserID, text); err != nil {
			m.log.Warn("failed to edit status message", sl.Err(err))
		}
		return true

	case mercadopago.StatusPending, mercadopago.StatusInProcess:
		m.updateIndicator(ctx, task, payment.Status)
		return false

	default:
		m.log.Warn("unexpected payment status",
			slog.String("payment_id", task.PaymentID),
			slog.String("status", payment.Status))
		return false
	}
}

// updateIndicator редактирует сообщение-индикатор только при смене статуса.
func (m *PollManager) updateIndicator(ctx context.Context, task PaymentTask, status string) {
	last, found, err := m.statuses.LastStatus(ctx, task.PaymentID)
	if err != nil {
		m.log.Warn("failed to read last payment status", sl.Err(err))
	}
	if found && last == status {
		return
	}

	text := fmt.Sprintf("⏳ Aguardando confirmação do pagamento...\n\nValor: R$%.2f\nID do Pagamento: %s", task.Amount, task.PaymentID)
	if err := m.messenger.EditLastStatusMessage(ctx, task.UserID, text); err != nil {
		m.log.Warn("failed to edit status message", sl.Err(err))
	}
	if err := m.statuses.SetLastStatus(ctx, task.PaymentID, status); err != nil {
		m.log.Warn("failed to store payment status", sl.Err(err))
	}
}
