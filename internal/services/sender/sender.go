// Package sender доставляет события уведомлений из очередей брокера
// пользователям и администратору через транспорт сообщений.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/models"
)

// Messenger отправляет текстовые сообщения.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Service реализует доставку уведомлений.
type Service struct {
	messenger   Messenger
	adminChatID int64
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(messenger Messenger, adminChatID int64, log *slog.Logger) *Service {
	return &Service{
		messenger:   messenger,
		adminChatID: adminChatID,
		log:         log,
	}
}

// SendExpiryNotification сообщает пользователю об окончании подписки.
func (s *Service) SendExpiryNotification(body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal expiry event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	text := fmt.Sprintf("⚠️ Sua assinatura VIP expirou!\n\n"+
		"Plano: %s\n"+
		"Data de expiração: %s\n\n"+
		"Para continuar com acesso VIP, adquira um novo plano usando /start",
		event.PlanName, event.EndDate.Format("02/01/2006 15:04"))

	return s.messenger.Send(context.Background(), event.UserID, text)
}

// SendThresholdNotification напоминает пользователю о близком окончании.
func (s *Service) SendThresholdNotification(body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal threshold event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	var b strings.Builder
	b.WriteString("⚠️ Sua assinatura VIP está próxima de expirar!\n\n")
	fmt.Fprintf(&b, "Plano: %s\n", event.PlanName)
	if event.DaysLeft == 0 {
		fmt.Fprintf(&b, "Horas restantes: %d\n", event.HoursLeft)
	} else {
		fmt.Fprintf(&b, "Dias restantes: %d\n", event.DaysLeft)
	}
	fmt.Fprintf(&b, "Data de expiração: %s\n\n", event.EndDate.Format("02/01/2006 15:04"))
	b.WriteString("Para renovar seu acesso VIP, use /start e escolha um novo plano! 🎉")

	return s.messenger.Send(context.Background(), event.UserID, b.String())
}

// SendAdminNotification сообщает администратору об исходе сверки платежа.
func (s *Service) SendAdminNotification(body []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("failed to unmarshal admin event", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	if event.Outcome == "expiry_error" {
		text := fmt.Sprintf("⚠️ Erro ao processar expiração!\n\n"+
			"👤 Usuário: %d\n"+
			"💎 Plano: %s\n"+
			"📅 Expirou em: %s\n\n"+
			"Verifique manualmente se o usuário ainda está nos grupos VIP.",
			event.UserID, event.PlanName, event.EndDate.Format("02/01/2006 15:04"))
		return s.messenger.Send(context.Background(), s.adminChatID, text)
	}

	title := "🎉 Nova Assinatura VIP!"
	if event.Outcome == "renewed" {
		title = "🔄 Renovação de Assinatura VIP!"
	}
	expiry := event.EndDate.Format("02/01/2006 15:04")
	if event.Permanent {
		expiry = "Permanente"
	}

	text := fmt.Sprintf("%s\n\n"+
		"👤 Usuário: %d\n"+
		"💎 Plano: %s\n"+
		"💰 Valor: R$%.2f\n"+
		"📅 Expira em: %s\n"+
		"💳 ID do Pagamento: %s",
		title, event.UserID, event.PlanName, event.Amount, expiry, event.PaymentID)

	return s.messenger.Send(context.Background(), s.adminChatID, text)
}
