// Package sender собирает процесс доставки уведомлений: потребители
// очередей брокера и отправка сообщений через Telegram.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/config"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/vip-gatekeeper/internal/services/sender"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/telegram"
)

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	messenger := telegram.NewClient(telegram.Options{
		Token:       cfg.Telegram.BotToken,
		APIURL:      cfg.Telegram.TelegramAPI,
		CallTimeout: cfg.Telegram.CallTimeout,
		SendRate:    cfg.Telegram.SendRate,
		SendBurst:   cfg.Telegram.SendBurst,
	})
	senderService := senderservice.New(messenger, cfg.Telegram.AdminChatID, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, a.logger, "notifications.expiry", a.senderService.SendExpiryNotification)
	if err != nil {
		a.logger.Error("failed to start notifications.expiry consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, a.logger, "notifications.threshold", a.senderService.SendThresholdNotification)
	if err != nil {
		a.logger.Error("failed to start notifications.threshold consumer", slog.Any("err", err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.ch, a.logger, "notifications.admin", a.senderService.SendAdminNotification)
	if err != nil {
		a.logger.Error("failed to start notifications.admin consumer", slog.Any("err", err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", slog.Any("err", err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", slog.Any("err", err))
	}

	return nil
}
