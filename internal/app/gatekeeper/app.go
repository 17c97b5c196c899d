package gatekeeper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vip-gatekeeper/internal/cache"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/config"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/mercadopago"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/migrations"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/plancatalog"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/rabbitmq"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/notifier"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/reconciler"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/services/sweeper"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/storage/repository"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/store"
	"github.com/magabrotheeeer/vip-gatekeeper/internal/telegram"
)

type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	conn    *amqp.Connection
	ch      *amqp.Channel
	sweeper *sweeper.Service
	notify  *notifier.Service
	engine  config.Engine
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	st, err := store.Open(cfg.SubscriptionsPath)
	if err != nil {
		return nil, err
	}
	catalog := plancatalog.New(cfg.PlansPath)

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher := rabbitmq.NewPublisher(ch)

	gateway := mercadopago.NewClient(cfg.MercadoPago.AccessToken, cfg.MercadoPago.APIURL, cfg.MercadoPago.RequestTimeout)
	messenger := telegram.NewClient(telegram.Options{
		Token:       cfg.Telegram.BotToken,
		APIURL:      cfg.Telegram.TelegramAPI,
		CallTimeout: cfg.Telegram.CallTimeout,
		SendRate:    cfg.Telegram.SendRate,
		SendBurst:   cfg.Telegram.SendBurst,
	})

	engine := reconciler.New(st, gateway, catalog, messenger, db, publisher, cfg.Telegram.InviteTTL, logger)
	pollManager := reconciler.NewPollManager(gateway, engine, messenger, cacheRedis,
		cfg.Engine.PollInterval, cfg.Engine.PollTimeout, logger)
	sweepService := sweeper.New(st, catalog, messenger, db, publisher, logger)
	notifyService := notifier.New(st, catalog, publisher, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, ctx, gateway, catalog, engine, pollManager, messenger, st, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:  srv,
		logger:  logger,
		db:      db,
		cache:   cacheRedis,
		conn:    conn,
		ch:      ch,
		sweeper: sweepService,
		notify:  notifyService,
		engine:  cfg.Engine,
	}, nil
}

// Run запускает HTTP-сервер и фоновые задачи. Свипер и планировщик
// стартуют после короткой задержки, чтобы не мешать инициализации.
func (a *App) Run(ctx context.Context) error {
	go a.runBackground(ctx, a.sweeper.Run, a.engine.SweepInterval)
	go a.runBackground(ctx, a.notify.Run, a.engine.NotifyInterval)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if cerr := a.cache.Close(); cerr != nil {
			a.logger.Error("failed to close redis connection", slog.Any("err", cerr))
		}
		if cerr := a.ch.Close(); cerr != nil {
			a.logger.Error("failed to close channel", slog.Any("err", cerr))
		}
		if cerr := a.conn.Close(); cerr != nil {
			a.logger.Error("failed to close connection", slog.Any("err", cerr))
		}
		a.db.DB.Close()
		return err
	}
}

func (a *App) runBackground(ctx context.Context, run func(context.Context, time.Duration), interval time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(a.engine.InitialDelay):
	}
	run(ctx, interval)
}
