package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"creditbot/config"
	"creditbot/internal/app"
	"creditbot/internal/bot"
	"creditbot/internal/database"
	"creditbot/internal/logger"
	"creditbot/internal/middleware"
	"creditbot/internal/router"
	"creditbot/pkg/imaging"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		log.WithError(err).Fatal("telegram")
	}
	telegram := bot.NewTelegram(api, log)

	deps, err := app.ExternalDeps(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("external services")
	}
	defer deps.Close()
	deps.Messenger = telegram
	svc := app.NewServices(cfg, db, deps, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewInMemoryRateLimiter(300, time.Minute)
	go limiter.Run(ctx)
	go svc.Sweeper.Run(ctx)

	engine := router.Setup(cfg, db, svc, limiter, telegram.Username(), log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	processing := imaging.NewClient(cfg.Processing.BaseURL, cfg.Processing.SubmitPath, cfg.Processing.APIKey,
		cfg.Processing.Operation, cfg.Processing.Timeout)
	b := bot.New(telegram, svc, processing, bot.Options{
		Username:   telegram.Username(),
		WebhookURL: cfg.Server.PublicURL + cfg.Processing.WebhookPath,
		Workers:    cfg.Telegram.Workers,
		Retry:      app.RetryPolicy(cfg.Ledger),
	}, log)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Telegram.PollTimeout
	updates := api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		api.StopReceivingUpdates()
	}()
	if err := b.Run(ctx, updates); err != nil {
		log.WithError(err).Error("bot stopped")
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	log.Info("server stopped")
}
