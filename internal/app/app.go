// Package app assembles repositories and services from configuration.
package app

import (
	"creditbot/config"
	"creditbot/internal/repository"
	"creditbot/internal/service"
	"creditbot/internal/ws"
	"creditbot/pkg/cloudinary"
	"creditbot/pkg/events"
	"creditbot/pkg/payment"
	"creditbot/pkg/retry"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Services struct {
	Users       *service.UserService
	Ledger      *service.LedgerService
	Tasks       *service.TaskService
	Payments    *service.PaymentService
	Referrals   *service.ReferralService
	Withdrawals *service.WithdrawalService
	Stats       *service.StatsService
	Notifier    *service.NotificationService
	Sweeper     *service.Sweeper
	Feed        *ws.Hub
}

// Deps are the outside collaborators. Nil fields fall back to no-op implementations.
type Deps struct {
	Messenger service.Messenger
	Provider  payment.Provider
	Archiver  cloudinary.Archiver
	Publisher events.Publisher
}

func RetryPolicy(cfg config.LedgerConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxElapsed:  cfg.RetryMaxElapsed,
	}
}

func NewServices(cfg *config.Config, db *gorm.DB, deps Deps, log *logrus.Logger) *Services {
	if deps.Provider == nil {
		deps.Provider = &payment.StubProvider{BaseURL: cfg.Server.PublicURL}
	}
	if deps.Archiver == nil {
		deps.Archiver = cloudinary.Nop{}
	}
	feed := ws.NewHub()
	if deps.Publisher == nil {
		deps.Publisher = feed
	} else {
		deps.Publisher = events.Multi{deps.Publisher, feed}
	}

	users := repository.NewUserRepository(db)
	payments := repository.NewPaymentRepository(db)
	tasks := repository.NewTaskRepository(db)
	credits := repository.NewCreditRepository(db)
	referrals := repository.NewReferralRepository(db)
	withdrawals := repository.NewWithdrawalRepository(db)

	policy := RetryPolicy(cfg.Ledger)
	tx := service.NewTxRunner(db, policy, cfg.Database.AcquireTimeout, log)
	notifier := service.NewNotificationService(deps.Messenger, log)

	s := &Services{Notifier: notifier, Feed: feed}
	s.Users = service.NewUserService(users, log)
	s.Ledger = service.NewLedgerService(tx, users, credits, log)
	s.Tasks = service.NewTaskService(tx, users, tasks, s.Ledger, notifier, deps.Archiver, deps.Publisher, cfg.Ledger.TaskTimeout, log)
	s.Referrals = service.NewReferralService(tx, users, payments, referrals, withdrawals, notifier, deps.Publisher,
		cfg.Referral.CommissionRate, log)
	s.Payments = service.NewPaymentService(tx, payments, users, s.Ledger, s.Referrals, deps.Provider, notifier, deps.Publisher,
		service.GatewayConfig{
			ShopID:     cfg.Gateway.ShopID,
			Token:      cfg.Gateway.Token,
			WebhookURL: cfg.Server.PublicURL + cfg.Gateway.WebhookPath,
			SuccessURL: cfg.Server.PublicURL + "/payment/success",
			FailURL:    cfg.Server.PublicURL + "/payment/fail",
			BackURL:    cfg.Server.PublicURL + "/payment/back",
		}, policy, log)
	s.Withdrawals = service.NewWithdrawalService(tx, users, withdrawals, notifier, cfg.Referral.MinWithdrawal, log)
	s.Stats = service.NewStatsService(users, payments, tasks)
	s.Sweeper = service.NewSweeper(s.Tasks, cfg.Ledger.SweepInterval, cfg.Ledger.SweepBatch, log)
	return s
}
