package service

import (
	"context"
	"strings"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"
	"creditbot/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// WithdrawalService pays out referral earnings after admin review.
type WithdrawalService struct {
	tx          TxRunner
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	notifier    *NotificationService
	minAmount   decimal.Decimal
	log         *logrus.Logger
}

func NewWithdrawalService(tx TxRunner, users *repository.UserRepository, withdrawals *repository.WithdrawalRepository,
	notifier *NotificationService, minAmount decimal.Decimal, log *logrus.Logger) *WithdrawalService {
	return &WithdrawalService{tx: tx, users: users, withdrawals: withdrawals, notifier: notifier, minAmount: minAmount, log: log}
}

// Request moves the user's whole earnings balance into a pending withdrawal.
func (s *WithdrawalService) Request(ctx context.Context, userID int64, details string) (*models.Withdrawal, error) {
	details = strings.TrimSpace(details)
	var w *models.Withdrawal
	err := s.tx.run(ctx, "request_withdrawal", func(tx *gorm.DB) error {
		w = nil
		users := s.users.WithTx(tx)
		u, err := users.LockByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if u.ReferralEarnings.LessThan(s.minAmount) {
			return domain.ErrWithdrawalTooSmall
		}
		withdrawals := s.withdrawals.WithTx(tx)
		pending, err := withdrawals.HasPending(ctx, userID)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrWithdrawalPending
		}
		w = &models.Withdrawal{
			UserID:  userID,
			Amount:  u.ReferralEarnings,
			Details: details,
			Status:  domain.WithdrawalStatusPending,
		}
		if err := withdrawals.Create(ctx, w); err != nil {
			return err
		}
		return users.Updates(ctx, userID, map[string]interface{}{
			"referral_earnings": decimal.Zero,
			"updated_at":        time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "withdrawal_id": w.ID, "amount": w.Amount.String()}).Info("withdrawal requested")
	return w, nil
}

func (s *WithdrawalService) Approve(ctx context.Context, id uint) (*models.Withdrawal, error) {
	return s.process(ctx, id, domain.WithdrawalStatusCompleted)
}

// Reject closes the request and returns the amount to the user's earnings.
func (s *WithdrawalService) Reject(ctx context.Context, id uint) (*models.Withdrawal, error) {
	return s.process(ctx, id, domain.WithdrawalStatusRejected)
}

func (s *WithdrawalService) process(ctx context.Context, id uint, status string) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := s.tx.run(ctx, "process_withdrawal", func(tx *gorm.DB) error {
		withdrawals := s.withdrawals.WithTx(tx)
		var err error
		w, err = withdrawals.LockByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrWithdrawalNotFound
			}
			return err
		}
		if w.Status != domain.WithdrawalStatusPending {
			return domain.ErrWithdrawalProcessed
		}
		changed, err := withdrawals.Process(ctx, id, status)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrWithdrawalProcessed
		}
		w.Status = status
		if status != domain.WithdrawalStatusRejected {
			return nil
		}
		users := s.users.WithTx(tx)
		u, err := users.LockByID(ctx, w.UserID)
		if err != nil {
			return err
		}
		return users.Updates(ctx, u.ID, map[string]interface{}{
			"referral_earnings": u.ReferralEarnings.Add(w.Amount),
			"updated_at":        time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"withdrawal_id": id, "user_id": w.UserID, "status": status}).Info("withdrawal processed")
	s.notifier.WithdrawalProcessed(ctx, w)
	return w, nil
}

func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := s.withdrawals.ListByStatus(ctx, domain.WithdrawalStatusPending, limit)
	return list, repository.StoreErr(err)
}
