package service

import (
	"context"
	"fmt"

	"creditbot/internal/domain"
	"creditbot/internal/metrics"
	"creditbot/internal/models"
	"creditbot/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LedgerService is the only writer of User.Credits.
type LedgerService struct {
	tx      TxRunner
	users   *repository.UserRepository
	credits *repository.CreditRepository
	log     *logrus.Logger
}

func NewLedgerService(tx TxRunner, users *repository.UserRepository, credits *repository.CreditRepository, log *logrus.Logger) *LedgerService {
	return &LedgerService{tx: tx, users: users, credits: credits, log: log}
}

// AdjustCredits applies delta in its own transaction and returns the new balance.
func (s *LedgerService) AdjustCredits(ctx context.Context, userID, delta int64, reason, ref string) (int64, error) {
	var balance int64
	err := s.tx.run(ctx, "adjust_credits", func(tx *gorm.DB) error {
		var err error
		balance, err = s.ApplyTx(ctx, tx, userID, delta, reason, ref)
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.CreditAdjustmentsTotal.WithLabelValues(reason).Inc()
	s.log.WithFields(logrus.Fields{"user_id": userID, "delta": delta, "reason": reason, "balance": balance}).Info("credits adjusted")
	return balance, nil
}

// ApplyTx applies delta inside the caller's transaction: lock, check, compare-and-swap,
// audit. A debit that would make the balance negative fails with ErrInsufficientCredits.
func (s *LedgerService) ApplyTx(ctx context.Context, tx *gorm.DB, userID, delta int64, reason, ref string) (int64, error) {
	users := s.users.WithTx(tx)
	u, err := users.LockByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, domain.ErrUserNotFound
		}
		return 0, err
	}
	next := u.Credits + delta
	if next < 0 {
		return 0, domain.ErrInsufficientCredits
	}
	ok, err := users.SetCredits(ctx, userID, u.Credits, next)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: balance changed concurrently for user %d", domain.ErrLedgerUnavailable, userID)
	}
	err = s.credits.WithTx(tx).Append(ctx, &models.CreditTransaction{
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		Reference:    ref,
		BalanceAfter: next,
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// GetBalance is a point-in-time read without locking.
func (s *LedgerService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, domain.ErrUserNotFound
		}
		return 0, repository.StoreErr(err)
	}
	return u.Credits, nil
}

func (s *LedgerService) History(ctx context.Context, userID int64, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	list, err := s.credits.ListByUser(ctx, userID, limit)
	return list, repository.StoreErr(err)
}
