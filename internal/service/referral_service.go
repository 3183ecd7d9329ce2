package service

import (
	"context"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"
	"creditbot/internal/repository"
	"creditbot/pkg/events"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Commission is one applied referral payout.
type Commission struct {
	ReferrerID int64
	ReferralID int64
	PaymentID  uint
	Amount     decimal.Decimal
}

type ReferralStats struct {
	Code          string
	Referrals     int64
	Earnings      decimal.Decimal // available for withdrawal
	TotalEarned   decimal.Decimal
	Withdrawn     decimal.Decimal
	PendingPayout decimal.Decimal
}

// ReferralService owns referrer links and commission rows.
type ReferralService struct {
	tx          TxRunner
	users       *repository.UserRepository
	payments    *repository.PaymentRepository
	referrals   *repository.ReferralRepository
	withdrawals *repository.WithdrawalRepository
	notifier    *NotificationService
	publisher   events.Publisher
	rate        decimal.Decimal
	log         *logrus.Logger
}

func NewReferralService(
	tx TxRunner,
	users *repository.UserRepository,
	payments *repository.PaymentRepository,
	referrals *repository.ReferralRepository,
	withdrawals *repository.WithdrawalRepository,
	notifier *NotificationService,
	publisher events.Publisher,
	rate decimal.Decimal,
	log *logrus.Logger,
) *ReferralService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ReferralService{
		tx: tx, users: users, payments: payments, referrals: referrals, withdrawals: withdrawals,
		notifier: notifier, publisher: publisher, rate: rate, log: log,
	}
}

// LinkReferral sets the user's referrer. The link is written once and never changes.
func (s *ReferralService) LinkReferral(ctx context.Context, userID, referrerID int64) error {
	if userID == referrerID {
		return domain.ErrSelfReferral
	}
	err := s.tx.run(ctx, "link_referral", func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		u, err := users.LockByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if u.ReferrerID != nil {
			return domain.ErrReferrerAlreadySet
		}
		if _, err := users.GetByID(ctx, referrerID); err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUnknownReferrer
			}
			return err
		}
		ok, err := users.SetReferrer(ctx, userID, referrerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrReferrerAlreadySet
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "referrer_id": referrerID}).Info("referral linked")
	return nil
}

// ProcessCommission pays the referrer's share of a paid payment, at most once.
// It returns nil when nothing was paid (no referrer, or already paid).
func (s *ReferralService) ProcessCommission(ctx context.Context, paymentID uint) (*Commission, error) {
	var c *Commission
	err := s.tx.run(ctx, "process_commission", func(tx *gorm.DB) error {
		c = nil
		p, err := s.payments.WithTx(tx).GetByID(ctx, paymentID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUnknownPayment
			}
			return err
		}
		if p.Status != domain.PaymentStatusPaid {
			return domain.ErrPaymentNotPaid
		}
		c, err = s.applyCommissionTx(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, c)
	return c, nil
}

// applyCommissionTx runs inside the caller's transaction. The unique payment_id on the
// referral row is what makes replays harmless.
func (s *ReferralService) applyCommissionTx(ctx context.Context, tx *gorm.DB, p *models.Payment) (*Commission, error) {
	users := s.users.WithTx(tx)
	payer, err := users.GetByID(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if payer.ReferrerID == nil {
		return nil, nil
	}
	amount, err := domain.Commission(p.Amount, p.Currency, s.rate)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, nil
	}
	inserted, err := s.referrals.WithTx(tx).InsertOnce(ctx, &models.ReferralTransaction{
		ReferrerID:  *payer.ReferrerID,
		ReferralID:  payer.ID,
		PaymentID:   p.ID,
		Amount:      amount,
		Status:      domain.ReferralTxStatusCredited,
		ProcessedAt: time.Now(),
	})
	if err != nil || !inserted {
		return nil, err
	}
	referrer, err := users.LockByID(ctx, *payer.ReferrerID)
	if err != nil {
		return nil, err
	}
	if err := users.Updates(ctx, referrer.ID, map[string]interface{}{
		"referral_earnings": referrer.ReferralEarnings.Add(amount),
		"updated_at":        time.Now(),
	}); err != nil {
		return nil, err
	}
	return &Commission{ReferrerID: referrer.ID, ReferralID: payer.ID, PaymentID: p.ID, Amount: amount}, nil
}

// announce notifies the referrer after the commission committed.
func (s *ReferralService) announce(ctx context.Context, c *Commission) {
	if c == nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"referrer_id": c.ReferrerID, "payment_id": c.PaymentID, "amount": c.Amount.String(),
	}).Info("referral commission credited")
	s.notifier.CommissionEarned(ctx, c.ReferrerID, c.Amount)
	payload := map[string]interface{}{
		"referrer_id": c.ReferrerID, "referral_id": c.ReferralID,
		"payment_id": c.PaymentID, "amount": c.Amount.StringFixed(2),
	}
	if err := s.publisher.Publish(ctx, domain.EventReferralCommission, payload); err != nil {
		s.log.WithError(err).Warn("event publish failed")
	}
}

func (s *ReferralService) Stats(ctx context.Context, userID int64) (*ReferralStats, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, repository.StoreErr(err)
	}
	st := &ReferralStats{Code: domain.ReferralCode(userID), Earnings: u.ReferralEarnings}
	if st.Referrals, err = s.users.CountReferrals(ctx, userID); err != nil {
		return nil, repository.StoreErr(err)
	}
	if st.TotalEarned, err = s.referrals.SumByReferrer(ctx, userID); err != nil {
		return nil, repository.StoreErr(err)
	}
	if st.Withdrawn, err = s.withdrawals.SumByStatus(ctx, userID, domain.WithdrawalStatusCompleted); err != nil {
		return nil, repository.StoreErr(err)
	}
	if st.PendingPayout, err = s.withdrawals.SumByStatus(ctx, userID, domain.WithdrawalStatusPending); err != nil {
		return nil, repository.StoreErr(err)
	}
	return st, nil
}
