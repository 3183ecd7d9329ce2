package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/metrics"
	"creditbot/internal/models"
	"creditbot/internal/repository"
	"creditbot/pkg/events"
	"creditbot/pkg/payment"
	"creditbot/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GatewayConfig carries the shop credentials and the URLs handed to the gateway.
type GatewayConfig struct {
	ShopID     string
	Token      string
	WebhookURL string
	SuccessURL string
	FailURL    string
	BackURL    string
}

// Checkout is what the user needs to complete a purchase.
type Checkout struct {
	RedirectURL     string
	MerchantOrderID string
	Amount          decimal.Decimal
	Currency        domain.Currency
	Credits         int64
}

// PaymentWebhook is the gateway's notification as received. Amount stays a string because
// the signature covers its exact text.
type PaymentWebhook struct {
	ShopID          string
	Amount          string
	OrderID         string
	PaymentStatus   string
	PaymentMethod   string
	CustomFields    string
	MerchantOrderID string
	Sign            string
}

type WebhookResult struct {
	Applied   bool
	PaymentID uint
	Status    string
}

// PaymentService owns Payment.status transitions.
type PaymentService struct {
	tx        TxRunner
	payments  *repository.PaymentRepository
	users     *repository.UserRepository
	ledger    *LedgerService
	referrals *ReferralService
	provider  payment.Provider
	notifier  *NotificationService
	publisher events.Publisher
	gateway   GatewayConfig
	retry     retry.Policy
	log       *logrus.Logger
}

func NewPaymentService(
	tx TxRunner,
	payments *repository.PaymentRepository,
	users *repository.UserRepository,
	ledger *LedgerService,
	referrals *ReferralService,
	provider payment.Provider,
	notifier *NotificationService,
	publisher events.Publisher,
	gateway GatewayConfig,
	policy retry.Policy,
	log *logrus.Logger,
) *PaymentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &PaymentService{
		tx: tx, payments: payments, users: users, ledger: ledger, referrals: referrals,
		provider: provider, notifier: notifier, publisher: publisher, gateway: gateway,
		retry: policy, log: log,
	}
}

// Initiate commits a pending payment and then asks the gateway for a redirect URL.
// If the gateway call fails the pending row is removed.
func (s *PaymentService) Initiate(ctx context.Context, userID int64, packageID int, currencyCode string) (*Checkout, error) {
	pkg, err := domain.FindPackage(packageID)
	if err != nil {
		return nil, err
	}
	cur, err := domain.FindCurrency(currencyCode)
	if err != nil {
		return nil, err
	}
	amount, err := pkg.Price(cur.Code)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, repository.StoreErr(err)
	}

	p := &models.Payment{
		UserID:          userID,
		MerchantOrderID: fmt.Sprintf("%d_%d", userID, time.Now().UnixNano()),
		PackageID:       pkg.ID,
		Amount:          amount,
		Currency:        cur.Code,
		Method:          cur.Method,
		Credits:         pkg.Credits,
		Status:          domain.PaymentStatusPending,
	}
	err = s.tx.run(ctx, "create_payment", func(tx *gorm.DB) error {
		p.ID = 0
		return s.payments.WithTx(tx).Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	fields := logrus.Fields{"user_id": userID, "merchant_order_id": p.MerchantOrderID}

	var resp *payment.PaymentResponse
	attempt := 0
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RetriesTotal.WithLabelValues("gateway").Inc()
		}
		var err error
		resp, err = s.provider.InitiatePayment(ctx, payment.PaymentRequest{
			OrderID:    p.MerchantOrderID,
			UserID:     userID,
			Amount:     amount,
			Currency:   cur.GatewayCode,
			Method:     cur.Method,
			Credits:    pkg.Credits,
			WebhookURL: s.gateway.WebhookURL,
			SuccessURL: s.gateway.SuccessURL,
			FailURL:    s.gateway.FailURL,
			BackURL:    s.gateway.BackURL,
		})
		return err
	}, func(err error) bool { return errors.Is(err, payment.ErrUnavailable) })
	if err != nil {
		if delErr := s.payments.DeletePending(context.WithoutCancel(ctx), p.ID); delErr != nil {
			s.log.WithError(delErr).WithFields(fields).Error("failed to remove pending payment after gateway error")
		}
		s.log.WithError(err).WithFields(fields).Error("payment creation failed")
		if errors.Is(err, payment.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
		}
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	if resp.GatewayOrderID != "" {
		if err := s.payments.SetGatewayOrderID(ctx, p.ID, resp.GatewayOrderID); err != nil {
			s.log.WithError(err).WithFields(fields).Warn("gateway order id not saved")
		}
	}
	s.log.WithFields(fields).WithField("amount", amount.String()).Info("payment created")
	return &Checkout{
		RedirectURL:     resp.RedirectURL,
		MerchantOrderID: p.MerchantOrderID,
		Amount:          amount,
		Currency:        cur,
		Credits:         pkg.Credits,
	}, nil
}

// terminalStatus maps gateway statuses onto ours. ok is false for non-terminal ones.
func terminalStatus(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "success":
		return domain.PaymentStatusPaid, true
	case "fail", "failed", "error":
		return domain.PaymentStatusFailed, true
	case "cancel", "canceled", "cancelled":
		return domain.PaymentStatusCanceled, true
	}
	return "", false
}

// ApplyWebhook verifies a gateway notification and applies at most one terminal
// transition to the matching pending payment. Replays are successful no-ops.
func (s *PaymentService) ApplyWebhook(ctx context.Context, wh PaymentWebhook) (WebhookResult, error) {
	fields := logrus.Fields{"merchant_order_id": wh.MerchantOrderID, "order_id": wh.OrderID, "payment_status": wh.PaymentStatus}
	if (s.gateway.ShopID != "" && wh.ShopID != s.gateway.ShopID) ||
		!payment.VerifySignature(wh.ShopID, wh.Amount, wh.OrderID, s.gateway.Token, wh.Sign) {
		s.log.WithFields(fields).Error("payment webhook signature mismatch")
		return WebhookResult{}, domain.ErrInvalidSignature
	}
	if wh.MerchantOrderID == "" {
		return WebhookResult{}, domain.ErrMalformedWebhook
	}
	status, terminal := terminalStatus(wh.PaymentStatus)

	var (
		res        WebhookResult
		p          *models.Payment
		balance    int64
		commission *Commission
	)
	err := s.tx.run(ctx, "apply_payment_webhook", func(tx *gorm.DB) error {
		res, balance, commission = WebhookResult{}, 0, nil
		payments := s.payments.WithTx(tx)
		var err error
		p, err = payments.LockByMerchantOrderID(ctx, wh.MerchantOrderID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUnknownPayment
			}
			return err
		}
		res.PaymentID = p.ID
		res.Status = p.Status
		if p.Status != domain.PaymentStatusPending || !terminal {
			return nil
		}
		changed, err := payments.Transition(ctx, p.ID, status, wh.OrderID)
		if err != nil || !changed {
			return err
		}
		if status == domain.PaymentStatusPaid {
			balance, err = s.ledger.ApplyTx(ctx, tx, p.UserID, p.Credits, domain.ReasonPurchase, p.MerchantOrderID)
			if err != nil {
				return err
			}
			commission, err = s.referrals.applyCommissionTx(ctx, tx, p)
			if err != nil {
				return err
			}
		}
		res.Applied = true
		res.Status = status
		return nil
	})
	if errors.Is(err, domain.ErrUnknownPayment) {
		s.log.WithFields(fields).Error("payment webhook for unknown merchant order")
		return WebhookResult{}, err
	}
	if err != nil {
		return WebhookResult{}, err
	}
	if !res.Applied {
		if !terminal {
			s.log.WithFields(fields).Info("non-terminal payment status, ignoring")
		} else {
			s.log.WithFields(fields).WithField("status", res.Status).Info("payment already settled, ignoring replay")
		}
		return res, nil
	}

	p.Status = status
	s.log.WithFields(fields).WithField("user_id", p.UserID).Info("payment settled")
	payload := map[string]interface{}{
		"payment_id": p.ID, "user_id": p.UserID, "merchant_order_id": p.MerchantOrderID,
		"amount": p.Amount.String(), "currency": p.Currency, "credits": p.Credits,
	}
	if status == domain.PaymentStatusPaid {
		metrics.CreditAdjustmentsTotal.WithLabelValues(domain.ReasonPurchase).Inc()
		s.notifier.PaymentPaid(ctx, p, balance)
		s.publish(ctx, domain.EventPaymentPaid, payload)
		s.referrals.announce(ctx, commission)
	} else {
		s.notifier.PaymentFailed(ctx, p)
		s.publish(ctx, domain.EventPaymentFailed, payload)
	}
	return res, nil
}

func (s *PaymentService) GetByMerchantOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := s.payments.GetByMerchantOrderID(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrUnknownPayment
		}
		return nil, repository.StoreErr(err)
	}
	return p, nil
}

func (s *PaymentService) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.log.WithError(err).WithField("event", key).Warn("event publish failed")
	}
}
