package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"creditbot/internal/models"
	"creditbot/internal/repository"
	"creditbot/internal/testutil"
	"creditbot/pkg/events"
	"creditbot/pkg/payment"
	"creditbot/pkg/retry"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testShopID = "42"
	testToken  = "secret"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(req payment.PaymentRequest) (*payment.PaymentResponse, error)
}

func (f *fakeProvider) InitiatePayment(_ context.Context, req payment.PaymentRequest) (*payment.PaymentResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return &payment.PaymentResponse{RedirectURL: "https://pay.example/" + req.OrderID}, nil
}

type env struct {
	db          *gorm.DB
	users       *repository.UserRepository
	payments    *repository.PaymentRepository
	tasks       *repository.TaskRepository
	credits     *repository.CreditRepository
	referralsDB *repository.ReferralRepository
	ledger      *LedgerService
	taskSvc     *TaskService
	paymentSvc  *PaymentService
	referralSvc *ReferralService
	withdrawals *WithdrawalService
	userSvc     *UserService
	messenger   *Recorder
	events      *events.Recorder
	provider    *fakeProvider
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.NewDB(t)
	log := testutil.Logger()
	policy := retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	tx := NewTxRunner(db, policy, 0, log)

	e := &env{
		db:          db,
		users:       repository.NewUserRepository(db),
		payments:    repository.NewPaymentRepository(db),
		tasks:       repository.NewTaskRepository(db),
		credits:     repository.NewCreditRepository(db),
		referralsDB: repository.NewReferralRepository(db),
		messenger:   &Recorder{},
		events:      &events.Recorder{},
		provider:    &fakeProvider{},
	}
	withdrawalsRepo := repository.NewWithdrawalRepository(db)
	notifier := NewNotificationService(e.messenger, log)
	e.ledger = NewLedgerService(tx, e.users, e.credits, log)
	e.taskSvc = NewTaskService(tx, e.users, e.tasks, e.ledger, notifier, nil, e.events, 24*time.Hour, log)
	e.referralSvc = NewReferralService(tx, e.users, e.payments, e.referralsDB, withdrawalsRepo, notifier, e.events,
		decimal.RequireFromString("0.5"), log)
	e.paymentSvc = NewPaymentService(tx, e.payments, e.users, e.ledger, e.referralSvc, e.provider, notifier, e.events,
		GatewayConfig{ShopID: testShopID, Token: testToken, WebhookURL: "https://bot.example/rukassa/webhook"}, policy, log)
	e.withdrawals = NewWithdrawalService(tx, e.users, withdrawalsRepo, notifier, decimal.NewFromInt(100), log)
	e.userSvc = NewUserService(e.users, log)
	return e
}

func (e *env) createUser(t *testing.T, id, credits int64) *models.User {
	t.Helper()
	u := &models.User{ID: id, Username: "user", Credits: credits, AcceptedRules: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) user(t *testing.T, id int64) *models.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func signedWebhook(merchantOrderID, amount, orderID, status string) PaymentWebhook {
	return PaymentWebhook{
		ShopID:          testShopID,
		Amount:          amount,
		OrderID:         orderID,
		PaymentStatus:   status,
		MerchantOrderID: merchantOrderID,
		Sign:            payment.Sign(testShopID, amount, orderID, testToken),
	}
}
