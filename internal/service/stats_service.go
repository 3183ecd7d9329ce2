package service

import (
	"context"

	"creditbot/internal/domain"
	"creditbot/internal/repository"

	"github.com/shopspring/decimal"
)

type Stats struct {
	Users              int64            `json:"users"`
	UsersWithCredits   int64            `json:"users_with_credits"`
	CreditsOutstanding int64            `json:"credits_outstanding"`
	PaidPayments       int64            `json:"paid_payments"`
	PayingUsers        int64            `json:"paying_users"`
	RevenueRUB         decimal.Decimal  `json:"revenue_rub"`
	TasksByStatus      map[string]int64 `json:"tasks_by_status"`
}

// StatsService aggregates the admin dashboard numbers.
type StatsService struct {
	users    *repository.UserRepository
	payments *repository.PaymentRepository
	tasks    *repository.TaskRepository
}

func NewStatsService(users *repository.UserRepository, payments *repository.PaymentRepository, tasks *repository.TaskRepository) *StatsService {
	return &StatsService{users: users, payments: payments, tasks: tasks}
}

func (s *StatsService) Collect(ctx context.Context) (*Stats, error) {
	us, err := s.users.Stats(ctx)
	if err != nil {
		return nil, repository.StoreErr(err)
	}
	st := &Stats{Users: us.Users, UsersWithCredits: us.UsersWithCredits, CreditsOutstanding: us.CreditsOutstanding}
	if st.PaidPayments, st.PayingUsers, err = s.payments.CountPaid(ctx); err != nil {
		return nil, repository.StoreErr(err)
	}
	byCurrency, err := s.payments.PaidAmountsByCurrency(ctx)
	if err != nil {
		return nil, repository.StoreErr(err)
	}
	st.RevenueRUB = decimal.Zero
	for code, total := range byCurrency {
		rub, err := domain.ToRUB(total, code)
		if err != nil {
			continue
		}
		st.RevenueRUB = st.RevenueRUB.Add(rub)
	}
	if st.TasksByStatus, err = s.tasks.CountByStatus(ctx); err != nil {
		return nil, repository.StoreErr(err)
	}
	return st, nil
}
