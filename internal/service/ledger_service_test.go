package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/testutil"
	"creditbot/pkg/retry"

	"github.com/stretchr/testify/require"
)

func TestAdjustCreditsWritesAudit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 0)

	balance, err := e.ledger.AdjustCredits(ctx, 1, 5, domain.ReasonAdmin, "grant")
	require.NoError(t, err)
	require.EqualValues(t, 5, balance)

	balance, err = e.ledger.AdjustCredits(ctx, 1, -2, domain.ReasonAdmin, "take")
	require.NoError(t, err)
	require.EqualValues(t, 3, balance)

	history, err := e.ledger.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.EqualValues(t, -2, history[0].Delta)
	require.EqualValues(t, 3, history[0].BalanceAfter)
	require.EqualValues(t, 5, history[1].BalanceAfter)
}

func TestAdjustCreditsRejectsOverdraft(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 1)

	_, err := e.ledger.AdjustCredits(ctx, 1, -2, domain.ReasonAdmin, "")
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	balance, err := e.ledger.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, balance)

	history, err := e.ledger.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestAdjustCreditsUnknownUser(t *testing.T) {
	e := newEnv(t)
	_, err := e.ledger.AdjustCredits(context.Background(), 99, 1, domain.ReasonAdmin, "")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAdjustCreditsPoolExhaustedIsRetryable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 4)

	// The pool has one connection; an open transaction holds it.
	hold := e.db.Begin()
	require.NoError(t, hold.Error)
	var n int64
	require.NoError(t, hold.Raw("SELECT 1").Scan(&n).Error)

	log := testutil.Logger()
	policy := retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}
	ledger := NewLedgerService(NewTxRunner(e.db, policy, 50*time.Millisecond, log), e.users, e.credits, log)

	_, err := ledger.AdjustCredits(ctx, 1, -1, domain.ReasonAdmin, "")
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
	require.True(t, domain.IsRetryable(err))

	require.NoError(t, hold.Rollback().Error)
	balance, err := e.ledger.GetBalance(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 4, balance)
}

func TestConcurrentAdjustmentsNeverGoNegative(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 10)

	deltas := []int64{-3, -3, -3, -3, -3, 2, 2, -1, -1, -1, -1, -1, 4, -3, -3, -3}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int64
		errs    []error
	)
	for _, d := range deltas {
		wg.Add(1)
		go func(d int64) {
			defer wg.Done()
			_, err := e.ledger.AdjustCredits(ctx, 1, d, domain.ReasonAdmin, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				applied += d
				return
			}
			errs = append(errs, err)
		}(d)
	}
	wg.Wait()

	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrInsufficientCredits)
	}

	u := e.user(t, 1)
	require.GreaterOrEqual(t, u.Credits, int64(0))
	require.Equal(t, 10+applied, u.Credits)

	history, err := e.ledger.History(ctx, 1, 100)
	require.NoError(t, err)
	var sum int64
	for _, h := range history {
		require.GreaterOrEqual(t, h.BalanceAfter, int64(0))
		sum += h.Delta
	}
	require.Equal(t, applied, sum)
}
