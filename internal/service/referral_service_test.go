package service

import (
	"context"
	"testing"

	"creditbot/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLinkReferral(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 0)
	e.createUser(t, 2, 0)
	e.createUser(t, 3, 0)

	require.ErrorIs(t, e.referralSvc.LinkReferral(ctx, 1, 1), domain.ErrSelfReferral)
	require.ErrorIs(t, e.referralSvc.LinkReferral(ctx, 1, 404), domain.ErrUnknownReferrer)
	require.NoError(t, e.referralSvc.LinkReferral(ctx, 1, 2))
	require.ErrorIs(t, e.referralSvc.LinkReferral(ctx, 1, 3), domain.ErrReferrerAlreadySet)

	u := e.user(t, 1)
	require.NotNil(t, u.ReferrerID)
	require.EqualValues(t, 2, *u.ReferrerID)
}

func TestProcessCommissionRequiresPaidPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 2, 0)
	e.createUser(t, 1, 0)
	require.NoError(t, e.referralSvc.LinkReferral(ctx, 1, 2))
	p := e.pendingPayment(t, 1, "1_10", 300, 3)

	_, err := e.referralSvc.ProcessCommission(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrPaymentNotPaid)
	_, err = e.referralSvc.ProcessCommission(ctx, 9999)
	require.ErrorIs(t, err, domain.ErrUnknownPayment)
}

func TestProcessCommissionExactlyOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 2, 0)
	e.createUser(t, 1, 0)
	require.NoError(t, e.referralSvc.LinkReferral(ctx, 1, 2))
	p := e.pendingPayment(t, 1, "1_11", 1200, 15)
	require.NoError(t, e.db.Model(p).Update("status", domain.PaymentStatusPaid).Error)

	c, err := e.referralSvc.ProcessCommission(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	require.True(t, decimal.NewFromInt(600).Equal(c.Amount))

	again, err := e.referralSvc.ProcessCommission(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, again)
	require.True(t, decimal.NewFromInt(600).Equal(e.user(t, 2).ReferralEarnings))
}

func TestProcessCommissionWithoutReferrer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 1, 0)
	p := e.pendingPayment(t, 1, "1_12", 300, 3)
	require.NoError(t, e.db.Model(p).Update("status", domain.PaymentStatusPaid).Error)

	c, err := e.referralSvc.ProcessCommission(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, c)
	n, err := e.referralsDB.CountByPayment(ctx, p.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReferralStats(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 2, 0)
	e.createUser(t, 1, 0)
	e.createUser(t, 3, 0)
	require.NoError(t, e.referralSvc.LinkReferral(ctx, 1, 2))
	require.NoError(t, e.referralSvc.LinkReferral(ctx, 3, 2))
	e.pendingPayment(t, 1, "1_20", 300, 3)
	_, err := e.paymentSvc.ApplyWebhook(ctx, signedWebhook("1_20", "300", "1", "paid"))
	require.NoError(t, err)

	st, err := e.referralSvc.Stats(ctx, 2)
	require.NoError(t, err)
	require.EqualValues(t, 2, st.Referrals)
	require.True(t, decimal.NewFromInt(150).Equal(st.Earnings))
	require.True(t, decimal.NewFromInt(150).Equal(st.TotalEarned))
	require.True(t, st.Withdrawn.IsZero())
	require.Equal(t, domain.ReferralCode(2), st.Code)
}
