package bot

import (
	"testing"

	"creditbot/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestParseAction_Simple(t *testing.T) {
	cases := map[string]Action{
		domain.ActionProcessPhoto:     ProcessPhoto{},
		domain.ActionBuyCredits:       BuyCredits{},
		domain.ActionCheckBalance:     CheckBalance{},
		domain.ActionReferrals:        ShowReferrals{},
		domain.ActionAcceptRules:      AcceptRules{},
		domain.ActionViewRules:        ViewRules{},
		domain.ActionWithdraw:         Withdraw{},
		domain.ActionCancelProcessing: CancelProcessing{},
		domain.ActionBack:             Back{},
	}
	for data, want := range cases {
		got, err := ParseAction(data)
		require.NoError(t, err, data)
		require.Equal(t, want, got, data)
	}
}

func TestParseAction_Parameterised(t *testing.T) {
	a, err := ParseAction("currency_KZT")
	require.NoError(t, err)
	require.Equal(t, SelectCurrency{Currency: "KZT"}, a)

	a, err = ParseAction("buy_2_RUB_SBP")
	require.NoError(t, err)
	require.Equal(t, BuyPackage{PackageID: 2, Currency: "RUB_SBP"}, a)
}

func TestParseAction_RoundTrip(t *testing.T) {
	for _, c := range domain.Currencies {
		sel := SelectCurrency{Currency: c.Code}
		got, err := ParseAction(sel.Data())
		require.NoError(t, err)
		require.Equal(t, sel, got)
		for _, p := range domain.Packages {
			buy := BuyPackage{PackageID: p.ID, Currency: c.Code}
			got, err := ParseAction(buy.Data())
			require.NoError(t, err)
			require.Equal(t, buy, got)
		}
	}
}

func TestParseAction_Rejects(t *testing.T) {
	for _, data := range []string{"", "action_unknown", "currency_EUR", "buy_9_RUB", "buy_x_RUB", "buy_1", "buy_1_EUR"} {
		_, err := ParseAction(data)
		require.Error(t, err, data)
	}
	_, err := ParseAction("buy_9_RUB")
	require.ErrorIs(t, err, domain.ErrUnknownPackage)
	_, err = ParseAction("currency_EUR")
	require.ErrorIs(t, err, domain.ErrUnsupportedCurrency)
}
