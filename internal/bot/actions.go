package bot

import (
	"fmt"
	"strconv"
	"strings"

	"creditbot/internal/domain"
)

// Action is a decoded inline keyboard callback. The set is closed: ParseAction is the
// only constructor and dispatch is a type switch.
type Action interface {
	action()
}

type (
	ProcessPhoto     struct{}
	BuyCredits       struct{}
	CheckBalance     struct{}
	ShowReferrals    struct{}
	AcceptRules      struct{}
	ViewRules        struct{}
	Withdraw         struct{}
	CancelProcessing struct{}
	Back             struct{}

	SelectCurrency struct {
		Currency string
	}
	BuyPackage struct {
		PackageID int
		Currency  string
	}
)

func (ProcessPhoto) action()     {}
func (BuyCredits) action()       {}
func (CheckBalance) action()     {}
func (ShowReferrals) action()    {}
func (AcceptRules) action()      {}
func (ViewRules) action()        {}
func (Withdraw) action()         {}
func (CancelProcessing) action() {}
func (Back) action()             {}
func (SelectCurrency) action()   {}
func (BuyPackage) action()       {}

var simpleActions = map[string]Action{
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

// ParseAction decodes callback data. Unknown strings and unknown catalogue entries are
// rejected.
func ParseAction(data string) (Action, error) {
	if a, ok := simpleActions[data]; ok {
		return a, nil
	}
	switch {
	case strings.HasPrefix(data, domain.ActionCurrencyPrefix):
		code := strings.TrimPrefix(data, domain.ActionCurrencyPrefix)
		if _, err := domain.FindCurrency(code); err != nil {
			return nil, err
		}
		return SelectCurrency{Currency: code}, nil
	case strings.HasPrefix(data, domain.ActionBuyPrefix):
		// buy_<packageID>_<CODE>; the code itself may contain underscores (RUB_SBP).
		rest := strings.TrimPrefix(data, domain.ActionBuyPrefix)
		idPart, code, ok := strings.Cut(rest, "_")
		if !ok {
			return nil, fmt.Errorf("malformed action %q", data)
		}
		id, err := strconv.Atoi(idPart)
		if err != nil {
			return nil, fmt.Errorf("malformed action %q", data)
		}
		if _, err := domain.FindPackage(id); err != nil {
			return nil, err
		}
		if _, err := domain.FindCurrency(code); err != nil {
			return nil, err
		}
		return BuyPackage{PackageID: id, Currency: code}, nil
	}
	return nil, fmt.Errorf("unknown action %q", data)
}

// Data encodes a parameterised action back into callback data.
func (a SelectCurrency) Data() string { return domain.ActionCurrencyPrefix + a.Currency }

func (a BuyPackage) Data() string {
	return fmt.Sprintf("%s%d_%s", domain.ActionBuyPrefix, a.PackageID, a.Currency)
}
