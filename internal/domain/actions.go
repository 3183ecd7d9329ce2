package domain

// Callback data carried by inline keyboard buttons.
const (
	ActionProcessPhoto     = "action_process_photo"
	ActionBuyCredits       = "action_buy_credits"
	ActionCheckBalance     = "action_check_balance"
	ActionReferrals        = "action_referrals"
	ActionAcceptRules      = "action_accept_rules"
	ActionViewRules        = "action_view_rules"
	ActionWithdraw         = "action_withdraw"
	ActionCancelProcessing = "action_cancel_processing"
	ActionBack             = "action_back"

	// Parameterised actions: "currency_<CODE>" and "buy_<packageID>_<CODE>".
	ActionCurrencyPrefix = "currency_"
	ActionBuyPrefix      = "buy_"
)
