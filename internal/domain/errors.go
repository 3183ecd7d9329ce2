package domain

import (
	"errors"
)

// User-recoverable: the action is aborted and the user is told why.
var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrTaskAlreadyPending  = errors.New("task already pending")
	ErrReferrerAlreadySet  = errors.New("referrer already set")
	ErrSelfReferral        = errors.New("self referral")
	ErrUnknownReferrer     = errors.New("unknown referrer")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrUnknownPackage      = errors.New("unknown package")
	ErrRulesNotAccepted    = errors.New("rules not accepted")
	ErrProcessingBalance   = errors.New("processing provider balance exhausted")
	ErrWithdrawalTooSmall  = errors.New("earnings below minimum withdrawal")
	ErrWithdrawalPending   = errors.New("withdrawal already pending")
)

// Lookups and replays.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTaskNotFound        = errors.New("task not found")
	ErrPaymentNotPaid      = errors.New("payment not paid")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrWithdrawalProcessed = errors.New("withdrawal already processed")
)

// Integrity violations: logged at high severity and rejected.
var (
	ErrUnknownPayment   = errors.New("unknown payment")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrMalformedWebhook = errors.New("malformed webhook")
)

// Transient infrastructure failures, retried with backoff.
var (
	ErrLedgerUnavailable     = errors.New("ledger unavailable")
	ErrGatewayUnavailable    = errors.New("payment gateway unavailable")
	ErrProcessingUnavailable = errors.New("processing api unavailable")
)

var userRecoverable = []error{
	ErrInsufficientCredits, ErrTaskAlreadyPending, ErrReferrerAlreadySet, ErrSelfReferral,
	ErrUnknownReferrer, ErrUnsupportedCurrency, ErrUnknownPackage, ErrRulesNotAccepted,
	ErrProcessingBalance, ErrWithdrawalTooSmall, ErrWithdrawalPending,
}

func IsUserRecoverable(err error) bool {
	for _, target := range userRecoverable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerUnavailable) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.Is(err, ErrProcessingUnavailable)
}

// User-facing vocabulary. Internal detail never leaves the process.
const (
	MsgInsufficientCredits = "You have no credits left. Use /buy to purchase more."
	MsgTaskAlreadyPending  = "Your previous photo is still being processed. Please wait for the result."
	MsgReferrerAlreadySet  = "You already have a referrer."
	MsgSelfReferral        = "You cannot use your own referral link."
	MsgUnknownReferrer     = "This referral link is not valid."
	MsgUnsupportedCurrency = "This payment method is not available."
	MsgUnknownPackage      = "This credit package is not available."
	MsgRulesNotAccepted    = "Please read and accept the rules first."
	MsgProcessingBalance   = "The processing service is temporarily out of capacity. Your credit was returned."
	MsgWithdrawalTooSmall  = "Your earnings are below the minimum withdrawal amount."
	MsgWithdrawalPending   = "You already have a withdrawal request being reviewed."
	MsgGeneric             = "Something went wrong. Please try again later."
)

var userMessages = map[error]string{
	ErrInsufficientCredits: MsgInsufficientCredits,
	ErrTaskAlreadyPending:  MsgTaskAlreadyPending,
	ErrReferrerAlreadySet:  MsgReferrerAlreadySet,
	ErrSelfReferral:        MsgSelfReferral,
	ErrUnknownReferrer:     MsgUnknownReferrer,
	ErrUnsupportedCurrency: MsgUnsupportedCurrency,
	ErrUnknownPackage:      MsgUnknownPackage,
	ErrRulesNotAccepted:    MsgRulesNotAccepted,
	ErrProcessingBalance:   MsgProcessingBalance,
	ErrWithdrawalTooSmall:  MsgWithdrawalTooSmall,
	ErrWithdrawalPending:   MsgWithdrawalPending,
}

// UserMessage translates any error into one of the fixed user-facing messages.
func UserMessage(err error) string {
	for target, msg := range userMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	return MsgGeneric
}
