package domain

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusCanceled = "canceled"
)

const (
	ReferralTxStatusCredited = "credited"
)

const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// Credit ledger audit reasons.
const (
	ReasonTaskDebit  = "task_debit"
	ReasonTaskRefund = "task_refund"
	ReasonPurchase   = "purchase"
	ReasonAdmin      = "admin"
)

const RoleAdmin = "ADMIN"

// CreditsPerTask is what one processing submission costs.
const CreditsPerTask = 1

// Event routing keys published after commit.
const (
	EventPaymentPaid        = "payment.paid"
	EventPaymentFailed      = "payment.failed"
	EventTaskCompleted      = "task.completed"
	EventTaskFailed         = "task.failed"
	EventReferralCommission = "referral.commission"
)
