package repository

import (
	"errors"
	"fmt"

	"creditbot/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// StoreErr passes domain errors through and wraps every other storage failure as
// domain.ErrLedgerUnavailable so callers can retry it.
func StoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || isDomainErr(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrLedgerUnavailable, err)
}

func isDomainErr(err error) bool {
	return domain.IsUserRecoverable(err) || domain.IsRetryable(err) ||
		errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrTaskNotFound) ||
		errors.Is(err, domain.ErrUnknownPayment) || errors.Is(err, domain.ErrInvalidSignature) ||
		errors.Is(err, domain.ErrPaymentNotPaid) || errors.Is(err, domain.ErrWithdrawalNotFound) ||
		errors.Is(err, domain.ErrWithdrawalProcessed) || errors.Is(err, domain.ErrMalformedWebhook)
}

// IsDuplicateKey reports a unique constraint violation.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
