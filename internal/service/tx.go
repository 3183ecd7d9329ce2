package service

import (
	"context"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/metrics"
	"creditbot/internal/repository"
	"creditbot/pkg/retry"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TxRunner runs a multi-step mutation as one transaction, retrying transient store
// failures. fn may run more than once and must not leak state between attempts.
type TxRunner struct {
	db      *gorm.DB
	policy  retry.Policy
	timeout time.Duration
	log     *logrus.Logger
}

func NewTxRunner(db *gorm.DB, policy retry.Policy, timeout time.Duration, log *logrus.Logger) TxRunner {
	return TxRunner{db: db, policy: policy, timeout: timeout, log: log}
}

func (r TxRunner) run(ctx context.Context, name string, fn func(tx *gorm.DB) error) error {
	attempt := 0
	err := r.policy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			metrics.RetriesTotal.WithLabelValues("store").Inc()
		}
		opCtx := ctx
		if r.timeout > 0 {
			var cancel context.CancelFunc
			opCtx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return repository.StoreErr(r.db.WithContext(opCtx).Transaction(fn))
	}, domain.IsRetryable)
	if err != nil && domain.IsRetryable(err) {
		r.log.WithError(err).WithFields(logrus.Fields{"op": name, "attempts": attempt}).Error("store retries exhausted")
	}
	return err
}
