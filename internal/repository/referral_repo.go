package repository

import (
	"context"

	"creditbot/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) WithTx(tx *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: tx}
}

// InsertOnce inserts the commission row unless one exists for the payment.
// It reports whether this call inserted it.
func (r *ReferralRepository) InsertOnce(ctx context.Context, rt *models.ReferralTransaction) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "payment_id"}}, DoNothing: true}).
		Create(rt)
	if res.Error != nil {
		if IsDuplicateKey(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ReferralRepository) CountByPayment(ctx context.Context, paymentID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.ReferralTransaction{}).
		Where("payment_id = ?", paymentID).Count(&n).Error
	return n, err
}

func (r *ReferralRepository) SumByReferrer(ctx context.Context, referrerID int64) (decimal.Decimal, error) {
	var row struct{ Total decimal.NullDecimal }
	err := r.db.WithContext(ctx).Model(&models.ReferralTransaction{}).
		Select("SUM(amount) AS total").Where("referrer_id = ?", referrerID).Scan(&row).Error
	if err != nil || !row.Total.Valid {
		return decimal.Zero, err
	}
	return row.Total.Decimal, nil
}
