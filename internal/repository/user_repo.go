package repository

import (
	"context"
	"time"

	"creditbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LockByID reads the user row with SELECT ... FOR UPDATE. Only meaningful inside a transaction.
func (r *UserRepository) LockByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&u, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetCredits is a compare-and-swap on the balance. It reports whether the row changed.
func (r *UserRepository) SetCredits(ctx context.Context, id, expected, next int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credits = ?", id, expected).
		Updates(map[string]interface{}{"credits": next, "updated_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (r *UserRepository) Updates(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error
}

// ClearPendingTask clears the marker only if it still points at taskID.
func (r *UserRepository) ClearPendingTask(ctx context.Context, userID int64, taskID string) error {
	return r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND pending_task_id = ?", userID, taskID).
		Update("pending_task_id", nil).Error
}

// SetReferrer sets referrer_id only while it is still null.
func (r *UserRepository) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND referrer_id IS NULL", userID).
		Update("referrer_id", referrerID)
	return res.RowsAffected == 1, res.Error
}

func (r *UserRepository) CountReferrals(ctx context.Context, referrerID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("referrer_id = ?", referrerID).Count(&n).Error
	return n, err
}

type UserStats struct {
	Users              int64
	UsersWithCredits   int64
	CreditsOutstanding int64
}

func (r *UserRepository) Stats(ctx context.Context) (UserStats, error) {
	var s UserStats
	db := r.db.WithContext(ctx).Model(&models.User{})
	if err := db.Count(&s.Users).Error; err != nil {
		return s, err
	}
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("credits > 0").Count(&s.UsersWithCredits).Error; err != nil {
		return s, err
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).Select("COALESCE(SUM(credits), 0)").Scan(&s.CreditsOutstanding).Error
	return s, err
}
