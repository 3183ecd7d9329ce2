package repository

import (
	"context"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) WithTx(tx *gorm.DB) *TaskRepository {
	return &TaskRepository{db: tx}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.ProcessingTask) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TaskRepository) GetByTaskID(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	var t models.ProcessingTask
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) LockByTaskID(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	var t models.ProcessingTask
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("task_id = ?", taskID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Finish moves a pending task to a terminal status. It reports whether the row changed.
func (r *TaskRepository) Finish(ctx context.Context, taskID, status, detail string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ProcessingTask{}).
		Where("task_id = ? AND status = ?", taskID, domain.TaskStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"detail":       truncate(detail, 512),
			"completed_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *TaskRepository) SetResultURL(ctx context.Context, taskID, url string) error {
	return r.db.WithContext(ctx).Model(&models.ProcessingTask{}).
		Where("task_id = ?", taskID).Update("result_url", url).Error
}

// ListStale returns pending task ids created before the cutoff, oldest first.
func (r *TaskRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.ProcessingTask{}).
		Where("status = ? AND created_at < ?", domain.TaskStatusPending, before).
		Order("created_at ASC").Limit(limit).
		Pluck("task_id", &ids).Error
	return ids, err
}

func (r *TaskRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		N      int64
	}
	err := r.db.WithContext(ctx).Model(&models.ProcessingTask{}).
		Select("status, COUNT(*) AS n").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
