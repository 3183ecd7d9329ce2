package models

import "time"

// ProcessingTask correlates an outbound processing request with its callback.
type ProcessingTask struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	TaskID      string     `gorm:"size:128;not null;uniqueIndex" json:"task_id"`
	UserID      int64      `gorm:"not null;index" json:"user_id"`
	Status      string     `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed
	Detail      string     `gorm:"size:512" json:"detail"`
	ResultURL   string     `gorm:"size:512" json:"result_url"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

func (ProcessingTask) TableName() string {
	return "processing_tasks"
}
