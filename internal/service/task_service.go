package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/metrics"
	"creditbot/internal/models"
	"creditbot/internal/repository"
	"creditbot/pkg/cloudinary"
	"creditbot/pkg/events"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Outcome int

const (
	OutcomeSuccess Outcome = iota + 1
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	}
	return "unknown"
}

// CompleteResult reports what a CompleteTask call did. Applied is false for replays.
type CompleteResult struct {
	Applied  bool
	UserID   int64
	Refunded bool
	Balance  int64
}

// TaskCallback is a decoded processing webhook.
type TaskCallback struct {
	TaskID   string
	Status   string
	Message  string
	Message2 string
	Result   []byte
}

// Outcome classifies the callback. Failure markers win over a result; ok is false when
// the callback carries neither.
func (c TaskCallback) Outcome() (Outcome, bool) {
	if c.Status == "500" || c.Message != "" || c.Message2 != "" {
		return OutcomeFailure, true
	}
	if len(c.Result) > 0 {
		return OutcomeSuccess, true
	}
	return 0, false
}

func (c TaskCallback) Reason() string {
	if c.Message != "" {
		return c.Message
	}
	if c.Message2 != "" {
		return c.Message2
	}
	if c.Status != "" {
		return "provider status " + c.Status
	}
	return ""
}

// PolicyRejected reports a content policy refusal by the provider.
func (c TaskCallback) PolicyRejected() bool {
	for _, m := range []string{c.Message, c.Message2} {
		if strings.Contains(strings.ToLower(m), "age is too young") {
			return true
		}
	}
	return false
}

type TaskService struct {
	tx        TxRunner
	users     *repository.UserRepository
	tasks     *repository.TaskRepository
	ledger    *LedgerService
	notifier  *NotificationService
	archiver  cloudinary.Archiver
	publisher events.Publisher
	timeout   time.Duration
	log       *logrus.Logger
}

func NewTaskService(
	tx TxRunner,
	users *repository.UserRepository,
	tasks *repository.TaskRepository,
	ledger *LedgerService,
	notifier *NotificationService,
	archiver cloudinary.Archiver,
	publisher events.Publisher,
	timeout time.Duration,
	log *logrus.Logger,
) *TaskService {
	if archiver == nil {
		archiver = cloudinary.Nop{}
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &TaskService{
		tx: tx, users: users, tasks: tasks, ledger: ledger, notifier: notifier,
		archiver: archiver, publisher: publisher, timeout: timeout, log: log,
	}
}

// BeginTask reserves the user's single task slot and debits one credit. The task row,
// the pending marker and the debit commit together or not at all.
func (s *TaskService) BeginTask(ctx context.Context, userID int64) (string, error) {
	var taskID string
	err := s.tx.run(ctx, "begin_task", func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		u, err := users.LockByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if u.HasPendingTask() {
			return domain.ErrTaskAlreadyPending
		}
		if u.Credits < domain.CreditsPerTask {
			return domain.ErrInsufficientCredits
		}
		taskID = fmt.Sprintf("user_%d_%d", userID, time.Now().UnixNano())
		if err := s.tasks.WithTx(tx).Create(ctx, &models.ProcessingTask{
			TaskID: taskID,
			UserID: userID,
			Status: domain.TaskStatusPending,
		}); err != nil {
			return err
		}
		now := time.Now()
		if err := users.Updates(ctx, userID, map[string]interface{}{
			"pending_task_id": taskID,
			"last_used_at":    now,
		}); err != nil {
			return err
		}
		_, err = s.ledger.ApplyTx(ctx, tx, userID, -domain.CreditsPerTask, domain.ReasonTaskDebit, taskID)
		return err
	})
	if err != nil {
		return "", err
	}
	metrics.CreditAdjustmentsTotal.WithLabelValues(domain.ReasonTaskDebit).Inc()
	s.log.WithFields(logrus.Fields{"user_id": userID, "task_id": taskID}).Info("task started")
	return taskID, nil
}

// ResolveTask returns the owner of taskID.
func (s *TaskService) ResolveTask(ctx context.Context, taskID string) (int64, error) {
	t, err := s.tasks.GetByTaskID(ctx, taskID)
	if err != nil {
		if repository.IsNotFound(err) {
			return 0, domain.ErrTaskNotFound
		}
		return 0, repository.StoreErr(err)
	}
	return t.UserID, nil
}

// CompleteTask moves a pending task to its terminal state, clears the user's marker and
// refunds on failure. Calls for an already terminal task change nothing.
func (s *TaskService) CompleteTask(ctx context.Context, taskID string, outcome Outcome, detail string) (CompleteResult, error) {
	var res CompleteResult
	err := s.tx.run(ctx, "complete_task", func(tx *gorm.DB) error {
		res = CompleteResult{}
		tasks := s.tasks.WithTx(tx)
		t, err := tasks.LockByTaskID(ctx, taskID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domain.ErrTaskNotFound
			}
			return err
		}
		res.UserID = t.UserID
		if t.Status != domain.TaskStatusPending {
			return nil
		}
		status := domain.TaskStatusCompleted
		if outcome == OutcomeFailure {
			status = domain.TaskStatusFailed
		}
		changed, err := tasks.Finish(ctx, taskID, status, detail)
		if err != nil || !changed {
			return err
		}
		if err := s.users.WithTx(tx).ClearPendingTask(ctx, t.UserID, taskID); err != nil {
			return err
		}
		if outcome == OutcomeFailure {
			balance, err := s.ledger.ApplyTx(ctx, tx, t.UserID, domain.CreditsPerTask, domain.ReasonTaskRefund, taskID)
			if err != nil {
				return err
			}
			res.Refunded = true
			res.Balance = balance
		}
		res.Applied = true
		return nil
	})
	if err != nil {
		return CompleteResult{}, err
	}
	fields := logrus.Fields{"task_id": taskID, "user_id": res.UserID, "outcome": outcome.String()}
	if !res.Applied {
		s.log.WithFields(fields).Info("task already resolved, ignoring")
		return res, nil
	}
	if res.Refunded {
		metrics.CreditAdjustmentsTotal.WithLabelValues(domain.ReasonTaskRefund).Inc()
	}
	s.log.WithFields(fields).Info("task resolved")
	key := domain.EventTaskCompleted
	if outcome == OutcomeFailure {
		key = domain.EventTaskFailed
	}
	s.publish(ctx, key, map[string]interface{}{"task_id": taskID, "user_id": res.UserID, "detail": detail})
	return res, nil
}

// ApplyCallback resolves a processing webhook. Unknown and already resolved tasks are
// acknowledged without effect; only the call that applies the transition notifies.
func (s *TaskService) ApplyCallback(ctx context.Context, cb TaskCallback) (CompleteResult, error) {
	outcome, ok := cb.Outcome()
	if !ok {
		s.log.WithField("task_id", cb.TaskID).Info("callback carries no result, ignoring")
		return CompleteResult{}, nil
	}
	res, err := s.CompleteTask(ctx, cb.TaskID, outcome, cb.Reason())
	if errors.Is(err, domain.ErrTaskNotFound) {
		s.log.WithField("task_id", cb.TaskID).Info("callback for unknown task, ignoring")
		return CompleteResult{}, nil
	}
	if err != nil || !res.Applied {
		return res, err
	}
	if outcome == OutcomeFailure {
		s.notifier.TaskFailed(ctx, res.UserID, cb.Reason(), cb.PolicyRejected())
		return res, nil
	}
	s.notifier.TaskSucceeded(ctx, res.UserID, cb.Result)
	s.archive(ctx, cb.TaskID, cb.Result)
	return res, nil
}

func (s *TaskService) archive(ctx context.Context, taskID string, image []byte) {
	url, err := s.archiver.Archive(ctx, image, taskID)
	if err != nil {
		s.log.WithError(err).WithField("task_id", taskID).Warn("result archive failed")
		return
	}
	if url == "" {
		return
	}
	if err := s.tasks.SetResultURL(ctx, taskID, url); err != nil {
		s.log.WithError(err).WithField("task_id", taskID).Warn("result url not saved")
	}
}

// CancelTask fails the user's pending task and refunds it. It reports whether a task
// was canceled.
func (s *TaskService) CancelTask(ctx context.Context, userID int64) (bool, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return false, domain.ErrUserNotFound
		}
		return false, repository.StoreErr(err)
	}
	if !u.HasPendingTask() {
		return false, nil
	}
	taskID := *u.PendingTaskID
	res, err := s.CompleteTask(ctx, taskID, OutcomeFailure, "canceled by user")
	if errors.Is(err, domain.ErrTaskNotFound) {
		// Marker without a task row: drop the marker, nothing was recorded to refund.
		return false, repository.StoreErr(s.users.ClearPendingTask(ctx, userID, taskID))
	}
	return res.Applied, err
}

// SweepStale fails and refunds pending tasks older than the timeout. It returns how
// many tasks it resolved.
func (s *TaskService) SweepStale(ctx context.Context, now time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	ids, err := s.tasks.ListStale(ctx, now.Add(-s.timeout), batch)
	if err != nil {
		return 0, repository.StoreErr(err)
	}
	swept := 0
	for _, id := range ids {
		res, err := s.CompleteTask(ctx, id, OutcomeFailure, "timed out waiting for result")
		if err != nil {
			s.log.WithError(err).WithField("task_id", id).Error("stale task sweep failed")
			continue
		}
		if res.Applied {
			swept++
			metrics.TasksSweptTotal.Inc()
			s.notifier.TaskExpired(ctx, res.UserID)
		}
	}
	if swept > 0 {
		s.log.WithField("count", swept).Info("stale tasks swept")
	}
	return swept, nil
}

func (s *TaskService) publish(ctx context.Context, key string, payload interface{}) {
	if err := s.publisher.Publish(ctx, key, payload); err != nil {
		s.log.WithError(err).WithField("event", key).Warn("event publish failed")
	}
}
