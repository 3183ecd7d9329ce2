package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"creditbot/internal/domain"
	"creditbot/internal/models"

	"github.com/stretchr/testify/require"
)

func TestBeginTaskDebitsAndMarksPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)

	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(taskID, "user_7_"))

	u := e.user(t, 7)
	require.EqualValues(t, 0, u.Credits)
	require.NotNil(t, u.PendingTaskID)
	require.Equal(t, taskID, *u.PendingTaskID)

	owner, err := e.taskSvc.ResolveTask(ctx, taskID)
	require.NoError(t, err)
	require.EqualValues(t, 7, owner)
}

func TestBeginTaskRejectsSecondTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 5)

	_, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)
	_, err = e.taskSvc.BeginTask(ctx, 7)
	require.ErrorIs(t, err, domain.ErrTaskAlreadyPending)
	require.EqualValues(t, 4, e.user(t, 7).Credits)
}

func TestBeginTaskWithoutCreditsLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 0)

	_, err := e.taskSvc.BeginTask(ctx, 7)
	require.ErrorIs(t, err, domain.ErrInsufficientCredits)

	u := e.user(t, 7)
	require.Nil(t, u.PendingTaskID)
	counts, err := e.tasks.CountByStatus(ctx)
	require.NoError(t, err)
	require.Empty(t, counts)
}

func TestConcurrentBeginTaskOnlyOneWins(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 5)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		won  int
		errs []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.taskSvc.BeginTask(ctx, 7)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				won++
				return
			}
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, won)
	for _, err := range errs {
		require.ErrorIs(t, err, domain.ErrTaskAlreadyPending)
	}
	require.EqualValues(t, 4, e.user(t, 7).Credits)
	counts, err := e.tasks.CountByStatus(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, counts[domain.TaskStatusPending])
}

func TestFailedCallbackRefunds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)

	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)
	require.EqualValues(t, 0, e.user(t, 7).Credits)

	res, err := e.taskSvc.ApplyCallback(ctx, TaskCallback{TaskID: taskID, Status: "500", Message: "face not found"})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, res.Refunded)

	u := e.user(t, 7)
	require.EqualValues(t, 1, u.Credits)
	require.Nil(t, u.PendingTaskID)
	task, err := e.tasks.GetByTaskID(ctx, taskID)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusFailed, task.Status)
	require.Equal(t, "face not found", task.Detail)

	msgs := e.messenger.For(7)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "face not found")
	require.Equal(t, 1, e.events.Count(domain.EventTaskFailed))
}

func TestCallbackReplayIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 2)

	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)

	cb := TaskCallback{TaskID: taskID, Result: []byte("image-bytes")}
	first, err := e.taskSvc.ApplyCallback(ctx, cb)
	require.NoError(t, err)
	require.True(t, first.Applied)
	second, err := e.taskSvc.ApplyCallback(ctx, cb)
	require.NoError(t, err)
	require.False(t, second.Applied)

	// A late failure for the same task must not refund either.
	third, err := e.taskSvc.ApplyCallback(ctx, TaskCallback{TaskID: taskID, Status: "500"})
	require.NoError(t, err)
	require.False(t, third.Applied)

	u := e.user(t, 7)
	require.EqualValues(t, 1, u.Credits)
	require.Nil(t, u.PendingTaskID)
	msgs := e.messenger.For(7)
	require.Len(t, msgs, 1)
	require.Equal(t, []byte("image-bytes"), msgs[0].Image)
	require.Equal(t, 1, e.events.Count(domain.EventTaskCompleted))
}

func TestConcurrentFailureCallbacksRefundOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)
	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.taskSvc.CompleteTask(ctx, taskID, OutcomeFailure, "boom")
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, e.user(t, 7).Credits)
	n, err := e.credits.CountByReference(ctx, domain.ReasonTaskRefund, taskID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCallbackForUnknownTaskIsIgnored(t *testing.T) {
	e := newEnv(t)
	res, err := e.taskSvc.ApplyCallback(context.Background(), TaskCallback{TaskID: "user_1_1", Status: "500"})
	require.NoError(t, err)
	require.False(t, res.Applied)

	_, err = e.taskSvc.CompleteTask(context.Background(), "user_1_1", OutcomeSuccess, "")
	require.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestCallbackWithoutResultIsIgnored(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)
	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)

	res, err := e.taskSvc.ApplyCallback(ctx, TaskCallback{TaskID: taskID})
	require.NoError(t, err)
	require.False(t, res.Applied)
	require.NotNil(t, e.user(t, 7).PendingTaskID)
}

func TestPolicyRejectionMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)
	taskID, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)

	_, err = e.taskSvc.ApplyCallback(ctx, TaskCallback{TaskID: taskID, Message2: "Age is too young"})
	require.NoError(t, err)
	msgs := e.messenger.For(7)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0].Text, "content policy")
}

func TestSweepStaleRefundsOldTasks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)
	e.createUser(t, 8, 1)
	stale, err := e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)
	fresh, err := e.taskSvc.BeginTask(ctx, 8)
	require.NoError(t, err)
	require.NoError(t, e.db.Model(&models.ProcessingTask{}).
		Where("task_id = ?", stale).Update("created_at", time.Now().Add(-25*time.Hour)).Error)

	n, err := e.taskSvc.SweepStale(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	u := e.user(t, 7)
	require.EqualValues(t, 1, u.Credits)
	require.Nil(t, u.PendingTaskID)
	require.NotNil(t, e.user(t, 8).PendingTaskID)
	task, err := e.tasks.GetByTaskID(ctx, fresh)
	require.NoError(t, err)
	require.Equal(t, domain.TaskStatusPending, task.Status)

	n, err = e.taskSvc.SweepStale(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCancelTask(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.createUser(t, 7, 1)

	canceled, err := e.taskSvc.CancelTask(ctx, 7)
	require.NoError(t, err)
	require.False(t, canceled)

	_, err = e.taskSvc.BeginTask(ctx, 7)
	require.NoError(t, err)
	canceled, err = e.taskSvc.CancelTask(ctx, 7)
	require.NoError(t, err)
	require.True(t, canceled)

	u := e.user(t, 7)
	require.EqualValues(t, 1, u.Credits)
	require.Nil(t, u.PendingTaskID)
}

func TestCallbackOutcome(t *testing.T) {
	cases := []struct {
		name string
		cb   TaskCallback
		want Outcome
		ok   bool
	}{
		{"status 500", TaskCallback{Status: "500"}, OutcomeFailure, true},
		{"img message", TaskCallback{Message: "bad"}, OutcomeFailure, true},
		{"failure wins over result", TaskCallback{Message2: "bad", Result: []byte("x")}, OutcomeFailure, true},
		{"result", TaskCallback{Result: []byte("x")}, OutcomeSuccess, true},
		{"empty", TaskCallback{Status: "200"}, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.cb.Outcome()
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}
