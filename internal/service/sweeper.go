package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Sweeper periodically resolves processing tasks whose callback never arrived.
type Sweeper struct {
	tasks    *TaskService
	interval time.Duration
	batch    int
	log      *logrus.Logger
}

func NewSweeper(tasks *TaskService, interval time.Duration, batch int, log *logrus.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{tasks: tasks, interval: interval, batch: batch, log: log}
}

// Run blocks until ctx is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.WithField("interval", s.interval.String()).Info("task sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("task sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.tasks.SweepStale(ctx, time.Now(), s.batch); err != nil {
				s.log.WithError(err).Error("task sweep failed")
			}
		}
	}
}
