package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper drops idle sessions; authgate.Service implements it.
type Sweeper interface {
	SweepIdle(ctx context.Context) error
}

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	log     *zap.Logger
}

// NewScheduler takes a six-field cron spec (seconds first).
func NewScheduler(sweeper Sweeper, spec string, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		sweeper: sweeper,
		spec:    spec,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if s.sweeper == nil || s.spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("scheduler started", zap.String("sweep", s.spec))
	return nil
}

// Stop waits for a running sweep, at most five seconds.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.sweeper.SweepIdle(ctx); err != nil {
		s.log.Error("idle session sweep failed", zap.Error(err))
	}
}
