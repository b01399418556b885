package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"englishmastery/internal/config"
	"englishmastery/internal/service"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, fields map[string]any) error
}

// Scheduler only enqueues; the worker performs the refresh.
type Scheduler struct {
	cron     *cron.Cron
	queue    Enqueuer
	schedule string
	log      zerolog.Logger
}

func NewScheduler(queue Enqueuer, cfg config.DailyConfig, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		queue:    queue,
		schedule: cfg.Schedule,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil || s.schedule == "" {
		s.log.Info().Msg("daily refresh schedule disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.schedule, s.enqueueDailyRefresh); err != nil {
		return fmt.Errorf("schedule daily refresh %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("scheduler started")
	return nil
}

// Stop waits up to five seconds for running jobs.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueDailyRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.queue.Enqueue(ctx, service.TaskDailyRefresh, map[string]any{
		"requestedBy": "scheduler",
	})
	if err != nil {
		s.log.Error().Err(err).Msg("enqueue daily refresh failed")
	}
}
