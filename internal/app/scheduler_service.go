package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/config"
	"github.com/dokzlo13/irlightd/internal/ledger"
	"github.com/dokzlo13/irlightd/internal/scheduler"
)

// SchedulerService wraps the scheduler and related periodic tasks.
type SchedulerService struct {
	cfg       *config.Config
	Scheduler *scheduler.Scheduler
	ledger    *ledger.Ledger
}

// NewSchedulerService builds schedules from the config and wires them to the
// command sink.
func NewSchedulerService(cfg *config.Config, sink scheduler.CommandSink, l *ledger.Ledger) (*SchedulerService, error) {
	schedules := make([]scheduler.Schedule, 0, len(cfg.Schedules))
	for _, sc := range cfg.Schedules {
		sched, err := scheduler.NewSchedule(sc.Light, sc.At, sc.State, sc.Step)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule for light %s: %w", sc.Light, err)
		}
		schedules = append(schedules, sched)
	}

	return &SchedulerService{
		cfg:       cfg,
		Scheduler: scheduler.New(sink, schedules, cfg.Timezone),
		ledger:    l,
	}, nil
}

// Start begins the scheduler and related periodic tasks.
func (s *SchedulerService) Start(ctx context.Context) {
	go func() {
		if err := s.Scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduler error")
		}
	}()

	// Ledger cleanup (if the ledger is enabled)
	if s.ledger != nil {
		go s.runLedgerCleanup(ctx)
	}
}

// runLedgerCleanup periodically cleans up old ledger entries.
func (s *SchedulerService) runLedgerCleanup(ctx context.Context) {
	retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
	interval := s.cfg.Ledger.CleanupInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.ledger.DeleteOlderThan(retention)
			if err != nil {
				log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
			} else if deleted > 0 {
				log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
			}
		}
	}
}
