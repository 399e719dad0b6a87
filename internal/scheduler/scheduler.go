package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// CommandSink accepts synthetic command events for routing.
type CommandSink interface {
	RouteCommand(ev reconcile.CommandEvent) error
}

// Scheduler sleeps until the nearest configured firing point and injects
// the matching commands. Schedules sharing a firing time all fire.
type Scheduler struct {
	schedules []Schedule
	sink      CommandSink
	tz        *time.Location
}

// New creates a scheduler for a static set of schedules
func New(sink CommandSink, schedules []Schedule, timezone string) *Scheduler {
	tz, err := time.LoadLocation(timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", timezone).Msg("Failed to load timezone, using UTC")
		tz = time.UTC
	}

	return &Scheduler{
		schedules: schedules,
		sink:      sink,
		tz:        tz,
	}
}

// Timezone returns the scheduler's timezone
func (s *Scheduler) Timezone() *time.Location {
	return s.tz
}

// Run starts the scheduler loop
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.schedules) == 0 {
		log.Info().Msg("No schedules configured, scheduler idle")
		<-ctx.Done()
		return nil
	}

	log.Info().
		Int("schedules", len(s.schedules)).
		Str("timezone", s.tz.String()).
		Msg("Scheduler started")

	for {
		next, due := s.nextOccurrence(time.Now())

		sleepDuration := time.Until(next)
		if sleepDuration < 0 {
			sleepDuration = 0
		}

		log.Debug().
			Time("at", next).
			Dur("sleep_duration", sleepDuration).
			Msg("Scheduler sleeping")

		timer := time.NewTimer(sleepDuration)

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("Scheduler stopping")
			return nil

		case <-timer.C:
			for _, sched := range due {
				s.fire(sched)
			}
		}
	}
}

// nextOccurrence finds the earliest firing time across all schedules and
// every schedule due at that instant.
func (s *Scheduler) nextOccurrence(after time.Time) (time.Time, []Schedule) {
	var earliest time.Time
	var due []Schedule

	for _, sched := range s.schedules {
		next := sched.Next(after, s.tz)
		switch {
		case earliest.IsZero() || next.Before(earliest):
			earliest = next
			due = []Schedule{sched}
		case next.Equal(earliest):
			due = append(due, sched)
		}
	}

	return earliest, due
}

// fire injects the schedule's command into the routing path
func (s *Scheduler) fire(sched Schedule) {
	log.Info().
		Str("schedule", sched.ID()).
		Str("light", sched.Light).
		Msg("Firing scheduled command")

	if err := s.sink.RouteCommand(sched.Command()); err != nil {
		log.Error().Err(err).Str("schedule", sched.ID()).Msg("Failed to route scheduled command")
	}
}
