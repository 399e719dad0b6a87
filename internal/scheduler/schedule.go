// Package scheduler fires configured light commands at fixed local times.
// Schedules come from the config file and never change at runtime.
package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dokzlo13/irlightd/internal/reconcile"
)

// Match patterns like "22:15", "06:30"
var atPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// Schedule is a daily firing point for a single light. At the configured
// wall-clock time it injects a command as if it arrived over MQTT.
type Schedule struct {
	Light string
	Hour  int
	Min   int
	On    *bool
	Step  *int
}

// NewSchedule parses a schedule from its config form. The state must be
// "on", "off" or empty; a schedule with neither state nor step is rejected.
func NewSchedule(light, at, state string, step *int) (Schedule, error) {
	matches := atPattern.FindStringSubmatch(strings.TrimSpace(at))
	if matches == nil {
		return Schedule{}, fmt.Errorf("invalid time expression: %s", at)
	}

	hour, _ := strconv.Atoi(matches[1])
	min, _ := strconv.Atoi(matches[2])
	if hour > 23 {
		return Schedule{}, fmt.Errorf("invalid hour: %d", hour)
	}
	if min > 59 {
		return Schedule{}, fmt.Errorf("invalid minute: %d", min)
	}

	var on *bool
	switch strings.ToLower(state) {
	case "":
	case "on":
		v := true
		on = &v
	case "off":
		v := false
		on = &v
	default:
		return Schedule{}, fmt.Errorf("invalid state: %s", state)
	}

	if on == nil && step == nil {
		return Schedule{}, fmt.Errorf("schedule for %s has neither state nor brightness", light)
	}

	return Schedule{Light: light, Hour: hour, Min: min, On: on, Step: step}, nil
}

// ID returns a stable identifier for logging
func (s Schedule) ID() string {
	return fmt.Sprintf("%s@%02d:%02d", s.Light, s.Hour, s.Min)
}

// At returns the schedule's firing time on the given date
func (s Schedule) At(date time.Time, tz *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), s.Hour, s.Min, 0, 0, tz)
}

// Next returns the first firing time strictly after the given time
func (s Schedule) Next(after time.Time, tz *time.Location) time.Time {
	day := after.In(tz)
	if t := s.At(day, tz); t.After(after) {
		return t
	}
	return s.At(day.AddDate(0, 0, 1), tz)
}

// Command builds the synthetic command this schedule injects
func (s Schedule) Command() reconcile.CommandEvent {
	return reconcile.CommandEvent{
		Device: s.Light,
		On:     s.On,
		Step:   s.Step,
		Origin: reconcile.OriginSchedule,
	}
}
