package scheduler

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tinrooster/tedecom-v1/internal/apperrors"
	"github.com/tinrooster/tedecom-v1/internal/models"
)

// DefaultTime is used when a schedule has no time of day.
const DefaultTime = "00:00"

// parseClock reads an "HH:MM" time of day. A blank value means midnight.
func parseClock(s string) (hour, minute int, err error) {
	value := strings.TrimSpace(s)
	if value == "" {
		value = DefaultTime
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// Validate checks a schedule before it is stored or installed.
func Validate(s *models.ReportSchedule) error {
	if s == nil {
		return apperrors.Schedulingf("validate schedule", "schedule is required")
	}
	if _, _, err := parseClock(s.Time); err != nil {
		return apperrors.Schedulingf("validate schedule", "%v", err)
	}

	switch s.Frequency {
	case models.FrequencyDaily:
	case models.FrequencyWeekly:
		if s.DayOfWeek == nil {
			return apperrors.Schedulingf("validate schedule", "dayOfWeek is required for weekly schedules")
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return apperrors.Schedulingf("validate schedule", "dayOfWeek must be between 0 and 6, got %d", *s.DayOfWeek)
		}
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
		if s.DayOfMonth == nil {
			return apperrors.Schedulingf("validate schedule", "dayOfMonth is required for %s schedules", s.Frequency)
		}
		if *s.DayOfMonth < 1 || *s.DayOfMonth > 31 {
			return apperrors.Schedulingf("validate schedule", "dayOfMonth must be between 1 and 31, got %d", *s.DayOfMonth)
		}
	default:
		return apperrors.Schedulingf("validate schedule", "unknown frequency %q", s.Frequency)
	}

	for _, r := range s.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return apperrors.Schedulingf("validate schedule", "invalid recipient %q", r)
		}
	}
	return nil
}

// Expression returns the five-field cron expression for a schedule.
func Expression(s *models.ReportSchedule) (string, error) {
	if err := Validate(s); err != nil {
		return "", err
	}
	hour, minute, _ := parseClock(s.Time)

	switch s.Frequency {
	case models.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case models.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * %d", minute, hour, *s.DayOfWeek), nil
	case models.FrequencyMonthly:
		return fmt.Sprintf("%d %d %d * *", minute, hour, *s.DayOfMonth), nil
	case models.FrequencyQuarterly:
		return fmt.Sprintf("%d %d 1 */3 *", minute, hour), nil
	default:
		return fmt.Sprintf("%d %d 1 1 *", minute, hour), nil
	}
}

func parse(s *models.ReportSchedule) (cron.Schedule, error) {
	expr, err := Expression(s)
	if err != nil {
		return nil, err
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, apperrors.Schedulingf("parse schedule", "%v", err)
	}
	return sched, nil
}

// NextRuns lists the fire times of a schedule in (from, until], evaluated
// in loc.
func NextRuns(s *models.ReportSchedule, loc *time.Location, from, until time.Time) ([]time.Time, error) {
	sched, err := parse(s)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}

	var runs []time.Time
	for t := sched.Next(from.In(loc)); !t.IsZero() && !t.After(until); t = sched.Next(t) {
		runs = append(runs, t)
	}
	return runs, nil
}
