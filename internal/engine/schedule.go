package engine

import (
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/workflow"
)

// maxScheduleDays bounds the weekday search: any weekday set that can
// match does so within a week.
const maxScheduleDays = 7

// CalculateReactionTime returns the UTC time a delay or schedule wait
// fires, or the zero time when wait has neither.
func CalculateReactionTime(now time.Time, wait *workflow.Wait, loc *time.Location) (time.Time, error) {
	switch {
	case wait == nil:
		return time.Time{}, nil
	case wait.Delay != nil:
		return now.Add(wait.Delay.Duration()).UTC(), nil
	case wait.Schedule != nil:
		return CalculateNextScheduleHit(now, wait.Schedule.At, wait.Schedule.Weekdays, loc)
	}
	return time.Time{}, nil
}

// CalculateNextScheduleHit returns the next time at which the local
// wall clock in loc reads at, on one of weekdays (any day when empty).
// A time equal to now counts as today. The result is in UTC.
func CalculateNextScheduleHit(now time.Time, at workflow.TimeOfDay, weekdays []time.Weekday, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	day := func(offset int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+offset,
			at.Hour, at.Minute, at.Second, 0, loc)
	}

	start := 0
	if day(0).Before(local) {
		start = 1
	}
	if len(weekdays) == 0 {
		return day(start).UTC(), nil
	}

	for i := range maxScheduleDays {
		candidate := day(start + i)
		if slices.Contains(weekdays, candidate.Weekday()) {
			return candidate.UTC(), nil
		}
	}
	return time.Time{}, ErrScheduleUnreachable
}
