package notifications

import (
	"fmt"
	"time"
)

// schedule yields the end of a digest window that opens at from.
type schedule interface {
	Next(from time.Time) time.Time
	String() string
}

// hourlyWindow closes one hour after it opens.
type hourlyWindow struct{}

func (hourlyWindow) Next(from time.Time) time.Time { return from.Add(time.Hour) }
func (hourlyWindow) String() string              { return "hourly" }

// dailyWindow closes at the next occurrence of at in loc.
type dailyWindow struct {
	at  TimeOfDay
	loc *time.Location
}

func (s dailyWindow) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	next := s.at.On(local)
	if !next.After(local) {
		next = s.at.On(local.AddDate(0, 0, 1))
	}
	return next
}

func (s dailyWindow) String() string {
	return fmt.Sprintf("daily at %s %s", s.at, s.loc)
}

// weeklyWindow closes at the next occurrence of weekday at the given time.
type weeklyWindow struct {
	weekday time.Weekday
	at      TimeOfDay
	loc     *time.Location
}

func (s weeklyWindow) Next(from time.Time) time.Time {
	local := from.In(s.loc)
	daysUntil := (int(s.weekday) - int(local.Weekday()) + 7) % 7
	next := s.at.On(local.AddDate(0, 0, daysUntil))
	if !next.After(local) {
		next = s.at.On(local.AddDate(0, 0, daysUntil+7))
	}
	return next
}

func (s weeklyWindow) String() string {
	return fmt.Sprintf("weekly on %s at %s %s", s.weekday, s.at, s.loc)
}

// windowSchedule picks the window shape for a digest frequency. The instant
// frequency is only held during quiet hours, so its window ends when quiet
// hours end.
func windowSchedule(freq Frequency, p Preferences) schedule {
	switch freq {
	case FrequencyHourly:
		return hourlyWindow{}
	case FrequencyDaily:
		return dailyWindow{at: p.DigestTime, loc: p.DigestLocation()}
	case FrequencyWeekly:
		return weeklyWindow{weekday: time.Monday, at: p.DigestTime, loc: p.DigestLocation()}
	default:
		return dailyWindow{at: p.QuietHoursEnd, loc: p.QuietHoursLocation()}
	}
}

// WindowEnd returns when a digest window for freq opened at start closes.
func WindowEnd(freq Frequency, start time.Time, p Preferences) time.Time {
	return windowSchedule(freq, p.Normalized()).Next(start)
}
