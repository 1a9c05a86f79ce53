// Package streak implements daily practice streak bookkeeping.
package streak

import (
	"errors"
	"time"

	"github.com/keystride/keystride/internal/domain/model"
)

// DateLayout is the storage format of practice dates.
const DateLayout = time.DateOnly

// ErrInvalidDate is returned by ParseDate for malformed input.
var ErrInvalidDate = errors.New("invalid practice date")

// Day is a calendar date with no time-of-day or zone.
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf returns the calendar date of t in its own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Date: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Day, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Day{}, errors.Join(ErrInvalidDate, err)
	}
	return DayOf(t), nil
}

// String renders the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.midnight().Format(DateLayout)
}

func (d Day) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Date, 0, 0, 0, 0, time.UTC)
}

// DaysSince returns the number of calendar days from other to d.
// Both are anchored at UTC midnight so DST never skews the count.
func (d Day) DaysSince(other Day) int {
	return int(d.midnight().Sub(other.midnight()).Hours() / 24)
}

// Advance returns s updated for practice on day.
//
// Same day leaves s untouched. The next calendar day extends the streak. Any
// other gap, including a day before the last recorded one, restarts it at 1.
// Longest is never lowered.
func Advance(s model.Streak, day Day) model.Streak {
	if s.LastPracticeDate != "" {
		last, err := ParseDate(s.LastPracticeDate)
		if err == nil {
			switch day.DaysSince(last) {
			case 0:
				return s
			case 1:
				s.Current++
				s.Longest = max(s.Longest, s.Current)
				s.LastPracticeDate = day.String()
				return s
			}
		}
	}

	s.Current = 1
	s.Longest = max(s.Longest, 1)
	s.LastPracticeDate = day.String()
	return s
}

// Outcome labels a transition from before to after for metrics:
// "unchanged", "extended" or "reset".
func Outcome(before, after model.Streak) string {
	switch {
	case before.LastPracticeDate == after.LastPracticeDate && before.Current == after.Current:
		return "unchanged"
	case before.LastPracticeDate != "" && after.Current == before.Current+1:
		return "extended"
	default:
		return "reset"
	}
}
