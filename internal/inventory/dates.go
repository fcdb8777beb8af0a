package inventory

import (
	"time"
)

// DateLayout is the calendar-date format used for every date field.
const DateLayout = "2006-01-02"

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate accepts a YYYY-MM-DD prefix, so full ISO timestamps work too.
func ParseDate(s string) (time.Time, bool) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ShiftDays moves a calendar date by n days in the location of t. Month and
// leap-year lengths are honoured because AddDate works on calendar fields.
func ShiftDays(t time.Time, n int) string {
	return FormatDate(t.AddDate(0, 0, n))
}

// DaysUntil counts whole calendar days from today to date. The count is
// taken on UTC midnights so DST transitions never shorten a day.
func DaysUntil(today time.Time, date string) (int, bool) {
	target, ok := ParseDate(date)
	if !ok {
		return 0, false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int(target.Sub(start).Hours() / 24), true
}

func dateOnly(s string) string {
	if len(s) > len(DateLayout) && s[4] == '-' && s[7] == '-' {
		return s[:len(DateLayout)]
	}
	return s
}
