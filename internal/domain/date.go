package domain

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. Values order lexically.
type Date string

func DateOf(t time.Time) Date {
	return Date(t.Format(DateLayout))
}

func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", value, err)
	}

	return DateOf(t), nil
}

func (d Date) String() string {
	return string(d)
}

func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}

	return t
}

func (d Date) AddDays(n int) Date {
	t := d.Time(time.UTC)
	if t.IsZero() {
		return d
	}

	return DateOf(t.AddDate(0, 0, n))
}

func (d Date) Before(other Date) bool {
	return d < other
}

// MaxRetentionDays bounds the window so a run scans at most a year of notes.
const MaxRetentionDays = 366

// RetentionWindow is the inclusive range of dates kept in RecentHistory.
type RetentionWindow struct {
	Start Date
	End   Date
}

// NewRetentionWindow returns [today-days+1, today].
func NewRetentionWindow(today Date, days int) (RetentionWindow, error) {
	if days < 1 || days > MaxRetentionDays {
		return RetentionWindow{}, fmt.Errorf("%w: got %d", ErrInvalidRetention, days)
	}

	return RetentionWindow{Start: today.AddDays(-(days - 1)), End: today}, nil
}

func (w RetentionWindow) Contains(d Date) bool {
	return d >= w.Start && d <= w.End
}

// Dates lists every day of the window, oldest first.
func (w RetentionWindow) Dates() []Date {
	dates := []Date{}
	for d := w.Start; d <= w.End; d = d.AddDays(1) {
		dates = append(dates, d)
		if d.AddDays(1) == d {
			break
		}
	}

	return dates
}
