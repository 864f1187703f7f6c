package model

import "time"

// Day is the length of one window day.
const Day = 24 * time.Hour

// Window is a trailing interval of Days days ending at Now. The lower bound is
// inclusive; there is no upper bound.
type Window struct {
	Now   time.Time
	Start time.Time
	Days  int
}

// NewWindow returns the window of days days back from now.
func NewWindow(now time.Time, days int) Window {
	return Window{
		Now:   now,
		Start: now.Add(-time.Duration(days) * Day),
		Days:  days,
	}
}

// Contains reports whether the instant t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start)
}

// ContainsDay reports whether the calendar day d (UTC midnight) falls inside
// the window. Days compare against the UTC date of the window start so a
// measurement taken on the first day of the window is always included.
func (w Window) ContainsDay(d time.Time) bool {
	s := w.Start.UTC()
	startDay := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(startDay)
}
