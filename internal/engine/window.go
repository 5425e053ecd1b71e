package engine

import (
	"fmt"
	"time"
)

// WindowKind identifies a date window policy.
type WindowKind string

const (
	WindowToday     WindowKind = "today"
	WindowDaysBack  WindowKind = "days_back"
	WindowYesterday WindowKind = "yesterday"
	WindowRange     WindowKind = "range"
)

// Class is the position of a publication date relative to a window.
type Class int

const (
	Unknown Class = iota
	TooOld
	InWindow
	TooRecent
)

func (c Class) String() string {
	switch c {
	case TooOld:
		return "too_old"
	case InWindow:
		return "in_window"
	case TooRecent:
		return "too_recent"
	default:
		return "unknown"
	}
}

// Window is an inclusive range of calendar days in a fixed location.
type Window struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
	loc   *time.Location
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// Today accepts only the current day.
func Today(now time.Time, loc *time.Location) Window {
	loc = locOrUTC(loc)
	d := midnight(now, loc)
	return Window{Kind: WindowToday, Start: d, End: d, loc: loc}
}

// DaysBack accepts today and the n previous days. n <= 0 is Today.
func DaysBack(now time.Time, n int, loc *time.Location) Window {
	if n <= 0 {
		return Today(now, loc)
	}
	loc = locOrUTC(loc)
	end := midnight(now, loc)
	return Window{Kind: WindowDaysBack, Start: end.AddDate(0, 0, -n), End: end, loc: loc}
}

// Yesterday accepts only the previous day.
func Yesterday(now time.Time, loc *time.Location) Window {
	loc = locOrUTC(loc)
	d := midnight(now, loc).AddDate(0, 0, -1)
	return Window{Kind: WindowYesterday, Start: d, End: d, loc: loc}
}

// Range accepts every day from start to end inclusive.
func Range(start, end time.Time, loc *time.Location) (Window, error) {
	loc = locOrUTC(loc)
	s, e := midnight(start, loc), midnight(end, loc)
	if e.Before(s) {
		return Window{}, fmt.Errorf("window end %s is before start %s", e.Format(time.DateOnly), s.Format(time.DateOnly))
	}
	return Window{Kind: WindowRange, Start: s, End: e, loc: loc}, nil
}

// Classify compares the calendar day of t with the window. A nil date is
// Unknown.
func (w Window) Classify(t *time.Time) Class {
	if t == nil {
		return Unknown
	}
	d := midnight(*t, w.location())
	switch {
	case d.Before(w.Start):
		return TooOld
	case d.After(w.End):
		return TooRecent
	default:
		return InWindow
	}
}

// Accepts reports whether a date is in the window or unknown.
func (w Window) Accepts(t *time.Time) bool {
	c := w.Classify(t)
	return c == InWindow || c == Unknown
}

func (w Window) location() *time.Location {
	return locOrUTC(w.loc)
}

func (w Window) String() string {
	if w.Start.Equal(w.End) {
		return fmt.Sprintf("%s(%s)", w.Kind, w.Start.Format(time.DateOnly))
	}
	return fmt.Sprintf("%s(%s..%s)", w.Kind, w.Start.Format(time.DateOnly), w.End.Format(time.DateOnly))
}
