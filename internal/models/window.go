package models

import "time"

// TimeWindow is a half-open booking interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// IsZero reports whether the window carries no time at all.
// Malformed input is represented by the zero window.
func (w TimeWindow) IsZero() bool {
	return w.Start.IsZero() && w.End.IsZero()
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// SameDay reports whether Start and End fall on the same calendar day
// in the location of Start.
func (w TimeWindow) SameDay() bool {
	end := w.End.In(w.Start.Location())
	y1, m1, d1 := w.Start.Date()
	y2, m2, d2 := end.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Date returns midnight of the day Start falls on.
func (w TimeWindow) Date() time.Time {
	return StartOfDay(w.Start)
}

// Overlaps reports whether w collides with other under the booking rules:
// w starts strictly inside other, ends strictly inside other, equals other,
// or fully contains other. Windows that only touch at an endpoint do not
// collide.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	startInside := w.Start.After(other.Start) && w.Start.Before(other.End)
	endInside := w.End.After(other.Start) && w.End.Before(other.End)
	same := w.Start.Equal(other.Start) && w.End.Equal(other.End)
	contains := !w.Start.After(other.Start) && !w.End.Before(other.End)

	return startInside || endInside || same || contains
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
