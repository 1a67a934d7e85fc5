package booking

import (
	"time"

	"roombooking/internal/models"
)

// DateTimeLayout is the only accepted wire format for window boundaries.
const DateTimeLayout = "2006-01-02 15:04:05"

// Names of the validation rules, as reported by Explain.
const (
	RuleMalformed   = "malformed"
	RuleInPast      = "in_past"
	RuleTooShort    = "too_short"
	RuleOffGrid     = "off_grid"
	RuleOvernight   = "overnight"
	ruleNone        = ""
	defaultSkew     = 5 * time.Second
	defaultDuration = 30 * time.Minute
	defaultGrid     = 5 * time.Minute
)

// Rules are the business limits applied to every requested window.
type Rules struct {
	// ClockSkew is how far in the past a boundary may lie.
	ClockSkew time.Duration
	// MinDuration is the shortest bookable window.
	MinDuration time.Duration
	// Grid is the step boundaries must be aligned to, counted from the Unix epoch.
	Grid time.Duration
	// Location is used to parse wire timestamps.
	Location *time.Location
}

// DefaultRules returns 5s skew, 30 minute minimum, 5 minute grid, UTC.
func DefaultRules() Rules {
	return Rules{
		ClockSkew:   defaultSkew,
		MinDuration: defaultDuration,
		Grid:        defaultGrid,
		Location:    time.UTC,
	}
}

func (r Rules) withDefaults() Rules {
	if r.ClockSkew <= 0 {
		r.ClockSkew = defaultSkew
	}
	if r.MinDuration <= 0 {
		r.MinDuration = defaultDuration
	}
	if r.Grid <= 0 {
		r.Grid = defaultGrid
	}
	if r.Location == nil {
		r.Location = time.UTC
	}
	return r
}

// ParseWindow parses both boundaries with DateTimeLayout in loc. Any parse
// failure yields the zero window, which never validates.
func ParseWindow(start, end string, loc *time.Location) models.TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	from, ok := parseBoundary(start, loc)
	if !ok {
		return models.TimeWindow{}
	}
	to, ok := parseBoundary(end, loc)
	if !ok {
		return models.TimeWindow{}
	}
	return models.TimeWindow{Start: from, End: to}
}

// parseBoundary accepts exactly DateTimeLayout. time.Parse also takes
// fractional seconds after "05", and local times that do not exist are
// shifted; both fail the round trip.
func parseBoundary(value string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation(DateTimeLayout, value, loc)
	if err != nil || t.Format(DateTimeLayout) != value {
		return time.Time{}, false
	}
	return t, true
}

// Validator checks windows against Rules. It is safe for concurrent use.
type Validator struct {
	rules Rules
	now   func() time.Time
}

// NewValidator creates a validator; now defaults to time.Now.
func NewValidator(rules Rules, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{rules: rules.withDefaults(), now: now}
}

// Rules returns the effective rules.
func (v *Validator) Rules() Rules {
	return v.rules
}

// Now returns the validator's reference time.
func (v *Validator) Now() time.Time {
	return v.now()
}

// Parse parses wire timestamps in the configured location.
func (v *Validator) Parse(start, end string) models.TimeWindow {
	return ParseWindow(start, end, v.rules.Location)
}

// Validate checks w against the validator's clock.
func (v *Validator) Validate(w models.TimeWindow) bool {
	return v.ValidateAt(w, v.now())
}

// ValidateAt checks w against referenceNow.
func (v *Validator) ValidateAt(w models.TimeWindow, referenceNow time.Time) bool {
	return v.Explain(w, referenceNow) == ruleNone
}

// Explain returns the first rule w breaks, or "" if w is bookable.
// Comparisons use whole Unix seconds; a sub-second boundary is off grid.
func (v *Validator) Explain(w models.TimeWindow, referenceNow time.Time) string {
	if w.IsZero() {
		return RuleMalformed
	}

	from, to, now := w.Start.Unix(), w.End.Unix(), referenceNow.Unix()
	skew := int64(v.rules.ClockSkew / time.Second)
	grid := int64(v.rules.Grid / time.Second)

	switch {
	case now > from+skew || now > to+skew:
		return RuleInPast
	case from+int64(v.rules.MinDuration/time.Second) > to:
		return RuleTooShort
	case from%grid != 0 || to%grid != 0 || w.Start.Nanosecond() != 0 || w.End.Nanosecond() != 0:
		return RuleOffGrid
	case !w.SameDay():
		return RuleOvernight
	}
	return ruleNone
}

// Validate checks w against referenceNow with DefaultRules.
func Validate(w models.TimeWindow, referenceNow time.Time) bool {
	return NewValidator(DefaultRules(), nil).ValidateAt(w, referenceNow)
}
