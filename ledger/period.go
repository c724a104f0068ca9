package ledger

import "time"

// DateRange bounds a history query by transaction date, inclusive on both
// ends and at day granularity. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

// AllTime is the open range.
var AllTime = DateRange{}

// NewDateRange builds a range from YYYY-MM-DD strings; empty strings are open.
func NewDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return r, err
		}
		r.From = t
	}
	if to != "" {
		t, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return r, err
		}
		r.To = t
	}
	return r, nil
}

// Contains returns true if t falls within the range.
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	if !r.From.IsZero() && d.Before(Day(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(Day(r.To)) {
		return false
	}
	return true
}

func (r DateRange) IsOpen() bool { return r.From.IsZero() && r.To.IsZero() }

func (r DateRange) String() string {
	from, to := "-inf", "+inf"
	if !r.From.IsZero() {
		from = r.From.Format(time.DateOnly)
	}
	if !r.To.IsZero() {
		to = r.To.Format(time.DateOnly)
	}
	return "[" + from + ", " + to + "]"
}

// Day truncates t to midnight of its UTC calendar date.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
