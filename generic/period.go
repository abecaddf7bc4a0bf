package generic

import (
	"fmt"
	"sort"
)

// =============================================================================
// PERIOD - Inclusive range of calendar days
// =============================================================================

// Period is the inclusive day range [Start, End]. Settlement periods, leave
// spans and query windows all use it.
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod validates and builds a period.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects missing bounds and end-before-start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidPeriod)
	}
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, p.End, p.Start)
	}
	return nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Len is the number of days in the period, counting both ends.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Intersect clamps p to other. ok is false when the two are disjoint.
func (p Period) Intersect(other Period) (Period, bool) {
	start := p.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := p.End
	if other.End.Before(end) {
		end = other.End
	}
	if start.After(end) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Key is a stable textual form, used in idempotency keys.
func (p Period) Key() string {
	return p.Start.String() + ":" + p.End.String()
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// OVERLAP
// =============================================================================

// OverlapDays is the inclusive day count shared by two spans, 0 if disjoint.
func OverlapDays(a, b Period) int {
	shared, ok := a.Intersect(b)
	if !ok {
		return 0
	}
	return shared.Len()
}

// =============================================================================
// DAY SET - Set semantics over calendar days
// =============================================================================

// DaySet holds distinct days. Adding the same day twice is a no-op.
type DaySet struct {
	days map[int64]TimePoint
}

func NewDaySet() *DaySet {
	return &DaySet{days: make(map[int64]TimePoint)}
}

func (s *DaySet) Add(tp TimePoint) {
	if tp.IsZero() {
		return
	}
	s.days[tp.dayNumber()] = tp
}

// AddPeriod adds every day of p.
func (s *DaySet) AddPeriod(p Period) {
	for _, d := range p.Days() {
		s.Add(d)
	}
}

func (s *DaySet) Contains(tp TimePoint) bool {
	_, ok := s.days[tp.dayNumber()]
	return ok
}

func (s *DaySet) Len() int { return len(s.days) }

// Sorted returns the days in ascending order.
func (s *DaySet) Sorted() []TimePoint {
	out := make([]TimePoint, 0, len(s.days))
	for _, d := range s.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
