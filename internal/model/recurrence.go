package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RecurrenceRule string

const (
	RecurrenceDaily   RecurrenceRule = "daily"
	RecurrenceWeekly  RecurrenceRule = "weekly"
	RecurrenceMonthly RecurrenceRule = "monthly"
	RecurrenceYearly  RecurrenceRule = "yearly"
)

var ErrInvalidRecurrenceRule = errors.New("model: invalid recurrence rule")

func (r RecurrenceRule) IsValid() bool {
	switch r {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
		return true
	default:
		return false
	}
}

func (r RecurrenceRule) String() string { return string(r) }

// ParseRecurrenceRule accepts the rule name in any case with surrounding
// whitespace.
func ParseRecurrenceRule(raw string) (RecurrenceRule, error) {
	r := RecurrenceRule(strings.ToLower(strings.TrimSpace(raw)))
	if !r.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, raw)
	}
	return r, nil
}

// NextOccurrence returns the next due date for rule. A nil reference is
// replaced by now, so callers that need determinism must pass a reference.
func NextOccurrence(reference *time.Time, rule RecurrenceRule, now time.Time) (time.Time, error) {
	base := now
	if reference != nil {
		base = *reference
	}
	return rule.NextAfter(base)
}

// NextAfter advances from by exactly one calendar unit. Wall-clock time and
// location are preserved; month and year steps clamp to the last day of the
// target month.
func (r RecurrenceRule) NextAfter(from time.Time) (time.Time, error) {
	switch r {
	case RecurrenceDaily:
		return from.AddDate(0, 0, 1), nil
	case RecurrenceWeekly:
		return from.AddDate(0, 0, 7), nil
	case RecurrenceMonthly:
		return addMonthsClamped(from, 1), nil
	case RecurrenceYearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRecurrenceRule, r)
	}
}

func (r RecurrenceRule) Preview(from time.Time, count int) ([]time.Time, error) {
	if count <= 0 {
		return []time.Time{}, nil
	}
	out := make([]time.Time, 0, count)
	cursor := from
	for i := 0; i < count; i++ {
		next, err := r.NextAfter(cursor)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
		cursor = next
	}
	return out, nil
}

func addMonthsClamped(from time.Time, months int) time.Time {
	y, m, d := from.Date()
	loc := from.Location()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, loc)
	ty, tm, _ := first.Date()
	if last := daysIn(ty, tm, loc); d > last {
		d = last
	}
	return time.Date(ty, tm, d, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), loc)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
