package model

import (
	"errors"
	"testing"
	"time"
)

func TestNextAfterAdvancesOneCalendarUnit(t *testing.T) {
	from := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)
	cases := []struct {
		rule RecurrenceRule
		want string
	}{
		{RecurrenceDaily, "2025-06-16 09:30"},
		{RecurrenceWeekly, "2025-06-22 09:30"},
		{RecurrenceMonthly, "2025-07-15 09:30"},
		{RecurrenceYearly, "2026-06-15 09:30"},
	}
	for _, tc := range cases {
		next, err := tc.rule.NextAfter(from)
		if err != nil {
			t.Fatalf("%s: next failed: %v", tc.rule, err)
		}
		if got := next.Format("2006-01-02 15:04"); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.rule, got, tc.want)
		}
	}
}

func TestMonthlyClampsToEndOfMonth(t *testing.T) {
	cases := []struct {
		from string
		want string
	}{
		{"2025-01-31", "2025-02-28"},
		{"2024-01-31", "2024-02-29"},
		{"2025-03-31", "2025-04-30"},
		{"2025-12-31", "2026-01-31"},
		{"2025-08-15", "2025-09-15"},
	}
	for _, tc := range cases {
		from, _ := time.Parse("2006-01-02", tc.from)
		next, err := RecurrenceMonthly.NextAfter(from)
		if err != nil {
			t.Fatalf("monthly from %s failed: %v", tc.from, err)
		}
		if got := next.Format("2006-01-02"); got != tc.want {
			t.Fatalf("monthly from %s: got %s want %s", tc.from, got, tc.want)
		}
	}
}

func TestYearlyClampsLeapDay(t *testing.T) {
	from := time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)
	next, err := RecurrenceYearly.NextAfter(from)
	if err != nil {
		t.Fatalf("yearly failed: %v", err)
	}
	if got := next.Format("2006-01-02 15:04"); got != "2025-02-28 08:00" {
		t.Fatalf("unexpected yearly result: %s", got)
	}
}

func TestDailyKeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 2025-03-09 is the spring-forward day in New York.
	from := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)
	next, err := RecurrenceDaily.NextAfter(from)
	if err != nil {
		t.Fatalf("daily failed: %v", err)
	}
	if next.Hour() != 9 || next.Day() != 9 {
		t.Fatalf("expected 09:00 on the 9th, got %s", next.Format(time.RFC3339))
	}
	if next.Sub(from) != 23*time.Hour {
		t.Fatalf("expected a 23h elapsed day, got %s", next.Sub(from))
	}
}

func TestNextOccurrenceSubstitutesNow(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	next, err := NextOccurrence(nil, RecurrenceWeekly, now)
	if err != nil {
		t.Fatalf("next occurrence failed: %v", err)
	}
	if !next.Equal(now.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected next occurrence: %s", next.Format(time.RFC3339))
	}

	ref := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	next, err = NextOccurrence(&ref, RecurrenceDaily, now)
	if err != nil {
		t.Fatalf("next occurrence failed: %v", err)
	}
	if next.Format("2006-01-02 15:04") != "2025-06-16 09:00" {
		t.Fatalf("reference ignored: %s", next.Format(time.RFC3339))
	}
}

func TestInvalidRecurrenceRule(t *testing.T) {
	_, err := RecurrenceRule("hourly").NextAfter(time.Now())
	if !errors.Is(err, ErrInvalidRecurrenceRule) {
		t.Fatalf("expected ErrInvalidRecurrenceRule, got %v", err)
	}
	if _, err := ParseRecurrenceRule("fortnightly"); !errors.Is(err, ErrInvalidRecurrenceRule) {
		t.Fatalf("expected parse error, got %v", err)
	}
	rule, err := ParseRecurrenceRule("  Monthly ")
	if err != nil || rule != RecurrenceMonthly {
		t.Fatalf("expected monthly, got %q (%v)", rule, err)
	}
}

func TestRecurrencePreview(t *testing.T) {
	from := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	list, err := RecurrenceMonthly.Preview(from, 3)
	if err != nil {
		t.Fatalf("preview failed: %v", err)
	}
	want := []string{"2025-02-28", "2025-03-28", "2025-04-28"}
	if len(list) != len(want) {
		t.Fatalf("expected %d preview items, got %d", len(want), len(list))
	}
	for i := range list {
		if got := list[i].Format("2006-01-02"); got != want[i] {
			t.Fatalf("preview[%d] got %s want %s", i, got, want[i])
		}
	}
	if empty, _ := RecurrenceDaily.Preview(from, 0); len(empty) != 0 {
		t.Fatalf("expected empty preview, got %d", len(empty))
	}
}
