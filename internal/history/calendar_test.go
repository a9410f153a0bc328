package history

import (
	"testing"
	"time"
)

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday", time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC), time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
		{"wednesday", time.Date(2024, 6, 12, 9, 30, 0, 0, time.UTC), time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2024, 6, 16, 23, 59, 0, 0, time.UTC), time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)},
		{"across month", time.Date(2024, 7, 2, 12, 0, 0, 0, time.UTC), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"across year", time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StartOfWeek(tt.in); !got.Equal(tt.want) {
				t.Errorf("StartOfWeek(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCalendarPredicates(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		t         time.Time
		today     bool
		yesterday bool
		thisWeek  bool
		thisMonth bool
	}{
		{"earlier today", time.Date(2024, 6, 12, 0, 0, 1, 0, time.UTC), true, false, true, true},
		{"yesterday", time.Date(2024, 6, 11, 23, 59, 0, 0, time.UTC), false, true, true, true},
		{"monday", time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC), false, false, true, true},
		{"previous sunday", time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC), false, false, false, true},
		{"previous month", time.Date(2024, 5, 31, 8, 0, 0, 0, time.UTC), false, false, false, false},
		{"same day last year", time.Date(2023, 6, 12, 10, 0, 0, 0, time.UTC), false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsToday(tt.t, now); got != tt.today {
				t.Errorf("IsToday = %v, want %v", got, tt.today)
			}
			if got := IsYesterday(tt.t, now); got != tt.yesterday {
				t.Errorf("IsYesterday = %v, want %v", got, tt.yesterday)
			}
			if got := IsThisWeek(tt.t, now); got != tt.thisWeek {
				t.Errorf("IsThisWeek = %v, want %v", got, tt.thisWeek)
			}
			if got := IsThisMonth(tt.t, now); got != tt.thisMonth {
				t.Errorf("IsThisMonth = %v, want %v", got, tt.thisMonth)
			}
		})
	}
}

func TestSameDay_UsesReferenceLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	now := time.Date(2024, 6, 12, 20, 0, 0, 0, loc)
	// 01:00 UTC on the 13th is still the 12th in UTC-5
	ts := time.Date(2024, 6, 13, 1, 0, 0, 0, time.UTC)

	if !SameDay(ts, now) {
		t.Error("expected timestamps to fall on the same local day")
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC)
	if got := FormatDate(ts, ts); got != "05/06/2024" {
		t.Errorf("FormatDate = %s, want 05/06/2024", got)
	}
}
