package scanner

import (
	"testing"
	"time"

	"lms/internal/config"
)

func TestNextRunNever(t *testing.T) {
	_, ok := nextRun(config.UpdateNever, "", time.Now())
	if ok {
		t.Fatal("Never must never schedule")
	}
}

func TestNextRunHourly(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC)
	next, ok := nextRun(config.UpdateHourly, "", from)
	if !ok {
		t.Fatal("expected Hourly to schedule")
	}
	want := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunDailyBeforeStartTime(t *testing.T) {
	from := time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC)
	next, ok := nextRun(config.UpdateDaily, "03:00", from)
	if !ok {
		t.Fatal("expected Daily to schedule")
	}
	want := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunDailyAfterStartTime(t *testing.T) {
	from := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	next, ok := nextRun(config.UpdateDaily, "03:00", from)
	if !ok {
		t.Fatal("expected Daily to schedule")
	}
	want := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunWeekly(t *testing.T) {
	from := time.Date(2026, 1, 1, 5, 0, 0, 0, time.UTC)
	next, ok := nextRun(config.UpdateWeekly, "03:00", from)
	if !ok {
		t.Fatal("expected Weekly to schedule")
	}
	want := time.Date(2026, 1, 8, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunMonthly(t *testing.T) {
	from := time.Date(2026, 1, 15, 5, 0, 0, 0, time.UTC)
	next, ok := nextRun(config.UpdateMonthly, "03:00", from)
	if !ok {
		t.Fatal("expected Monthly to schedule")
	}
	want := time.Date(2026, 2, 1, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunInvalidStartTime(t *testing.T) {
	_, ok := nextRun(config.UpdateDaily, "not-a-time", time.Now())
	if ok {
		t.Fatal("expected invalid start time to fail to schedule")
	}
}
