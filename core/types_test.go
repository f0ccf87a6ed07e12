package core

import (
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestValidateTransactionID(t *testing.T) {
	if err := ValidateTransactionID("tx-1/ach/first_course"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateTransactionID("tx 1"); err == nil {
		t.Fatalf("expected invalid id err")
	}
	if err := ValidateTransactionID(""); err == nil {
		t.Fatalf("expected empty id err")
	}
}

func TestPeriodKeys(t *testing.T) {
	ts := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	if got := MonthKey(ts); got != "2026-08" {
		t.Fatalf("month key %q", got)
	}
	if got := WeekKey(ts); got != "2026-W35" {
		t.Fatalf("week key %q", got)
	}
	// ISO week of Jan 1 can belong to the previous year
	if got := WeekKey(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)); got != "2026-W53" {
		t.Fatalf("week key %q", got)
	}
}

func TestProgressClone(t *testing.T) {
	p := AchievementProgress{
		UserID:   "u",
		Counters: map[CounterName]int64{"courses_completed": 2},
		Unlocked: map[AchievementID]time.Time{"first_course": time.Now()},
	}
	cp := p.Clone()
	cp.Counters["courses_completed"] = 9
	delete(cp.Unlocked, "first_course")
	if p.Counters["courses_completed"] != 2 || len(p.Unlocked) != 1 {
		t.Fatal("clone aliases original maps")
	}
}
