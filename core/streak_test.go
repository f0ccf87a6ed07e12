package core

import (
	"errors"
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAdvanceStreakFirstActivity(t *testing.T) {
	st, bonus, err := AdvanceStreak(StreakState{UserID: "u"}, day("2026-08-01"))
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentStreakDays != 1 || st.LongestStreakDays != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
	if bonus.Multiplier != 1.0 || bonus.FlatXP != 0 {
		t.Fatalf("unexpected bonus: %+v", bonus)
	}
}

func TestAdvanceStreakConsecutiveDays(t *testing.T) {
	st := StreakState{UserID: "u"}
	var err error
	for i := 0; i < 7; i++ {
		st, _, err = AdvanceStreak(st, day("2026-08-01").AddDate(0, 0, i))
		if err != nil {
			t.Fatal(err)
		}
	}
	if st.CurrentStreakDays != 7 {
		t.Fatalf("want 7, got %d", st.CurrentStreakDays)
	}
}

func TestAdvanceStreakSameDayNoop(t *testing.T) {
	st, _, _ := AdvanceStreak(StreakState{UserID: "u"}, day("2026-08-01"))
	again, _, err := AdvanceStreak(st, day("2026-08-01").Add(6*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if again != st {
		t.Fatalf("same-day replay changed state: %+v vs %+v", again, st)
	}
}

func TestAdvanceStreakGapResets(t *testing.T) {
	st, _, _ := AdvanceStreak(StreakState{UserID: "u"}, day("2026-08-01"))
	st, _, _ = AdvanceStreak(st, day("2026-08-02"))
	st, _, err := AdvanceStreak(st, day("2026-08-05"))
	if err != nil {
		t.Fatal(err)
	}
	if st.CurrentStreakDays != 1 {
		t.Fatalf("want reset to 1, got %d", st.CurrentStreakDays)
	}
	if st.LongestStreakDays != 2 {
		t.Fatalf("longest should survive reset, got %d", st.LongestStreakDays)
	}
}

func TestAdvanceStreakOutOfOrder(t *testing.T) {
	st, _, _ := AdvanceStreak(StreakState{UserID: "u"}, day("2026-08-10"))
	got, _, err := AdvanceStreak(st, day("2026-08-09"))
	if !errors.Is(err, ErrOutOfOrderEvent) {
		t.Fatalf("expected out-of-order error, got %v", err)
	}
	if got.CurrentStreakDays != st.CurrentStreakDays || !got.LastActivityDate.Equal(st.LastActivityDate) {
		t.Fatalf("state changed on rejected event: %+v", got)
	}
}

func TestBonusForStreakMonotonic(t *testing.T) {
	prev := BonusForStreak(1)
	for d := int64(2); d <= 100; d++ {
		b := BonusForStreak(d)
		if b.Multiplier < prev.Multiplier || b.FlatXP < prev.FlatXP {
			t.Fatalf("bonus decreased at %d days: %+v -> %+v", d, prev, b)
		}
		prev = b
	}
}

func TestBonusApply(t *testing.T) {
	b := BonusForStreak(7) // 1.25x + 25
	if got := b.Apply(100); got != 150 {
		t.Fatalf("want 150, got %d", got)
	}
	none := BonusForStreak(1)
	if got := none.Apply(100); got != 100 {
		t.Fatalf("want 100, got %d", got)
	}
}
