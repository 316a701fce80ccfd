package services

import (
	"math/rand"
	"testing"
	"time"
)

func TestSchedule_TwoPerDayWindow(t *testing.T) {
	today := time.Date(2026, 3, 10, 11, 45, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	slots := Schedule(today, 7, rng)

	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}

	perDay := make(map[string]int)
	for _, slot := range slots {
		day := slot.Format("2006-01-02")
		perDay[day]++
		if perDay[day] > 2 {
			t.Fatalf("more than 2 posts on %s", day)
		}

		if slot.Before(time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())) {
			t.Fatalf("slot %s is before today", slot)
		}

		minutes := slot.Hour()*60 + slot.Minute()
		if minutes < 9*60 || minutes > 22*60+30 {
			t.Fatalf("slot %s outside 09:00-22:30", slot)
		}
	}

	// 7 posts at 2 per day span 4 calendar days.
	if len(perDay) != 4 {
		t.Fatalf("expected posts spread over 4 days, got %d", len(perDay))
	}
}

func TestSchedule_DeterministicUnderSeed(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first := Schedule(today, 5, rand.New(rand.NewSource(7)))
	second := Schedule(today, 5, rand.New(rand.NewSource(7)))

	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Fatalf("slot %d differs: %s vs %s", i, first[i], second[i])
		}
	}
}

func TestSchedule_ZeroCount(t *testing.T) {
	slots := Schedule(time.Now(), 0, rand.New(rand.NewSource(1)))
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}
