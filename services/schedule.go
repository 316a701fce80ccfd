package services

import (
	"math/rand"
	"time"
)

const (
	maxPostsPerDay    = 2
	earliestPostHour  = 9
	latestPostHour    = 22
	latestPostMinutes = 30
)

// Schedule assigns calendar slots to count posts starting today: at most two
// posts per day, each at a uniformly random time between 09:00 and 22:30.
// The spread is pseudo-random so the feed looks organic, but fully
// deterministic for a given rng seed.
func Schedule(today time.Time, count int, rng *rand.Rand) []time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())

	slots := make([]time.Time, 0, count)
	postsToday := 0
	for i := 0; i < count; i++ {
		if postsToday >= maxPostsPerDay {
			day = day.AddDate(0, 0, 1)
			postsToday = 0
		}

		hour := earliestPostHour + rng.Intn(latestPostHour-earliestPostHour+1)
		var minute int
		if hour == latestPostHour {
			minute = rng.Intn(latestPostMinutes + 1)
		} else {
			minute = rng.Intn(60)
		}

		slots = append(slots, day.Add(time.Duration(hour)*time.Hour+time.Duration(minute)*time.Minute))
		postsToday++
	}
	return slots
}
