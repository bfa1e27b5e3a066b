// Package scoring holds the pure ranking math for screening submissions.
// Every function is deterministic in its arguments.
package scoring

import (
	"math"
	"time"
)

type Result struct {
	ReviewCount     int
	MeanRating      float64
	Confidence      float64
	AdjustedScore   float64
	Decay           float64
	HotScore        float64
	IndexedScore    int
	HotIndexedScore int
}

// Calculate scores a submission from its ratings. decidedAt is nil while the
// submission is pending, in which case no decay applies.
func Calculate(ratings []int, decidedAt *time.Time, now time.Time, cfg Config) Result {
	count := len(ratings)
	mean := 0.0
	if count > 0 {
		sum := 0
		for _, r := range ratings {
			sum += r
		}
		mean = float64(sum) / float64(count)
	}

	confidence := Confidence(cfg, count)
	adjusted := mean * confidence
	decay := Decay(cfg, decidedAt, now)
	hot := adjusted * decay

	return Result{
		ReviewCount:     count,
		MeanRating:      mean,
		Confidence:      confidence,
		AdjustedScore:   adjusted,
		Decay:           decay,
		HotScore:        hot,
		IndexedScore:    Index(adjusted),
		HotIndexedScore: Index(hot),
	}
}

// Confidence returns the multiplier of the highest tier whose threshold count reaches.
func Confidence(cfg Config, count int) float64 {
	multiplier := 0.0
	for _, tier := range cfg.sortedTiers() {
		if count >= tier.MinReviews {
			multiplier = tier.Multiplier
		}
	}
	return multiplier
}

func Decay(cfg Config, decidedAt *time.Time, now time.Time) float64 {
	if decidedAt == nil {
		return 1.0
	}
	ageDays := now.Sub(*decidedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	value := cfg.DecayFloor + (1-cfg.DecayFloor)*math.Exp(-math.Ln2*ageDays/cfg.HalfLifeDays)
	return math.Min(1, math.Max(cfg.DecayFloor, value))
}

// Index maps a 1..10 score onto 0..100.
func Index(score float64) int {
	value := math.Round((score - 1) / 9 * 100)
	if value < 0 {
		return 0
	}
	return int(value)
}
