package scoring

import (
	"errors"
	"math"
	"sort"
)

// ConfidenceTier applies Multiplier once a submission has at least MinReviews reviews.
type ConfidenceTier struct {
	MinReviews int     `json:"min_reviews"`
	Multiplier float64 `json:"multiplier"`
}

type Config struct {
	ConfidenceTiers      []ConfidenceTier `json:"confidence_tiers"`
	HalfLifeDays         float64          `json:"half_life_days"`
	DecayFloor           float64          `json:"decay_floor"`
	MinListenSeconds     int              `json:"min_listen_seconds"`
	MinReviewsForRanking int              `json:"min_reviews_for_ranking"`
}

var (
	ErrInvalidHalfLife   = errors.New("invalid_half_life")
	ErrInvalidDecayFloor = errors.New("invalid_decay_floor")
	ErrInvalidTiers      = errors.New("invalid_confidence_tiers")
	ErrInvalidMinListen  = errors.New("invalid_min_listen_seconds")
	ErrInvalidMinRanking = errors.New("invalid_min_reviews_for_ranking")
)

func DefaultConfig() Config {
	return Config{
		ConfidenceTiers: []ConfidenceTier{
			{MinReviews: 2, Multiplier: 0.5},
			{MinReviews: 3, Multiplier: 0.7},
			{MinReviews: 4, Multiplier: 0.85},
			{MinReviews: 5, Multiplier: 1.0},
		},
		HalfLifeDays:         60,
		DecayFloor:           0.5,
		MinListenSeconds:     0,
		MinReviewsForRanking: 0,
	}
}

// Validate rejects configurations that would make scoring non-monotonic or undefined.
func (c Config) Validate() error {
	if c.HalfLifeDays <= 0 || math.IsNaN(c.HalfLifeDays) || math.IsInf(c.HalfLifeDays, 0) {
		return ErrInvalidHalfLife
	}
	if c.DecayFloor < 0 || c.DecayFloor > 1 || math.IsNaN(c.DecayFloor) {
		return ErrInvalidDecayFloor
	}
	if c.MinListenSeconds < 0 {
		return ErrInvalidMinListen
	}
	if c.MinReviewsForRanking < 0 {
		return ErrInvalidMinRanking
	}
	if len(c.ConfidenceTiers) == 0 {
		return ErrInvalidTiers
	}

	tiers := c.sortedTiers()
	prev := 0.0
	for i, tier := range tiers {
		if tier.MinReviews <= 0 {
			return ErrInvalidTiers
		}
		if i > 0 && tier.MinReviews == tiers[i-1].MinReviews {
			return ErrInvalidTiers
		}
		if tier.Multiplier < 0 || tier.Multiplier > 1 || math.IsNaN(tier.Multiplier) {
			return ErrInvalidTiers
		}
		if tier.Multiplier < prev {
			return ErrInvalidTiers
		}
		prev = tier.Multiplier
	}
	return nil
}

// Normalized returns a copy with tiers ordered by MinReviews.
func (c Config) Normalized() Config {
	out := c
	out.ConfidenceTiers = c.sortedTiers()
	return out
}

func (c Config) sortedTiers() []ConfidenceTier {
	tiers := make([]ConfidenceTier, len(c.ConfidenceTiers))
	copy(tiers, c.ConfidenceTiers)
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].MinReviews < tiers[j].MinReviews })
	return tiers
}
