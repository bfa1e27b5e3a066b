package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateTwoReviews(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	res := Calculate([]int{8, 9}, nil, now, DefaultConfig())

	assert.Equal(t, 2, res.ReviewCount)
	assert.InDelta(t, 8.5, res.MeanRating, 1e-9)
	assert.InDelta(t, 0.5, res.Confidence, 1e-9)
	assert.InDelta(t, 4.25, res.AdjustedScore, 1e-9)
	assert.Equal(t, 1.0, res.Decay)
	assert.Equal(t, 36, res.IndexedScore)
	assert.Equal(t, 36, res.HotIndexedScore)
}

func TestCalculateNoReviews(t *testing.T) {
	res := Calculate(nil, nil, time.Now(), DefaultConfig())
	assert.Equal(t, 0, res.ReviewCount)
	assert.Equal(t, 0.0, res.MeanRating)
	assert.Equal(t, 0, res.IndexedScore)
}

func TestConfidenceSteps(t *testing.T) {
	cfg := DefaultConfig()
	want := map[int]float64{0: 0, 1: 0, 2: 0.5, 3: 0.7, 4: 0.85, 5: 1, 12: 1}
	for count, expected := range want {
		assert.InDelta(t, expected, Confidence(cfg, count), 1e-9, "count %d", count)
	}

	prev := 0.0
	for count := 0; count < 20; count++ {
		c := Confidence(cfg, count)
		if c < prev {
			t.Fatalf("confidence decreased at %d: %v < %v", count, c, prev)
		}
		prev = c
	}
}

func TestDecayMonotonicAndFloored(t *testing.T) {
	cfg := DefaultConfig()
	decided := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.InDelta(t, 1.0, Decay(cfg, &decided, decided), 1e-9)
	assert.InDelta(t, 0.75, Decay(cfg, &decided, decided.Add(60*24*time.Hour)), 1e-9)

	prev := 1.0
	for days := 0; days <= 3650; days += 30 {
		d := Decay(cfg, &decided, decided.Add(time.Duration(days)*24*time.Hour))
		require.LessOrEqual(t, d, prev)
		require.GreaterOrEqual(t, d, cfg.DecayFloor)
		prev = d
	}
	assert.InDelta(t, cfg.DecayFloor, prev, 1e-6)
}

func TestHotScoreTracksDecay(t *testing.T) {
	cfg := DefaultConfig()
	decided := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ratings := []int{10, 10, 10, 10, 10}

	fresh := Calculate(ratings, &decided, decided, cfg)
	aged := Calculate(ratings, &decided, decided.Add(120*24*time.Hour), cfg)

	assert.Equal(t, 100, fresh.HotIndexedScore)
	assert.Equal(t, fresh.IndexedScore, aged.IndexedScore)
	assert.Less(t, aged.HotScore, fresh.HotScore)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cases := map[string]func(*Config){
		"half life":    func(c *Config) { c.HalfLifeDays = 0 },
		"floor":        func(c *Config) { c.DecayFloor = 1.5 },
		"min listen":   func(c *Config) { c.MinListenSeconds = -1 },
		"min ranking":  func(c *Config) { c.MinReviewsForRanking = -1 },
		"no tiers":     func(c *Config) { c.ConfidenceTiers = nil },
		"dup tier":     func(c *Config) { c.ConfidenceTiers[1].MinReviews = 2 },
		"decreasing":   func(c *Config) { c.ConfidenceTiers[3].Multiplier = 0.1 },
		"zero reviews": func(c *Config) { c.ConfidenceTiers[0].MinReviews = 0 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestGenreMismatch(t *testing.T) {
	assert.False(t, GenreMismatch(nil, []string{"rock"}))
	assert.False(t, GenreMismatch([]string{"jazz", "blues"}, []string{"blues"}))
	assert.True(t, GenreMismatch([]string{"jazz"}, []string{"rock"}))
	assert.True(t, GenreMismatch([]string{"jazz"}, nil))
}

func TestNormalizeGenres(t *testing.T) {
	assert.Equal(t, []string{"hip-hop", "indie-rock"}, NormalizeGenres([]string{"Indie Rock", " hip hop", "indie-rock", ""}))
}
