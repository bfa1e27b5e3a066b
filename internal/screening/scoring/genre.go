package scoring

import (
	"sort"
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeGenres slugs, dedupes and sorts a genre list.
func NormalizeGenres(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		normalized := slug.Make(strings.TrimSpace(g))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	sort.Strings(out)
	return out
}

// GenreMismatch reports whether required is non-empty and shares nothing with artist.
func GenreMismatch(required, artist []string) bool {
	if len(required) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(artist))
	for _, g := range artist {
		have[g] = struct{}{}
	}
	for _, g := range required {
		if _, ok := have[g]; ok {
			return false
		}
	}
	return true
}
