package repository

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateErrorKeepsRuneBoundary(t *testing.T) {
	short := "order items missing"
	assert.Equal(t, short, truncateError(short))

	// 1023 ASCII bytes followed by a 3-byte rune straddles the limit
	long := strings.Repeat("a", maxErrorLength-1) + "€" + "tail"
	got := truncateError(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxErrorLength-1), got)

	runes := strings.Repeat("ü", maxErrorLength)
	got = truncateError(runes)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxErrorLength)
	assert.Equal(t, maxErrorLength, len(got))

	assert.Equal(t, "bad", truncateError("b\xffad"))
}
