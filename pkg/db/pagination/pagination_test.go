package pagination

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
)

func TestCursorTokens(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cursor, err := DecodeCursor(EncodeCursor(Cursor{ID: 42, CreatedAt: at}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != 42 || !cursor.CreatedAt.Equal(at) {
		t.Fatalf("unexpected cursor %+v", cursor)
	}

	if c, err := DecodeCursor("  "); err != nil || c != nil {
		t.Fatalf("expected empty token to mean first page, got %+v %v", c, err)
	}
	for _, bad := range []string{"%%%", EncodeCursor(Cursor{})} {
		if _, err := DecodeCursor(bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected invalid token, got %v", bad, err)
		}
	}
}

func TestPage(t *testing.T) {
	rows := []snowflake.ID{3, 2, 1}
	byID := func(id snowflake.ID) Cursor { return Cursor{ID: id} }

	page, info := Page(rows, 2, byID)
	if len(page) != 2 || !info.HasMore {
		t.Fatalf("unexpected page %v %+v", page, info)
	}
	next, err := DecodeCursor(info.NextPageToken)
	if err != nil || next.ID != 2 {
		t.Fatalf("expected cursor at 2, got %+v %v", next, err)
	}

	page, info = Page(rows, 5, byID)
	if len(page) != 3 || info.HasMore || info.NextPageToken != "" {
		t.Fatalf("unexpected last page %v %+v", page, info)
	}
}

func TestSize(t *testing.T) {
	cases := map[int]int{0: 50, -3: 50, 10: 10, 900: 250}
	for in, want := range cases {
		if got := (Pagination{PageSize: in}).Size(50, 250); got != want {
			t.Fatalf("size %d: want %d got %d", in, want, got)
		}
	}
}
