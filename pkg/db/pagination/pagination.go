// Package pagination implements keyset paging over snowflake ids.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrInvalidToken = errors.New("invalid_page_token")

// Pagination is the query-string half of a paged request.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Size clamps the requested page size into [1, max], using def when unset.
func (p Pagination) Size(def, max int) int {
	switch {
	case p.PageSize <= 0:
		return def
	case p.PageSize > max:
		return max
	default:
		return p.PageSize
	}
}

// Cursor marks the last row of a page. CreatedAt is set for listings ordered
// by time; id-ordered listings leave it zero.
type Cursor struct {
	ID        snowflake.ID `json:"id"`
	CreatedAt time.Time    `json:"created_at,omitzero"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor returns nil for an empty token.
func DecodeCursor(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.ID == 0 {
		return nil, ErrInvalidToken
	}
	return &c, nil
}

// Page trims rows fetched with limit size+1 down to size and reports whether
// more rows follow.
func Page[T any](rows []T, size int, cursorOf func(T) Cursor) ([]T, PageInfo) {
	if size <= 0 || len(rows) <= size {
		return rows, PageInfo{}
	}
	rows = rows[:size]
	return rows, PageInfo{
		NextPageToken: EncodeCursor(cursorOf(rows[size-1])),
		HasMore:       true,
	}
}
