package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
		{`%_\`, `\%\_\\`},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), "input %q", tt.in)
	}
}

func TestSortColumnWhitelist(t *testing.T) {
	for _, allowed := range []string{"created_at", "updated_at", "due_date", "priority", "title"} {
		col, ok := sortColumns[allowed]
		assert.True(t, ok, "%s should be sortable", allowed)
		assert.Equal(t, allowed, col)
	}

	// Raw SQL never reaches ORDER BY.
	_, ok := sortColumns["id; DROP TABLE tasks"]
	assert.False(t, ok)
	_, ok = sortColumns["user_id"]
	assert.False(t, ok)
}
