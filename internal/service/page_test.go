package service

import (
	"testing"

	"blogpage/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolvePage(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		total    int64
		want     int
		notFound bool
	}{
		{"Default", "", 12, 1, false},
		{"Explicit", "2", 12, 2, false},
		{"Last", "last", 12, 3, false},
		{"Last Of Empty", "last", 0, 1, false},
		{"Empty First Page", "1", 0, 1, false},
		{"Whitespace", " 2 ", 12, 2, false},
		{"Out Of Range", "4", 12, 0, true},
		{"Zero", "0", 12, 0, true},
		{"Negative", "-2", 12, 0, true},
		{"Not A Number", "two", 12, 0, true},
		{"Empty Second Page", "2", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePage(tt.raw, tt.total, PostsPerPage)
			if tt.notFound {
				assert.True(t, models.IsNotFound(err))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageNavigation(t *testing.T) {
	p := newPage([]int{1, 2, 3, 4, 5}, 2, PostsPerPage, 11)
	assert.Equal(t, 3, p.NumPages)
	assert.True(t, p.HasPrevious())
	assert.True(t, p.HasNext())
	assert.True(t, p.HasOtherPages())
	assert.Equal(t, 1, p.PreviousNumber())
	assert.Equal(t, 3, p.NextNumber())

	single := newPage([]int{1}, 1, PostsPerPage, 1)
	assert.False(t, single.HasOtherPages())
}
