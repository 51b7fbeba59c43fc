package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPageClamps(t *testing.T) {
	assert.Equal(t, Page{Number: 0, Size: DefaultPageSize}, NewPage(-3, 0))
	assert.Equal(t, Page{Number: 2, Size: MaxPageSize}, NewPage(2, 1000))
}

func TestSlice(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	first := Slice(all, NewPage(0, 2))
	assert.Equal(t, []int{1, 2}, first.Items)
	assert.Equal(t, 3, first.TotalPages)
	assert.True(t, first.HasNext)
	assert.False(t, first.HasPrevious)

	last := Slice(all, NewPage(2, 2))
	assert.Equal(t, []int{5}, last.Items)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrevious)

	beyond := Slice(all, NewPage(9, 2))
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
}

func TestNewerBreaksTiesByID(t *testing.T) {
	now := time.Now()
	a := Message{ID: 2, CreatedAt: now}
	b := Message{ID: 1, CreatedAt: now}
	c := Message{ID: 1, CreatedAt: now.Add(time.Second)}

	assert.True(t, Newer(a, b))
	assert.False(t, Newer(b, a))
	assert.True(t, Newer(c, a))
}
