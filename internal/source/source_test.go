package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortAscending(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("orders oldest first", func(t *testing.T) {
		items := []Item{
			{ID: "c", PublishedAt: base.Add(2 * time.Hour)},
			{ID: "a", PublishedAt: base},
			{ID: "b", PublishedAt: base.Add(time.Hour)},
		}

		SortAscending(items)

		assert.Equal(t, "a", items[0].ID)
		assert.Equal(t, "b", items[1].ID)
		assert.Equal(t, "c", items[2].ID)
	})

	t.Run("equal timestamps keep input order", func(t *testing.T) {
		items := []Item{
			{ID: "first", PublishedAt: base},
			{ID: "second", PublishedAt: base},
		}

		SortAscending(items)

		assert.Equal(t, "first", items[0].ID)
		assert.Equal(t, "second", items[1].ID)
	})
}

func TestItemPresence(t *testing.T) {
	assert.False(t, Item{}.HasID())
	assert.False(t, Item{}.HasPublishedAt())

	it := Item{ID: "1", PublishedAt: time.Now()}
	assert.True(t, it.HasID())
	assert.True(t, it.HasPublishedAt())
}
