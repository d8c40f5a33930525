package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsReleasedBoundaries(t *testing.T) {
	assert.True(t, IsReleased(5, 3, 5, 3), "same coordinate is released")
	assert.False(t, IsReleased(5, 3, 5, 2), "later inject in current move is held")
	assert.True(t, IsReleased(5, 3, 6, 0), "any inject of an earlier move is released")
	assert.False(t, IsReleased(6, 0, 5, 9), "later move is held regardless of inject")
	assert.True(t, IsReleased(0, 0, 0, 0))
}

func TestReleasedSetGrowsWithClock(t *testing.T) {
	var items []Coordinate
	for m := 0; m < 4; m++ {
		for i := 0; i < 4; i++ {
			items = append(items, Coordinate{m, i})
		}
	}
	id := func(c Coordinate) Coordinate { return c }
	for _, lo := range items {
		for _, hi := range items {
			if !lo.Less(hi) {
				continue
			}
			earlier := Filter(items, id, lo)
			later := Filter(items, id, hi)
			assert.GreaterOrEqual(t, len(later), len(earlier))
			for _, c := range earlier {
				assert.True(t, c.ReleasedAt(hi), "%v released at %v but not at %v", c, lo, hi)
			}
			// an item strictly before another is released whenever the later one is
			if hi.ReleasedAt(hi) {
				assert.True(t, lo.ReleasedAt(hi))
			}
		}
	}
}

func TestSortOrders(t *testing.T) {
	id := func(c Coordinate) Coordinate { return c }
	s := []Coordinate{{1, 2}, {0, 5}, {2, 0}, {1, 0}}

	SortNewestFirst(s, id)
	assert.Equal(t, []Coordinate{{2, 0}, {1, 2}, {1, 0}, {0, 5}}, s)

	SortOldestFirst(s, id)
	assert.Equal(t, []Coordinate{{0, 5}, {1, 0}, {1, 2}, {2, 0}}, s)
}

func TestFilterKeepsOrder(t *testing.T) {
	id := func(c Coordinate) Coordinate { return c }
	s := []Coordinate{{3, 0}, {1, 1}, {2, 4}, {2, 1}}
	assert.Equal(t, []Coordinate{{1, 1}, {2, 1}}, Filter(s, id, Coordinate{2, 2}))
}
