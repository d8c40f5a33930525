// Package timeline decides when cards and articles are released against an exhibit's clock.
package timeline

import "sort"

// Coordinate is a (Move, Inject) position on the exercise timeline.
type Coordinate struct {
	Move   int `json:"move"`
	Inject int `json:"inject"`
}

// Less orders coordinates lexicographically by Move, then Inject.
func (c Coordinate) Less(o Coordinate) bool {
	if c.Move != o.Move {
		return c.Move < o.Move
	}
	return c.Inject < o.Inject
}

// ReleasedAt reports whether an item at c is visible when the clock reads clock.
func (c Coordinate) ReleasedAt(clock Coordinate) bool {
	return IsReleased(c.Move, c.Inject, clock.Move, clock.Inject)
}

// IsReleased: earlier moves are always released, the current move up to and including the current inject.
func IsReleased(itemMove, itemInject, currentMove, currentInject int) bool {
	return itemMove < currentMove || (itemMove == currentMove && itemInject <= currentInject)
}

// Filter keeps the items of s released at clock, preserving order.
func Filter[T any](s []T, at func(T) Coordinate, clock Coordinate) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if at(v).ReleasedAt(clock) {
			out = append(out, v)
		}
	}
	return out
}

// SortNewestFirst orders s descending by coordinate. Used for user-facing feeds.
func SortNewestFirst[T any](s []T, at func(T) Coordinate) {
	sort.SliceStable(s, func(i, j int) bool { return at(s[j]).Less(at(s[i])) })
}

// SortOldestFirst orders s ascending by coordinate. Used for authoring lists.
func SortOldestFirst[T any](s []T, at func(T) Coordinate) {
	sort.SliceStable(s, func(i, j int) bool { return at(s[i]).Less(at(s[j])) })
}
