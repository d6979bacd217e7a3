package qreview

import (
	"slices"

	"github.com/abelzeko/qreview-importer/internal/entities"
)

// verticalSet merges the fragments of each vertical, which arrive from the
// warnings, quality issues and time series sections in any order.
type verticalSet struct {
	byNumber map[int]*entities.Vertical
	ordered  []*entities.Vertical
}

func newVerticalSet() *verticalSet {
	return &verticalSet{byNumber: make(map[int]*entities.Vertical)}
}

// FetchOrCreate returns the vertical with the given number, registering an
// empty one on first reference.
func (vs *verticalSet) FetchOrCreate(number int) *entities.Vertical {
	if v, ok := vs.byNumber[number]; ok {
		return v
	}

	v := &entities.Vertical{Number: number}
	vs.byNumber[number] = v
	vs.ordered = append(vs.ordered, v)
	return v
}

// Finalize drops verticals the time series never described and orders the
// rest by position. Equal positions keep their encounter order.
func (vs *verticalSet) Finalize() []*entities.Vertical {
	verticals := make([]*entities.Vertical, 0, len(vs.ordered))
	for _, v := range vs.ordered {
		if v.Points > 0 || v.Position != nil {
			verticals = append(verticals, v)
		}
	}

	slices.SortStableFunc(verticals, func(a, b *entities.Vertical) int {
		return comparePositions(a.Position, b.Position)
	})

	return verticals
}

// comparePositions orders absent positions first.
func comparePositions(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}
