package registry

import (
	"math"
	"slices"
)

const (
	// HighestPrecedence sorts before every other order value.
	HighestPrecedence = math.MinInt32
	// LowestPrecedence is the order of anything that does not declare one.
	LowestPrecedence = math.MaxInt32
)

// Ordered is implemented by extensions, listeners, runners and exit code
// generators that want a position other than LowestPrecedence.
// Lower values sort first.
type Ordered interface {
	Order() int
}

// OrderOf returns v's declared order, or LowestPrecedence.
func OrderOf(v any) int {
	if o, ok := v.(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// SortStable sorts items by OrderOf in place. Items with equal order keep
// their relative position.
func SortStable[T any](items []T) {
	slices.SortStableFunc(items, func(a, b T) int {
		oa, ob := OrderOf(a), OrderOf(b)
		switch {
		case oa < ob:
			return -1
		case oa > ob:
			return 1
		default:
			return 0
		}
	})
}
