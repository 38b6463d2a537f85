package domain

import "sort"

// SortLevels orders levels by price (ascending for asks, descending for
// bids), breaking price ties by amount descending, and truncates the
// result to depth. Full ties keep their input order. The input slice is
// not modified.
func SortLevels(levels []Level, depth int, ascending bool) []Level {
	sorted := make([]Level, len(levels))
	copy(sorted, levels)

	sort.SliceStable(sorted, func(i, j int) bool {
		cmp := sorted[i].Price.Cmp(sorted[j].Price)
		if cmp == 0 {
			// Equal prices rank by amount descending, larger liquidity first.
			return sorted[i].Amount.Cmp(sorted[j].Amount) > 0
		}
		if ascending {
			return cmp < 0
		}
		return cmp > 0
	})

	if depth < len(sorted) {
		sorted = sorted[:depth]
	}

	return sorted
}
