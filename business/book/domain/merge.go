package domain

// Merge combines two per-exchange books into a single consolidated book of
// at most depth levels per side. Levels keep their venue tag. On full
// (price, amount) ties a's levels precede b's. The spread is recomputed
// from the merged tops and may be negative when the venues cross.
func Merge(a, b Book, depth int) Book {
	bids := make([]Level, 0, len(a.Bids)+len(b.Bids))
	bids = append(bids, a.Bids...)
	bids = append(bids, b.Bids...)

	asks := make([]Level, 0, len(a.Asks)+len(b.Asks))
	asks = append(asks, a.Asks...)
	asks = append(asks, b.Asks...)

	merged := Book{
		Bids: SortLevels(bids, depth, false),
		Asks: SortLevels(asks, depth, true),
	}
	merged.Spread = ComputeSpread(merged.Bids, merged.Asks)

	return merged
}
