package indexer

// confirmedHead is the highest block old enough to be processed.
// It reports false while the chain is shorter than the confirmation depth.
func confirmedHead(latest, finality uint64) (uint64, bool) {
	if latest < finality {
		return 0, false
	}
	return latest - finality, true
}

// nextRange returns the blocks to process in one scan, capped at batch.
// ok is false when the cursor has caught up with the confirmed head.
func nextRange(current, latest, finality uint64, batch int) (from, to uint64, ok bool) {
	head, ok := confirmedHead(latest, finality)
	if !ok || current >= head {
		return 0, 0, false
	}
	from = current + 1
	to = head
	if batch > 0 && to-from+1 > uint64(batch) {
		to = from + uint64(batch) - 1
	}
	return from, to, true
}
