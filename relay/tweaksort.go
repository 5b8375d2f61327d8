package relay

// indexPtr pairs a recv-cache slot index, as read off the wire, with
// the position in the output block its resolved transaction belongs
// at.
type indexPtr struct {
	index int
	pos   int
}

// tweakSort sorts ptrs[start:end] in place, ascending by an index
// adjusted for removals that will happen earlier in the pass: each
// entry's stored index is reduced by the number of entries from the
// other half that will be consumed ahead of it. This is what lets the
// caller walk the sorted output and call remove_by_index once per
// entry, in strictly non-decreasing order, against a cache that is
// shrinking as it goes.
func tweakSort(ptrs []indexPtr, start, end int) {
	if start+1 >= end {
		return
	}

	split := (end-start)/2 + start
	tweakSort(ptrs, start, split)
	tweakSort(ptrs, split, end)

	left := make([]indexPtr, split-start)
	copy(left, ptrs[start:split])

	j, k := 0, split
	for i := start; i < end; i++ {
		if j < len(left) && (k >= end || left[j].index-(k-split) <= ptrs[k].index-j) {
			ptrs[i] = left[j]
			ptrs[i].index -= k - split
			j++
		} else {
			ptrs[i] = ptrs[k]
			ptrs[i].index -= j
			k++
		}
	}
}
