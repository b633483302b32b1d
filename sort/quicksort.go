package sort

// Quicksort orders n fixed-width records packed contiguously in buf
// (buf[i*recordSize:(i+1)*recordSize] is record i) using a Hoare
// partition scheme, the in-memory ordering step every strategy in this
// package falls back on once a run fits in a single working buffer.
func Quicksort(buf []byte, n int, recordSize int, cmp Comparator) {
	if n < 2 {
		return
	}
	quicksortRange(buf, 0, n-1, recordSize, cmp)
}

func quicksortRange(buf []byte, lo, hi int, recordSize int, cmp Comparator) {
	for lo < hi {
		// Small ranges cost more to recurse into than to finish with a
		// couple of passes of insertion sort.
		if hi-lo < 12 {
			insertionSort(buf, lo, hi, recordSize, cmp)
			return
		}

		p := hoarePartition(buf, lo, hi, recordSize, cmp)

		// Recurse into the smaller side, loop on the larger, to bound
		// stack depth at O(log n) even on adversarial input.
		if p-lo < hi-p-1 {
			quicksortRange(buf, lo, p, recordSize, cmp)
			lo = p + 1
		} else {
			quicksortRange(buf, p+1, hi, recordSize, cmp)
			hi = p
		}
	}
}

func hoarePartition(buf []byte, lo, hi int, recordSize int, cmp Comparator) int {
	mid := lo + (hi-lo)/2
	medianOfThree(buf, lo, mid, hi, recordSize, cmp)
	pivot := make([]byte, recordSize)
	copy(pivot, record(buf, lo, recordSize))

	i, j := lo-1, hi+1
	for {
		for {
			i++
			if cmp(record(buf, i, recordSize), pivot) >= 0 {
				break
			}
		}
		for {
			j--
			if cmp(record(buf, j, recordSize), pivot) <= 0 {
				break
			}
		}
		if i >= j {
			return j
		}
		swapRecords(buf, i, j, recordSize)
	}
}

// medianOfThree orders buf[a], buf[mid], buf[hi] in place and leaves the
// median at a, so hoarePartition's pivot is never the smallest or
// largest of the three and degenerates less often on sorted input.
func medianOfThree(buf []byte, a, mid, hi int, recordSize int, cmp Comparator) {
	if cmp(record(buf, mid, recordSize), record(buf, a, recordSize)) < 0 {
		swapRecords(buf, mid, a, recordSize)
	}
	if cmp(record(buf, hi, recordSize), record(buf, a, recordSize)) < 0 {
		swapRecords(buf, hi, a, recordSize)
	}
	if cmp(record(buf, hi, recordSize), record(buf, mid, recordSize)) < 0 {
		swapRecords(buf, hi, mid, recordSize)
	}
	swapRecords(buf, mid, a, recordSize)
}

func insertionSort(buf []byte, lo, hi int, recordSize int, cmp Comparator) {
	tmp := make([]byte, recordSize)
	for i := lo + 1; i <= hi; i++ {
		copy(tmp, record(buf, i, recordSize))
		j := i - 1
		for j >= lo && cmp(record(buf, j, recordSize), tmp) > 0 {
			copy(record(buf, j+1, recordSize), record(buf, j, recordSize))
			j--
		}
		copy(record(buf, j+1, recordSize), tmp)
	}
}

func record(buf []byte, i int, recordSize int) []byte {
	return buf[i*recordSize : (i+1)*recordSize]
}

func swapRecords(buf []byte, i, j int, recordSize int) {
	if i == j {
		return
	}
	a := record(buf, i, recordSize)
	b := record(buf, j, recordSize)
	for k := 0; k < recordSize; k++ {
		a[k], b[k] = b[k], a[k]
	}
}
