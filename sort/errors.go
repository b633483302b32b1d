package sort

import "errors"

// ErrCapacityExceeded is returned when the caller's buffer budget
// (cfg.BufferSizeInBlocks) cannot support even the minimum viable
// width for the strategy being constructed — one heap slot for
// replacement selection, or a two-way fan-in for the bounded merge.
// The sort package cannot return embeddb.ErrCapacityExceeded directly
// (importing the root package would create a cycle); callers across
// that boundary should check errors.Is(err, sort.ErrCapacityExceeded)
// and translate it.
var ErrCapacityExceeded = errors.New("sort: capacity exceeded")
