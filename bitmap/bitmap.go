// Package bitmap implements the per-page value-domain summary (spec
// component C4): a compact, fixed-width, one-sided filter used both
// inline in data-page headers and replicated into sparse index pages.
//
// Bucketization is caller-supplied; the engine treats a Bitmap only as
// this capability set. The on-disk representation is a fixed-width raw
// byte buffer exactly bitmapSize bytes long; see DESIGN.md for why this
// package uses plain bit arithmetic rather than a general-purpose bitset
// library.
package bitmap

// Bitmap is the capability set the engine depends on. Update and In
// operate on a single value against a single page's summary bytes.
// BuildFromRange produces a query summary covering every bucket that
// could intersect [min, max] (either bound nil means open).
type Bitmap interface {
	// Size reports bitmapSize in bytes.
	Size() int

	// Update sets the bucket bit for value inside bm (len(bm) == Size()).
	Update(value []byte, bm []byte)

	// In reports whether value's bucket bit is set in bm. It may be
	// false only if value cannot be present in a page whose summary is
	// bm (one-sided correctness).
	In(value []byte, bm []byte) bool

	// BuildFromRange sets every bit whose bucket intersects [min, max]
	// into bm. A nil min or max means that side is open.
	BuildFromRange(min, max []byte, bm []byte)
}

// Union ORs src into dst in place; both must have equal length. Used by
// the data page to accumulate a page-wide bitmap across all of its
// records' Update calls, and by the sparse index to combine data-page
// bitmaps when needed.
func Union(dst, src []byte) {
	for i := range dst {
		dst[i] |= src[i]
	}
}

// Intersects reports whether a and b share any set bit. Used to decide
// whether a data page (or an index entry summarizing one) can be skipped
// by a range query.
func Intersects(a, b []byte) bool {
	for i := range a {
		if a[i]&b[i] != 0 {
			return true
		}
	}
	return false
}
