// Package spline implements the incremental piecewise-linear key→page
// locator (spec component C3): a Sandwich/GreedySpline model built
// during inserts with a configurable max absolute error, queried by
// binary search over spline knots. Knots are stored as a slice of
// (key, pageId) pairs — the same "append-only, sparse, sorted mapping"
// shape as the teacher's sst index block, generalized from a discrete
// offset/size pair to an interpolated line.
package spline

import (
	"sort"

	"github.com/flashdb/embeddb/bitmap"
)

// Knot is one spline control point.
type Knot struct {
	Key  []byte
	Page uint32
}

// Spline maintains knots with the guarantee that for any ingested point
// (key, page), interpolating between the surrounding knots yields a page
// estimate within maxError of the true value.
type Spline struct {
	compare  bitmap.Comparator
	maxError uint32
	keySize  int

	knots []Knot

	// last two ingested points, used to decide whether the current
	// segment can be extended or a new knot must be emitted.
	havePrev  bool
	prevKey   []byte
	prevPage  uint32
	haveFirst bool
	firstKey  []byte
	firstPage uint32

	haveLast bool
	lastKey  []byte
}

// New constructs an empty Spline. maxError must be >= 0.
func New(keySize int, maxError uint32, compare bitmap.Comparator) *Spline {
	return &Spline{
		compare:  compare,
		maxError: maxError,
		keySize:  keySize,
	}
}

func cloneKey(k []byte) []byte {
	c := make([]byte, len(k))
	copy(c, k)
	return c
}

// interp computes the interpolated page for key given two knots
// (k0,p0) and (k1,p1), k0 <= key <= k1, treating keys as little-endian
// unsigned integers of keySize bytes (the engine's monotone timestamp
// assumption makes this a safe, allocation-free interpolation without a
// generic bigint path).
func (s *Spline) interp(k0 []byte, p0 uint32, k1 []byte, p1 uint32, key []byte) uint32 {
	x0, x1, x := keyToUint64(k0), keyToUint64(k1), keyToUint64(key)
	if x1 == x0 {
		return p0
	}
	num := (x - x0) * uint64(p1-p0)
	return p0 + uint32(num/(x1-x0))
}

func keyToUint64(k []byte) uint64 {
	var v uint64
	for i := len(k) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(k[i])
	}
	return v
}

// Add ingests a new (key, page) point. key must be strictly greater than
// every previously added key (monotone insert order, per spec §3).
func (s *Spline) Add(key []byte, page uint32) {
	key = cloneKey(key)

	if len(s.knots) == 0 {
		s.knots = append(s.knots, Knot{Key: key, Page: page})
		s.havePrev = true
		s.prevKey = key
		s.prevPage = page
		s.haveLast = true
		s.lastKey = key
		return
	}

	last := s.knots[len(s.knots)-1]

	// Check whether extending the line from `last` through (key,page)
	// keeps every previously seen point within maxError. We only need to
	// check the immediately preceding ingested point, since the error
	// bound is monotone along a single segment for a convex corridor
	// (standard GreedySpline property).
	estimate := s.interp(last.Key, last.Page, key, page, s.prevKey)
	var diff uint32
	if estimate > s.prevPage {
		diff = estimate - s.prevPage
	} else {
		diff = s.prevPage - estimate
	}

	if diff <= s.maxError {
		// Still within corridor: do not emit a new knot yet, just
		// remember this point as the new "last seen" for next check.
	} else {
		// Corridor violated: the previous point becomes a durable knot.
		s.knots = append(s.knots, Knot{Key: s.prevKey, Page: s.prevPage})
	}

	s.prevKey = key
	s.prevPage = page
	s.haveLast = true
	s.lastKey = key
}

// Flush commits the most recently ingested point as a knot if it is not
// already one. Call this before Locate after a burst of Add calls to
// ensure the tail of the key space is queryable.
func (s *Spline) Flush() {
	if !s.havePrev {
		return
	}
	if len(s.knots) == 0 {
		s.knots = append(s.knots, Knot{Key: s.prevKey, Page: s.prevPage})
		return
	}
	last := s.knots[len(s.knots)-1]
	if s.compare(last.Key, s.prevKey) != 0 {
		s.knots = append(s.knots, Knot{Key: s.prevKey, Page: s.prevPage})
	}
}

// Locate returns [lowPage, highPage] bracketing key, with
// highPage-lowPage <= 2*maxError+1. Callers perform page-level binary
// search within this window.
func (s *Spline) Locate(key []byte) (low, high uint32, ok bool) {
	if len(s.knots) == 0 {
		return 0, 0, false
	}

	idx := sort.Search(len(s.knots), func(i int) bool {
		return s.compare(s.knots[i].Key, key) > 0
	})

	var estimate uint32
	switch {
	case idx == 0:
		estimate = s.knots[0].Page
	case idx >= len(s.knots):
		// key falls in (or past) the still-open tail segment: the most
		// recently ingested point hasn't broken the error corridor yet,
		// so it isn't a committed knot, but interpolating against it
		// (rather than flatly returning the last knot's page) is what
		// keeps the error bound honest for pages sealed since the last
		// knot was emitted.
		last := s.knots[len(s.knots)-1]
		if s.havePrev && s.compare(s.prevKey, last.Key) != 0 {
			estimate = s.interp(last.Key, last.Page, s.prevKey, s.prevPage, key)
		} else {
			estimate = last.Page
		}
	default:
		estimate = s.interp(s.knots[idx-1].Key, s.knots[idx-1].Page, s.knots[idx].Key, s.knots[idx].Page, key)
	}

	if estimate > s.maxError {
		low = estimate - s.maxError
	} else {
		low = 0
	}
	high = estimate + s.maxError
	return low, high, true
}

// Trim removes the leading knots strictly less than minLiveKey except the
// last of them, per the wrap-around reclamation policy (spec §3, §4.3).
func (s *Spline) Trim(minLiveKey []byte) {
	cut := 0
	for cut < len(s.knots) && s.compare(s.knots[cut].Key, minLiveKey) < 0 {
		cut++
	}
	if cut > 0 {
		// Always keep one knot at or before minLiveKey so interpolation
		// for the new head page remains well defined.
		cut--
	}
	if cut > 0 {
		s.knots = append([]Knot(nil), s.knots[cut:]...)
	}
}

// Len reports the current knot count.
func (s *Spline) Len() int { return len(s.knots) }

// Knots exposes a read-only view for recovery/diagnostics.
func (s *Spline) Knots() []Knot { return s.knots }
