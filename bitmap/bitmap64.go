package bitmap

import "encoding/binary"

// Bitmap64 is a 64-bucket (8-byte) linear bitmap, one bucket per 1.0F
// step over a temperature-like domain starting at 32.0F, translated from
// the original's updateBitmapInt64/inBitmapInt64.
type Bitmap64 struct{}

const (
	bitmap64StepSize = 10
	bitmap64MinBase  = 320
	bitmap64Size     = 63
)

func (Bitmap64) Size() int { return 8 }

// bucketCount64 returns the 0-based bucket index for val, matching the
// original's count variable (capped at bitmap64Size).
func bucketCount64(val int32) int {
	current := int32(bitmap64MinBase)
	count := 0
	for val > current && count < bitmap64Size {
		current += bitmap64StepSize
		count++
	}
	return count
}

// setBucketBit sets bit `count`, MSB-first across the 8-byte buffer
// (byte count/8, bit 128>>(count&7) within that byte), matching the
// original's char-pointer-offset arithmetic exactly.
func setBucketBit(bm []byte, count int) {
	offset := count / 8
	b := byte(128) >> uint(count&7)
	bm[offset] |= b
}

func (Bitmap64) Update(value []byte, bm []byte) {
	val := int32(binary.LittleEndian.Uint32(value))
	setBucketBit(bm, bucketCount64(val))
}

func (Bitmap64) In(value []byte, bm []byte) bool {
	val := int32(binary.LittleEndian.Uint32(value))
	var tmp [8]byte
	setBucketBit(tmp[:], bucketCount64(val))
	return Intersects(tmp[:], bm)
}

// BuildFromRange uses the corrected 64-bit bucketization (see Bitmap16's
// doc comment for why the original's copy-pasted 8-bit helper is not
// reused here). The open-range "turn on everything below/above" trick
// needs integer semantics, so the 8-byte buffer is treated as a single
// big-endian uint64 while computing it, then written back byte-for-byte
// — the bit ordering (MSB = bucket 0) is the same either way, so this
// round-trips exactly with setBucketBit/Update.
func (Bitmap64) BuildFromRange(min, max []byte, bm []byte) {
	if min == nil && max == nil {
		binary.BigEndian.PutUint64(bm, ^uint64(0))
		return
	}

	bucketMask := func(count int) uint64 {
		return uint64(1) << uint(63-count)
	}

	var minMap, maxMap uint64
	if min != nil {
		minMap = bucketMask(bucketCount64(int32(binary.LittleEndian.Uint32(min))))
		minMap = minMap | (minMap - 1)
		if max == nil {
			binary.BigEndian.PutUint64(bm, minMap)
			return
		}
	}
	if max != nil {
		maxMap = bucketMask(bucketCount64(int32(binary.LittleEndian.Uint32(max))))
		maxMap = ^(maxMap - 1)
		if min == nil {
			binary.BigEndian.PutUint64(bm, maxMap)
			return
		}
	}
	binary.BigEndian.PutUint64(bm, minMap&maxMap)
}
