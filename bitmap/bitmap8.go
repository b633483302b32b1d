package bitmap

import "encoding/binary"

// Bitmap8 is an 8-bucket (1-byte) bitmap translated directly from the
// original C implementation's
// updateBitmapInt8/inBitmapInt8/buildBitmapInt8FromRange. The buckets are
// not of equal width; they run high-to-low from the MSB: bit 7 covers
// values < 10, bits 6 through 2 cover [10,20), [20,30), [30,40), [40,50)
// and [50,60), bit 1 covers [60,100), and bit 0 covers values >= 100.
type Bitmap8 struct{}

var bitmap8Bounds = [7]int32{10, 20, 30, 40, 50, 60, 100}

func (Bitmap8) Size() int { return 1 }

func bucketBitInt8(val int32) uint8 {
	for i, bound := range bitmap8Bounds {
		if val < bound {
			return uint8(1) << uint(7-i)
		}
	}
	return 1
}

func (Bitmap8) Update(value []byte, bm []byte) {
	val := int32(int16(binary.LittleEndian.Uint16(value)))
	bm[0] |= bucketBitInt8(val)
}

func (Bitmap8) In(value []byte, bm []byte) bool {
	val := int32(int16(binary.LittleEndian.Uint16(value)))
	return bucketBitInt8(val)&bm[0] != 0
}

func (Bitmap8) BuildFromRange(min, max []byte, bm []byte) {
	if min == nil && max == nil {
		bm[0] = 0xFF
		return
	}

	var minMap, maxMap uint8
	if min != nil {
		minMap = bucketBitInt8(int32(int16(binary.LittleEndian.Uint16(min))))
		// Turn on all bits below the bit for min (lsb side holds the
		// higher values, so "below" in bucket order means the lower
		// bits of the byte).
		minMap = minMap | (minMap - 1)
		if max == nil {
			bm[0] = minMap
			return
		}
	}
	if max != nil {
		maxMap = bucketBitInt8(int32(int16(binary.LittleEndian.Uint16(max))))
		// Turn on all bits above the bit for max (msb side holds the
		// lower values).
		maxMap = ^(maxMap - 1)
		if min == nil {
			bm[0] = maxMap
			return
		}
	}
	bm[0] = minMap & maxMap
}
