package bitmap

import "encoding/binary"

// Bitmap16 is a 16-bucket (2-byte) bitmap over a 15-step temperature-like
// domain (Fahrenheit, scaled by 10), translated from the original's
// updateBitmapInt16/inBitmapInt16. Base is 32.0F, step size 3.0F.
type Bitmap16 struct{}

const (
	bitmap16StepSize = 450 / 15 // matches original's integer division
	bitmap16MinBase  = 320
)

func (Bitmap16) Size() int { return 2 }

func bucketBitInt16(val int32) uint16 {
	current := int32(bitmap16MinBase)
	num := uint16(32768)
	for val > current {
		current += bitmap16StepSize
		num /= 2
	}
	if num == 0 {
		num = 1
	}
	return num
}

func (Bitmap16) Update(value []byte, bm []byte) {
	val := int32(binary.LittleEndian.Uint32(value))
	num := binary.LittleEndian.Uint16(bm)
	num |= bucketBitInt16(val)
	binary.LittleEndian.PutUint16(bm, num)
}

func (Bitmap16) In(value []byte, bm []byte) bool {
	val := int32(binary.LittleEndian.Uint32(value))
	summary := binary.LittleEndian.Uint16(bm)
	return bucketBitInt16(val)&summary != 0
}

// BuildFromRange uses the corrected bucket function for the 16-bit
// domain. The original C source's buildBitmapInt16FromRange calls the
// 8-bit updateBitmapInt8 helper by mistake (a copy-paste artifact); that
// would break the one-sided correctness property this package is tested
// against (spec §8), so it is fixed here to use the matching 16-bit
// bucketization.
func (Bitmap16) BuildFromRange(min, max []byte, bm []byte) {
	if min == nil && max == nil {
		binary.LittleEndian.PutUint16(bm, 0xFFFF)
		return
	}

	var minMap, maxMap uint16
	if min != nil {
		minMap = bucketBitInt16(int32(binary.LittleEndian.Uint32(min)))
		minMap = minMap | (minMap - 1)
		if max == nil {
			binary.LittleEndian.PutUint16(bm, minMap)
			return
		}
	}
	if max != nil {
		maxMap = bucketBitInt16(int32(binary.LittleEndian.Uint32(max)))
		maxMap = ^(maxMap - 1)
		if min == nil {
			binary.LittleEndian.PutUint16(bm, maxMap)
			return
		}
	}
	binary.LittleEndian.PutUint16(bm, minMap&maxMap)
}
