package bitmap

import "encoding/binary"

// Comparator compares two fixed-width, little-endian-encoded values and
// returns -1, 0, or 1, exactly the semantics the engine requires for
// both key and data comparison (spec §3).
type Comparator func(a, b []byte) int

// Int32Comparator is a direct translation of the original's
// int32Comparator: compares the first 4 bytes of a and b as a signed
// little-endian int32.
func Int32Comparator(a, b []byte) int {
	i1 := int32(binary.LittleEndian.Uint32(a))
	i2 := int32(binary.LittleEndian.Uint32(b))
	switch {
	case i1 < i2:
		return -1
	case i1 > i2:
		return 1
	default:
		return 0
	}
}

// UintComparator returns a Comparator for unsigned little-endian
// integers of the given byte width (1, 2, 4, or 8), for keys wider or
// narrower than the original's hard-coded int32 (spec §3 only requires
// "fixed-width integers, typically timestamps").
func UintComparator(width int) Comparator {
	return func(a, b []byte) int {
		return compareUint(a[:width], b[:width])
	}
}

// IntComparator returns a Comparator for signed little-endian integers of
// the given byte width (1, 2, 4, or 8).
func IntComparator(width int) Comparator {
	return func(a, b []byte) int {
		as := signExtend(a[:width])
		bs := signExtend(b[:width])
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	}
}

func compareUint(a, b []byte) int {
	var ua, ub uint64
	switch len(a) {
	case 1:
		ua, ub = uint64(a[0]), uint64(b[0])
	case 2:
		ua, ub = uint64(binary.LittleEndian.Uint16(a)), uint64(binary.LittleEndian.Uint16(b))
	case 4:
		ua, ub = uint64(binary.LittleEndian.Uint32(a)), uint64(binary.LittleEndian.Uint32(b))
	default:
		ua, ub = binary.LittleEndian.Uint64(a), binary.LittleEndian.Uint64(b)
	}
	switch {
	case ua < ub:
		return -1
	case ua > ub:
		return 1
	default:
		return 0
	}
}

func signExtend(v []byte) int64 {
	switch len(v) {
	case 1:
		return int64(int8(v[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(v)))
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(v)))
	default:
		return int64(binary.LittleEndian.Uint64(v))
	}
}
