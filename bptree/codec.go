package bptree

import "encoding/binary"

// Order compares two keys, returning <0, 0, >0 like bytes.Compare. The tree
// never compares keys itself — every ordering decision goes through the
// Order a tree is opened with, so K can be anything with a total order.
type Order[K any] func(a, b K) int

// KeyCodec (de)serializes a fixed-width key to and from the raw bytes of a
// node's key slot. Size must be constant across the codec's lifetime: it is
// baked into a tree's on-disk layout the moment the tree is created.
type KeyCodec[K any] struct {
	Size   int
	Encode func(k K, dst []byte)
	Decode func(src []byte) K
}

// RID is the fixed-width value type every leaf slot stores: a record
// identifier opaque to the tree itself, wide enough to carry a page id and
// a slot offset packed by the caller however it likes.
type RID uint64

// Int32Codec stores keys as 4-byte little-endian signed 32-bit integers.
// Their order comes from CompareInt32, not from the encoded bytes.
func Int32Codec() KeyCodec[int32] {
	return KeyCodec[int32]{
		Size: 4,
		Encode: func(k int32, dst []byte) {
			binary.LittleEndian.PutUint32(dst, uint32(k))
		},
		Decode: func(src []byte) int32 {
			return int32(binary.LittleEndian.Uint32(src))
		},
	}
}

// Int64Codec stores keys as 8-byte little-endian signed 64-bit integers.
// Their order comes from CompareInt64, not from the encoded bytes.
func Int64Codec() KeyCodec[int64] {
	return KeyCodec[int64]{
		Size: 8,
		Encode: func(k int64, dst []byte) {
			binary.LittleEndian.PutUint64(dst, uint64(k))
		},
		Decode: func(src []byte) int64 {
			return int64(binary.LittleEndian.Uint64(src))
		},
	}
}

// CompareInt32 is the natural Order for Int32Codec keys.
func CompareInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CompareInt64 is the natural Order for Int64Codec keys.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FixedBytesCodec4 stores a key as its raw 4 bytes, compared lexicographically.
func FixedBytesCodec4() KeyCodec[[4]byte] {
	return KeyCodec[[4]byte]{
		Size:   4,
		Encode: func(k [4]byte, dst []byte) { copy(dst, k[:]) },
		Decode: func(src []byte) [4]byte { var k [4]byte; copy(k[:], src); return k },
	}
}

// FixedBytesCodec8 stores a key as its raw 8 bytes, compared lexicographically.
func FixedBytesCodec8() KeyCodec[[8]byte] {
	return KeyCodec[[8]byte]{
		Size:   8,
		Encode: func(k [8]byte, dst []byte) { copy(dst, k[:]) },
		Decode: func(src []byte) [8]byte { var k [8]byte; copy(k[:], src); return k },
	}
}

// FixedBytesCodec16 stores a key as its raw 16 bytes, compared lexicographically.
func FixedBytesCodec16() KeyCodec[[16]byte] {
	return KeyCodec[[16]byte]{
		Size:   16,
		Encode: func(k [16]byte, dst []byte) { copy(dst, k[:]) },
		Decode: func(src []byte) [16]byte { var k [16]byte; copy(k[:], src); return k },
	}
}

// FixedBytesCodec32 stores a key as its raw 32 bytes, compared lexicographically.
func FixedBytesCodec32() KeyCodec[[32]byte] {
	return KeyCodec[[32]byte]{
		Size:   32,
		Encode: func(k [32]byte, dst []byte) { copy(dst, k[:]) },
		Decode: func(src []byte) [32]byte { var k [32]byte; copy(k[:], src); return k },
	}
}

// FixedBytesCodec64 stores a key as its raw 64 bytes, compared lexicographically.
func FixedBytesCodec64() KeyCodec[[64]byte] {
	return KeyCodec[[64]byte]{
		Size:   64,
		Encode: func(k [64]byte, dst []byte) { copy(dst, k[:]) },
		Decode: func(src []byte) [64]byte { var k [64]byte; copy(k[:], src); return k },
	}
}

// CompareBytes4 orders [4]byte keys lexicographically.
func CompareBytes4(a, b [4]byte) int { return compareSlice(a[:], b[:]) }

// CompareBytes8 orders [8]byte keys lexicographically.
func CompareBytes8(a, b [8]byte) int { return compareSlice(a[:], b[:]) }

// CompareBytes16 orders [16]byte keys lexicographically.
func CompareBytes16(a, b [16]byte) int { return compareSlice(a[:], b[:]) }

// CompareBytes32 orders [32]byte keys lexicographically.
func CompareBytes32(a, b [32]byte) int { return compareSlice(a[:], b[:]) }

// CompareBytes64 orders [64]byte keys lexicographically.
func CompareBytes64(a, b [64]byte) int { return compareSlice(a[:], b[:]) }

func compareSlice(a, b []byte) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
