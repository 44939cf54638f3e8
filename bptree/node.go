package bptree

import (
	"encoding/binary"

	"bptreedb/storage/page"
)

// Node layout, grounded on the fixed-offset accessor style of
// NikolasRummel's btpage/pbtree (other_examples): no decode-to-struct
// round trip, just direct binary.LittleEndian reads and writes against the
// page's own byte slice.
//
// Common header (both node types), bytes [0:9):
//   [0]     page type (page.Type)
//   [1:5)   size   (uint32, number of occupied slots)
//   [5:9)   max size (uint32, configured at construction)
//
// Leaf header adds, bytes [9:13):
//   [9:13)  next page id (uint32, page.InvalidID if none)
//
// Internal slot i, starting at commonHeaderSize + i*(keySize+4):
//   key (keySize bytes) then child page id (uint32). Slot 0's key is
//   never read for comparisons — spec's "ignored" entry — but is not
//   special-cased in the byte layout.
//
// Leaf slot i, starting at leafHeaderSize + i*(keySize+8):
//   key (keySize bytes) then value (uint64 RID).
const (
	commonHeaderSize = 9
	leafHeaderSize   = commonHeaderSize + 4
)

func pageKind(data []byte) page.Type    { return page.Type(data[0]) }
func setPageKind(data []byte, t page.Type) { data[0] = byte(t) }

func nodeSize(data []byte) int { return int(binary.LittleEndian.Uint32(data[1:5])) }
func setNodeSize(data []byte, n int) {
	binary.LittleEndian.PutUint32(data[1:5], uint32(n))
}

func nodeMaxSize(data []byte) int { return int(binary.LittleEndian.Uint32(data[5:9])) }
func setNodeMaxSize(data []byte, n int) {
	binary.LittleEndian.PutUint32(data[5:9], uint32(n))
}

func leafNextPageID(data []byte) uint32 { return binary.LittleEndian.Uint32(data[9:13]) }
func setLeafNextPageID(data []byte, id uint32) {
	binary.LittleEndian.PutUint32(data[9:13], id)
}

func internalSlotOffset(keySize, i int) int { return commonHeaderSize + i*(keySize+4) }
func leafSlotOffset(keySize, i int) int     { return leafHeaderSize + i*(keySize+8) }

func internalSlotWidth(keySize int) int { return keySize + 4 }
func leafSlotWidth(keySize int) int     { return keySize + 8 }

// minSize is spec invariant 2's occupancy floor: ceil(maxSize/2).
func minSize(maxSize int) int { return (maxSize + 1) / 2 }

// keyAt returns the key stored in slot i of a node, whatever its kind.
func (t *BTree[K]) keyAt(data []byte, i int) K {
	off := t.slotKeyOffset(data, i)
	return t.codec.Decode(data[off : off+t.codec.Size])
}

func (t *BTree[K]) setKeyAt(data []byte, i int, k K) {
	off := t.slotKeyOffset(data, i)
	t.codec.Encode(k, data[off:off+t.codec.Size])
}

func (t *BTree[K]) slotKeyOffset(data []byte, i int) int {
	if pageKind(data) == page.TypeLeaf {
		return leafSlotOffset(t.codec.Size, i)
	}
	return internalSlotOffset(t.codec.Size, i)
}

func (t *BTree[K]) childAt(data []byte, i int) uint32 {
	off := internalSlotOffset(t.codec.Size, i) + t.codec.Size
	return binary.LittleEndian.Uint32(data[off : off+4])
}

func (t *BTree[K]) setChildAt(data []byte, i int, id uint32) {
	off := internalSlotOffset(t.codec.Size, i) + t.codec.Size
	binary.LittleEndian.PutUint32(data[off:off+4], id)
}

func (t *BTree[K]) valueAt(data []byte, i int) RID {
	off := leafSlotOffset(t.codec.Size, i) + t.codec.Size
	return RID(binary.LittleEndian.Uint64(data[off : off+8]))
}

func (t *BTree[K]) setValueAt(data []byte, i int, v RID) {
	off := leafSlotOffset(t.codec.Size, i) + t.codec.Size
	binary.LittleEndian.PutUint64(data[off:off+8], uint64(v))
}

func (t *BTree[K]) initLeaf(data []byte, maxSize int) {
	setPageKind(data, page.TypeLeaf)
	setNodeSize(data, 0)
	setNodeMaxSize(data, maxSize)
	setLeafNextPageID(data, page.InvalidID)
}

func (t *BTree[K]) initInternal(data []byte, maxSize int) {
	setPageKind(data, page.TypeInternal)
	setNodeSize(data, 0)
	setNodeMaxSize(data, maxSize)
}

// leafInsertSlot opens a gap at i by shifting slots [i, size) one to the
// right. copy() on a Go slice is memmove-safe for overlapping ranges in
// either direction, so this is correct regardless of i's position.
func (t *BTree[K]) leafInsertSlot(data []byte, i, size int) {
	w := leafSlotWidth(t.codec.Size)
	src := leafSlotOffset(t.codec.Size, i)
	dst := leafSlotOffset(t.codec.Size, i+1)
	n := (size - i) * w
	copy(data[dst:dst+n], data[src:src+n])
}

// leafRemoveSlot closes the gap at i by shifting slots (i, size) left by one.
func (t *BTree[K]) leafRemoveSlot(data []byte, i, size int) {
	w := leafSlotWidth(t.codec.Size)
	dst := leafSlotOffset(t.codec.Size, i)
	src := leafSlotOffset(t.codec.Size, i+1)
	n := (size - i - 1) * w
	copy(data[dst:dst+n], data[src:src+n])
}

func (t *BTree[K]) internalInsertSlot(data []byte, i, size int) {
	w := internalSlotWidth(t.codec.Size)
	src := internalSlotOffset(t.codec.Size, i)
	dst := internalSlotOffset(t.codec.Size, i+1)
	n := (size - i) * w
	copy(data[dst:dst+n], data[src:src+n])
}

func (t *BTree[K]) internalRemoveSlot(data []byte, i, size int) {
	w := internalSlotWidth(t.codec.Size)
	dst := internalSlotOffset(t.codec.Size, i)
	src := internalSlotOffset(t.codec.Size, i+1)
	n := (size - i - 1) * w
	copy(data[dst:dst+n], data[src:src+n])
}

// copyLeafSlots blits n whole slots from src[srcFrom:] to dst[dstFrom:],
// used when redistributing or merging siblings.
func (t *BTree[K]) copyLeafSlots(dst []byte, dstFrom int, src []byte, srcFrom, n int) {
	w := leafSlotWidth(t.codec.Size)
	d := leafSlotOffset(t.codec.Size, dstFrom)
	s := leafSlotOffset(t.codec.Size, srcFrom)
	copy(dst[d:d+n*w], src[s:s+n*w])
}

func (t *BTree[K]) copyInternalSlots(dst []byte, dstFrom int, src []byte, srcFrom, n int) {
	w := internalSlotWidth(t.codec.Size)
	d := internalSlotOffset(t.codec.Size, dstFrom)
	s := internalSlotOffset(t.codec.Size, srcFrom)
	copy(dst[d:d+n*w], src[s:s+n*w])
}
