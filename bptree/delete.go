package bptree

import (
	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

func (t *BTree[K]) nodeIsSafeForDelete(data []byte, isLeaf bool) bool {
	return nodeSize(data) > t.minSizeFor(isLeaf)
}

func (t *BTree[K]) minSizeFor(isLeaf bool) int {
	if isLeaf {
		return minSize(t.leafMaxSize)
	}
	return minSize(t.internalMaxSize)
}

// canLend reports whether a sibling has an entry to spare without itself
// underflowing.
func (t *BTree[K]) canLend(data []byte, isLeaf bool) bool {
	return nodeSize(data) > t.minSizeFor(isLeaf)
}

// Remove deletes key from the tree, reporting false, with no error, if key
// was not present — spec signals not-found via a bool, never an error.
func (t *BTree[K]) Remove(key K) (bool, error) {
	hw, err := fetchHeaderWrite(t.cache)
	if err != nil {
		return false, err
	}
	ctx := newWriteContext(hw)
	defer ctx.dropAll()

	rootID := hw.rootPageID()
	if rootID == page.InvalidID {
		return false, nil
	}

	cur, err := guard.FetchWrite(t.cache, rootID, page.TypeInternal)
	if err != nil {
		return false, wrapCacheErr("fetch", rootID, err)
	}
	ctx.push(cur, -1)

	for pageKind(cur.Data()) != page.TypeLeaf {
		childIdx := t.findChildIndex(cur.Data(), key)
		childID := t.childAt(cur.Data(), childIdx)
		child, err := guard.FetchWrite(t.cache, childID, page.TypeInternal)
		if err != nil {
			return false, wrapCacheErr("fetch", childID, err)
		}
		if t.nodeIsSafeForDelete(child.Data(), pageKind(child.Data()) == page.TypeLeaf) {
			ctx.releaseAncestorsAbove(0)
			if ctx.header != nil {
				ctx.header.drop()
				ctx.header = nil
			}
		}
		ctx.push(child, childIdx)
		cur = child
	}

	leaf, leafSlot := ctx.pop()
	data := leaf.Data()
	i, found := t.findLeafSlot(data, key)
	if !found {
		leaf.Drop()
		return false, nil
	}

	size := nodeSize(data)
	t.leafRemoveSlot(data, i, size)
	newSize := size - 1
	setNodeSize(data, newSize)

	if ctx.empty() {
		// No ancestor is held: either the leaf is the root, which has no
		// minimum occupancy, or it was safe on descent and cannot underflow.
		if newSize == 0 {
			leaf.Drop()
			ctx.header.setRootPageID(page.InvalidID)
		} else {
			leaf.Drop()
		}
		return true, nil
	}

	if newSize >= t.minSizeFor(true) {
		leaf.Drop()
		return true, nil
	}

	if err := t.fixUnderflow(ctx, leaf, leafSlot, true); err != nil {
		return false, err
	}
	return true, nil
}

// fixUnderflow repairs a node that dropped below its minimum occupancy by
// redistributing an entry from a sibling, or merging with one, patching the
// parent's separator/child slot accordingly. If the parent itself then
// underflows, the fix cascades upward; if it cascades all the way to a root
// left with a single child, the root collapses to that child.
func (t *BTree[K]) fixUnderflow(ctx *writeContext, node *guard.Write, slotInParent int, isLeaf bool) error {
	for {
		parent, parentSlot := ctx.pop()
		pdata := parent.Data()

		hasLeft := slotInParent > 0
		hasRight := slotInParent < nodeSize(pdata)-1

		var leftSib, rightSib *guard.Write
		var err error
		if hasLeft {
			leftSib, err = guard.FetchWrite(t.cache, t.childAt(pdata, slotInParent-1), page.TypeInternal)
			if err != nil {
				node.Drop()
				parent.Drop()
				return err
			}
		}
		if hasRight {
			rightSib, err = guard.FetchWrite(t.cache, t.childAt(pdata, slotInParent+1), page.TypeInternal)
			if err != nil {
				node.Drop()
				parent.Drop()
				leftSib.Drop()
				return err
			}
		}

		// Prefer the larger of the two available neighbors: redistribute
		// from it if it can spare an entry, otherwise merge with it, always
		// into the left page of the pair. A neighbor that doesn't exist
		// never wins the comparison.
		useLeft := hasLeft && (!hasRight || nodeSize(leftSib.Data()) >= nodeSize(rightSib.Data()))

		switch {
		case useLeft && t.canLend(leftSib.Data(), isLeaf):
			t.redistributeFromLeft(node, leftSib, pdata, slotInParent, isLeaf)
			t.met.redistributes.Inc()
			leftSib.Drop()
			rightSib.Drop()
			node.Drop()
			parent.Drop()
			return nil

		case !useLeft && hasRight && t.canLend(rightSib.Data(), isLeaf):
			t.redistributeFromRight(node, rightSib, pdata, slotInParent, isLeaf)
			t.met.redistributes.Inc()
			rightSib.Drop()
			leftSib.Drop()
			node.Drop()
			parent.Drop()
			return nil

		case useLeft:
			separator := t.keyAt(pdata, slotInParent)
			if isLeaf {
				t.mergeLeaf(leftSib, node)
			} else {
				t.mergeInternal(leftSib, node, separator)
			}
			t.met.merges.Inc()
			leftSib.Drop()
			node.Drop()
			rightSib.Drop()
			t.internalRemoveSlot(pdata, slotInParent, nodeSize(pdata))
			setNodeSize(pdata, nodeSize(pdata)-1)

		case hasRight:
			separator := t.keyAt(pdata, slotInParent+1)
			if isLeaf {
				t.mergeLeaf(node, rightSib)
			} else {
				t.mergeInternal(node, rightSib, separator)
			}
			t.met.merges.Inc()
			rightSib.Drop()
			leftSib.Drop()
			t.internalRemoveSlot(pdata, slotInParent+1, nodeSize(pdata))
			setNodeSize(pdata, nodeSize(pdata)-1)
			node.Drop()

		default:
			// A non-root parent always has at least two children, so one of
			// the two branches above must apply; reaching here means the
			// stored layout disagrees with that invariant.
			node.Drop()
			parent.Drop()
			return ErrLayoutMismatch
		}

		newPSize := nodeSize(pdata)
		if ctx.empty() {
			if newPSize == 1 {
				onlyChild := t.childAt(pdata, 0)
				parent.Drop()
				ctx.header.setRootPageID(onlyChild)
				t.met.rootCollapses.Inc()
			} else {
				parent.Drop()
			}
			return nil
		}

		if newPSize >= t.minSizeFor(false) {
			parent.Drop()
			return nil
		}

		node = parent
		slotInParent = parentSlot
		isLeaf = false
	}
}

// redistributeFromLeft moves leftSib's last entry into node's front slot,
// repairing the parent separator at slotInParent to match.
func (t *BTree[K]) redistributeFromLeft(node, leftSib *guard.Write, pdata []byte, slotInParent int, isLeaf bool) {
	ndata, ldata := node.Data(), leftSib.Data()
	lsize := nodeSize(ldata)

	if isLeaf {
		k, v := t.keyAt(ldata, lsize-1), t.valueAt(ldata, lsize-1)
		nsize := nodeSize(ndata)
		t.leafInsertSlot(ndata, 0, nsize)
		t.setKeyAt(ndata, 0, k)
		t.setValueAt(ndata, 0, v)
		setNodeSize(ndata, nsize+1)
		setNodeSize(ldata, lsize-1)
		t.setKeyAt(pdata, slotInParent, k)
		return
	}

	childMoved := t.childAt(ldata, lsize-1)
	keyUp := t.keyAt(pdata, slotInParent)
	keyFromLeft := t.keyAt(ldata, lsize-1)

	nsize := nodeSize(ndata)
	t.internalInsertSlot(ndata, 0, nsize)
	t.setChildAt(ndata, 0, childMoved)
	t.setKeyAt(ndata, 1, keyUp)
	setNodeSize(ndata, nsize+1)
	setNodeSize(ldata, lsize-1)
	t.setKeyAt(pdata, slotInParent, keyFromLeft)
}

// redistributeFromRight moves rightSib's first entry onto node's end,
// repairing the parent separator at slotInParent+1 to match.
func (t *BTree[K]) redistributeFromRight(node, rightSib *guard.Write, pdata []byte, slotInParent int, isLeaf bool) {
	ndata, rdata := node.Data(), rightSib.Data()
	rsize := nodeSize(rdata)

	if isLeaf {
		k, v := t.keyAt(rdata, 0), t.valueAt(rdata, 0)
		nsize := nodeSize(ndata)
		t.setKeyAt(ndata, nsize, k)
		t.setValueAt(ndata, nsize, v)
		setNodeSize(ndata, nsize+1)
		t.leafRemoveSlot(rdata, 0, rsize)
		setNodeSize(rdata, rsize-1)
		t.setKeyAt(pdata, slotInParent+1, t.keyAt(rdata, 0))
		return
	}

	childMoved := t.childAt(rdata, 0)
	keyUp := t.keyAt(pdata, slotInParent+1)
	nsize := nodeSize(ndata)
	t.setChildAt(ndata, nsize, childMoved)
	t.setKeyAt(ndata, nsize, keyUp)
	setNodeSize(ndata, nsize+1)

	keyFromRight := t.keyAt(rdata, 1)
	t.internalRemoveSlot(rdata, 0, rsize)
	setNodeSize(rdata, rsize-1)
	t.setKeyAt(pdata, slotInParent+1, keyFromRight)
}

func (t *BTree[K]) mergeLeaf(left, right *guard.Write) {
	ldata, rdata := left.Data(), right.Data()
	lsize, rsize := nodeSize(ldata), nodeSize(rdata)
	t.copyLeafSlots(ldata, lsize, rdata, 0, rsize)
	setNodeSize(ldata, lsize+rsize)
	setLeafNextPageID(ldata, leafNextPageID(rdata))
}

func (t *BTree[K]) mergeInternal(left, right *guard.Write, separator K) {
	ldata, rdata := left.Data(), right.Data()
	lsize, rsize := nodeSize(ldata), nodeSize(rdata)
	t.copyInternalSlots(ldata, lsize, rdata, 0, rsize)
	t.setKeyAt(ldata, lsize, separator)
	setNodeSize(ldata, lsize+rsize)
}
