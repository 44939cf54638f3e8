package bptree

import (
	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

func nodeIsSafeForInsert(data []byte) bool { return nodeSize(data) < nodeMaxSize(data) }

// Insert adds key/value to the tree. It reports false, with no error and no
// mutation, if key is already present — spec signals duplicate key via a
// bool return, never an error.
func (t *BTree[K]) Insert(key K, value RID) (bool, error) {
	hw, err := fetchHeaderWrite(t.cache)
	if err != nil {
		return false, err
	}
	ctx := newWriteContext(hw)
	defer ctx.dropAll()

	rootID := hw.rootPageID()
	if rootID == page.InvalidID {
		leaf, err := guard.NewPageWrite(t.cache, page.TypeLeaf)
		if err != nil {
			return false, wrapCacheErr("allocate", 0, err)
		}
		t.initLeaf(leaf.Data(), t.leafMaxSize)
		t.setKeyAt(leaf.Data(), 0, key)
		t.setValueAt(leaf.Data(), 0, value)
		setNodeSize(leaf.Data(), 1)
		hw.setRootPageID(leaf.PageID())
		leaf.Drop()
		t.log.Debugw("insert created root leaf", "key", key)
		return true, nil
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
		if nodeIsSafeForInsert(child.Data()) {
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
	if found {
		leaf.Drop()
		t.log.Debugw("insert rejected, duplicate key", "key", key)
		return false, nil
	}

	// The leaf is "full" at size == max_size, checked before the key is
	// ever placed. A non-full leaf just takes the key at its sorted slot;
	// a full leaf splits first, then the incoming key lands on whichever
	// half its value puts it on.
	size := nodeSize(data)
	if size < t.leafMaxSize {
		t.leafInsertSlot(data, i, size)
		t.setKeyAt(data, i, key)
		t.setValueAt(data, i, value)
		setNodeSize(data, size+1)
		leaf.Drop()
		t.log.Debugw("insert complete, no split", "key", key)
		return true, nil
	}

	t.met.splits.Inc()
	right, promoted, err := t.splitLeaf(leaf)
	if err != nil {
		leaf.Drop()
		return false, err
	}

	target := leaf
	if t.cmp(key, promoted) >= 0 {
		target = right
	}
	tdata := target.Data()
	ti, _ := t.findLeafSlot(tdata, key)
	tsize := nodeSize(tdata)
	t.leafInsertSlot(tdata, ti, tsize)
	t.setKeyAt(tdata, ti, key)
	t.setValueAt(tdata, ti, value)
	setNodeSize(tdata, tsize+1)

	leafID := leaf.PageID()
	rightID := right.PageID()
	leaf.Drop()
	right.Drop()
	t.log.Debugw("leaf split", "left", leafID, "right", rightID, "promoted", promoted)

	if err := t.insertIntoParent(ctx, leafSlot, leafID, promoted, rightID); err != nil {
		return false, err
	}
	return true, nil
}

// splitLeaf moves the upper half of leaf's slots — [⌈m/2⌉, m), computed
// from leaf's pre-insertion size m — into a freshly allocated right
// sibling, linking it into the leaf chain. The promoted separator is the
// right sibling's first key; the incoming key is not placed by this
// function at all, since spec's split happens before the insert, not after
// it — the caller decides which of the two returned leaves absorbs the
// pending key by comparing it against promoted.
func (t *BTree[K]) splitLeaf(leaf *guard.Write) (*guard.Write, K, error) {
	var zero K
	data := leaf.Data()
	total := nodeSize(data)
	mid := (total + 1) / 2
	rightCount := total - mid

	right, err := guard.NewPageWrite(t.cache, page.TypeLeaf)
	if err != nil {
		return nil, zero, wrapCacheErr("allocate", 0, err)
	}
	t.initLeaf(right.Data(), t.leafMaxSize)
	t.copyLeafSlots(right.Data(), 0, data, mid, rightCount)
	setNodeSize(right.Data(), rightCount)
	setLeafNextPageID(right.Data(), leafNextPageID(data))
	setLeafNextPageID(data, right.PageID())
	setNodeSize(data, mid)

	promoted := t.keyAt(right.Data(), 0)
	return right, promoted, nil
}

// splitInternalWithPending splits a full internal node to make room for a
// pending (pendingKey, pendingChildID) insertion that doesn't fit. The
// naive middle is ⌈m/2⌉, but if the pending key would land below it, the
// split point moves down to ⌊m/2⌋ — and if the pending key still doesn't
// land below *that* key, the pending key and the candidate middle key swap
// roles (the old middle key becomes the pending insert, and the original
// pending key is promoted instead). Whichever side the pending key landed
// on by the first comparison (before any swap) determines which of the two
// resulting nodes actually receives the insert.
func (t *BTree[K]) splitInternalWithPending(node *guard.Write, pendingKey K, pendingChildID uint32) (uint32, K, error) {
	var zero K
	data := node.Data()
	m := nodeSize(data)

	middle := (m + 1) / 2
	tmpKey := t.keyAt(data, middle)
	pendingBelowMiddle := t.cmp(pendingKey, tmpKey) < 0
	special := false
	if pendingBelowMiddle {
		middle = m / 2
		tmpKey = t.keyAt(data, middle)
		if t.cmp(pendingKey, tmpKey) >= 0 {
			special = true
			pendingKey, tmpKey = tmpKey, pendingKey
		}
	}

	right, err := guard.NewPageWrite(t.cache, page.TypeInternal)
	if err != nil {
		return 0, zero, wrapCacheErr("allocate", 0, err)
	}
	t.initInternal(right.Data(), t.internalMaxSize)

	if !special {
		t.setChildAt(right.Data(), 0, t.childAt(data, middle))
	} else {
		t.setChildAt(right.Data(), 0, pendingChildID)
		pendingChildID = t.childAt(data, middle)
	}

	idx := 1
	for src := middle + 1; src < m; src++ {
		t.setKeyAt(right.Data(), idx, t.keyAt(data, src))
		t.setChildAt(right.Data(), idx, t.childAt(data, src))
		idx++
	}
	setNodeSize(right.Data(), idx)
	setNodeSize(data, m-idx)

	insertPage := node
	if !pendingBelowMiddle {
		insertPage = right
	}
	idata := insertPage.Data()
	iat := t.internalInsertionIndex(idata, pendingKey)
	isize := nodeSize(idata)
	t.internalInsertSlot(idata, iat, isize)
	t.setKeyAt(idata, iat, pendingKey)
	t.setChildAt(idata, iat, pendingChildID)
	setNodeSize(idata, isize+1)

	rightID := right.PageID()
	right.Drop()
	return rightID, tmpKey, nil
}

// insertIntoParent walks back up ctx's ancestor stack inserting
// (promotedKey -> rightID) next to leftID, splitting each ancestor in turn
// if it overflows, until either an ancestor absorbs the insert without
// overflowing or the stack runs out and a new root is created.
func (t *BTree[K]) insertIntoParent(ctx *writeContext, slotOfLeft int, leftID uint32, promotedKey K, rightID uint32) error {
	for {
		if ctx.empty() {
			return t.createNewRoot(ctx, leftID, promotedKey, rightID)
		}
		parent, parentSlot := ctx.pop()
		data := parent.Data()
		size := nodeSize(data)

		if size < t.internalMaxSize {
			insertAt := slotOfLeft + 1
			t.internalInsertSlot(data, insertAt, size)
			t.setKeyAt(data, insertAt, promotedKey)
			t.setChildAt(data, insertAt, rightID)
			setNodeSize(data, size+1)
			parent.Drop()
			return nil
		}

		t.met.splits.Inc()
		parentID := parent.PageID()
		newRightID, newPromoted, err := t.splitInternalWithPending(parent, promotedKey, rightID)
		parent.Drop()
		if err != nil {
			return err
		}
		t.log.Debugw("internal split", "left", parentID, "right", newRightID, "promoted", newPromoted)

		leftID, promotedKey, rightID = parentID, newPromoted, newRightID
		slotOfLeft = parentSlot
	}
}

// createNewRoot is reached when a split propagates past the tree's current
// root: a fresh internal node with exactly two children becomes the root.
func (t *BTree[K]) createNewRoot(ctx *writeContext, leftID uint32, promotedKey K, rightID uint32) error {
	root, err := guard.NewPageWrite(t.cache, page.TypeInternal)
	if err != nil {
		return wrapCacheErr("allocate", 0, err)
	}
	t.initInternal(root.Data(), t.internalMaxSize)
	t.setChildAt(root.Data(), 0, leftID)
	t.setKeyAt(root.Data(), 1, promotedKey)
	t.setChildAt(root.Data(), 1, rightID)
	setNodeSize(root.Data(), 2)
	rootID := root.PageID()
	root.Drop()

	ctx.header.setRootPageID(rootID)
	t.log.Debugw("new root created", "root", rootID, "left", leftID, "right", rightID)
	return nil
}
