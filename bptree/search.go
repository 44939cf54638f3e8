package bptree

import (
	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

// findChildIndex returns the index of the child slot an internal node's
// search for key should descend into: the last slot j such that
// key(j) <= key, or 0 if key is smaller than every real separator (slot 0's
// key is never compared — descending into child 0 is the catch-all for
// anything less than slot 1's key).
func (t *BTree[K]) findChildIndex(data []byte, key K) int {
	size := nodeSize(data)
	lo, hi := 1, size-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if t.cmp(t.keyAt(data, mid), key) <= 0 {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// internalInsertionIndex returns the sorted position in [1, size] at which
// key belongs among an internal node's real separators (slot 0's key is
// never compared, so the search never returns 0).
func (t *BTree[K]) internalInsertionIndex(data []byte, key K) int {
	size := nodeSize(data)
	lo, hi := 1, size
	for lo < hi {
		mid := (lo + hi) / 2
		if t.cmp(t.keyAt(data, mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findLeafSlot returns (index, found) for key within a leaf's slots, via
// binary search. index is the insertion point when found is false.
func (t *BTree[K]) findLeafSlot(data []byte, key K) (int, bool) {
	size := nodeSize(data)
	lo, hi := 0, size
	for lo < hi {
		mid := (lo + hi) / 2
		c := t.cmp(t.keyAt(data, mid), key)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

// descendToLeafRead latch-couples from the root down to the leaf that would
// contain key, holding only a read latch on each node and releasing the
// parent as soon as the child is latched. Returns the leaf's read guard,
// still held by the caller.
func (t *BTree[K]) descendToLeafRead(key K) (*guard.Read, error) {
	hr, err := fetchHeaderRead(t.cache)
	if err != nil {
		return nil, err
	}
	rootID := hr.rootPageID()
	hr.drop()
	if rootID == page.InvalidID {
		return nil, nil
	}

	cur, err := guard.FetchRead(t.cache, rootID, page.TypeInternal)
	if err != nil {
		return nil, wrapCacheErr("fetch", rootID, err)
	}
	for pageKind(cur.Data()) != page.TypeLeaf {
		childID := t.childAt(cur.Data(), t.findChildIndex(cur.Data(), key))
		next, err := guard.FetchRead(t.cache, childID, page.TypeInternal)
		if err != nil {
			cur.Drop()
			return nil, wrapCacheErr("fetch", childID, err)
		}
		cur.Drop()
		cur = next
	}
	return cur, nil
}

// GetValue looks up key, returning its value and true if present.
func (t *BTree[K]) GetValue(key K) (RID, bool, error) {
	leaf, err := t.descendToLeafRead(key)
	if err != nil {
		return 0, false, err
	}
	if leaf == nil {
		return 0, false, nil
	}
	defer leaf.Drop()

	i, found := t.findLeafSlot(leaf.Data(), key)
	if !found {
		return 0, false, nil
	}
	return t.valueAt(leaf.Data(), i), true, nil
}
