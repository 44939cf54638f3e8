package bptree

import (
	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

// Iterator walks leaf entries in key order. It pins and read-latches
// exactly one leaf at a time, advancing across leaves via next_page_id,
// and must be Close()d (or driven to IsEnd) to release that leaf.
type Iterator[K any] struct {
	tree  *BTree[K]
	leaf  *guard.Read
	slot  int
	ended bool
}

// Begin returns an iterator positioned at the tree's smallest key.
func (t *BTree[K]) Begin() (*Iterator[K], error) {
	hr, err := fetchHeaderRead(t.cache)
	if err != nil {
		return nil, err
	}
	rootID := hr.rootPageID()
	hr.drop()
	if rootID == page.InvalidID {
		return &Iterator[K]{tree: t, ended: true}, nil
	}

	cur, err := guard.FetchRead(t.cache, rootID, page.TypeInternal)
	if err != nil {
		return nil, wrapCacheErr("fetch", rootID, err)
	}
	for pageKind(cur.Data()) != page.TypeLeaf {
		childID := t.childAt(cur.Data(), 0)
		next, err := guard.FetchRead(t.cache, childID, page.TypeInternal)
		if err != nil {
			cur.Drop()
			return nil, wrapCacheErr("fetch", childID, err)
		}
		cur.Drop()
		cur = next
	}

	it := &Iterator[K]{tree: t, leaf: cur, slot: 0}
	if err := it.rollForward(); err != nil {
		return nil, err
	}
	return it, nil
}

// BeginAt returns an iterator positioned at the first slot holding key, or
// an end iterator if key is absent.
func (t *BTree[K]) BeginAt(key K) (*Iterator[K], error) {
	leaf, err := t.descendToLeafRead(key)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return &Iterator[K]{tree: t, ended: true}, nil
	}
	i, found := t.findLeafSlot(leaf.Data(), key)
	if !found {
		leaf.Drop()
		return &Iterator[K]{tree: t, ended: true}, nil
	}
	it := &Iterator[K]{tree: t, leaf: leaf, slot: i}
	if err := it.rollForward(); err != nil {
		return nil, err
	}
	return it, nil
}

// End returns an already-exhausted iterator, useful as a sentinel endpoint
// when a caller just wants to compare against it.
func (t *BTree[K]) End() *Iterator[K] { return &Iterator[K]{tree: t, ended: true} }

// IsEnd reports whether the iterator has been driven past the last entry.
func (it *Iterator[K]) IsEnd() bool { return it.ended }

// Deref returns the entry at the iterator's current position. ok is false
// once IsEnd() is true.
func (it *Iterator[K]) Deref() (K, RID, bool) {
	if it.ended {
		var zero K
		return zero, 0, false
	}
	data := it.leaf.Data()
	return it.tree.keyAt(data, it.slot), it.tree.valueAt(data, it.slot), true
}

// Advance moves to the next entry, crossing into the sibling leaf via
// next_page_id when the current leaf is exhausted.
func (it *Iterator[K]) Advance() error {
	if it.ended {
		return nil
	}
	it.slot++
	return it.rollForward()
}

// rollForward crosses leaf boundaries until the iterator sits on a real
// entry or the chain runs out.
func (it *Iterator[K]) rollForward() error {
	for !it.ended {
		data := it.leaf.Data()
		if it.slot < nodeSize(data) {
			return nil
		}
		nextID := leafNextPageID(data)
		it.leaf.Drop()
		it.leaf = nil
		if nextID == page.InvalidID {
			it.ended = true
			return nil
		}
		next, err := guard.FetchRead(it.tree.cache, nextID, page.TypeLeaf)
		if err != nil {
			it.ended = true
			return wrapCacheErr("fetch", nextID, err)
		}
		it.leaf = next
		it.slot = 0
	}
	return nil
}

// Close releases the iterator's held leaf, if any. Safe to call more than
// once and on an already-ended iterator.
func (it *Iterator[K]) Close() {
	if it.leaf != nil {
		it.leaf.Drop()
		it.leaf = nil
	}
	it.ended = true
}
