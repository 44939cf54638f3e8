package bptree

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"bptreedb/storage/bufferpool"
	"bptreedb/storage/diskmanager"
	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

func newTestTree(t *testing.T, leafMax, internalMax int) *BTree[int32] {
	t.Helper()
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := bufferpool.New(64, dm, nil, nil)
	tr, err := Open[int32](pool, true, CompareInt32, Int32Codec(), leafMax, internalMax, Options{})
	require.NoError(t, err)
	return tr
}

func collect(t *testing.T, tr *BTree[int32]) []int32 {
	t.Helper()
	it, err := tr.Begin()
	require.NoError(t, err)
	defer it.Close()

	var got []int32
	for !it.IsEnd() {
		k, _, ok := it.Deref()
		require.True(t, ok)
		got = append(got, k)
		require.NoError(t, it.Advance())
	}
	return got
}

func TestInsertGetRoundTrip(t *testing.T) {
	tr := newTestTree(t, 4, 4)

	inserted, err := tr.Insert(10, RID(100))
	require.NoError(t, err)
	require.True(t, inserted)

	v, ok, err := tr.GetValue(10)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RID(100), v)

	_, ok, err = tr.GetValue(99)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestInsertDuplicateRejected(t *testing.T) {
	tr := newTestTree(t, 4, 4)

	inserted, err := tr.Insert(5, RID(1))
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = tr.Insert(5, RID(2))
	require.NoError(t, err)
	require.False(t, inserted)

	v, ok, err := tr.GetValue(5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RID(1), v, "first insert's value must survive a rejected duplicate insert")
}

// TestSplitsKeepOrder inserts enough sequential keys with max_size=4 to
// force leaf splits, internal splits, and a new root, then verifies
// in-order iteration at the end.
func TestSplitsKeepOrder(t *testing.T) {
	tr := newTestTree(t, 4, 4)

	var keys []int32
	for i := int32(1); i <= 40; i++ {
		keys = append(keys, i)
	}
	for _, k := range keys {
		inserted, err := tr.Insert(k, RID(k))
		require.NoError(t, err)
		require.True(t, inserted)
	}

	for _, k := range keys {
		v, ok, err := tr.GetValue(k)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, RID(k), v)
	}

	got := collect(t, tr)
	require.Equal(t, keys, got)
}

// TestLeafSplitPreInsertion locks in the pre-insertion split shape: with
// leafMaxSize=4, a leaf holding [1,2,3,4] is full before 5 is inserted, so
// the split point is computed from that size (4), not from 5. The leaf
// splits into old=[1,2], new=[3,4], and only then does 5 land on whichever
// side its value belongs on — here the new leaf, giving new=[3,4,5] and a
// promoted separator of 3.
func TestLeafSplitPreInsertion(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	for _, k := range []int32{1, 2, 3, 4} {
		inserted, err := tr.Insert(k, RID(k))
		require.NoError(t, err)
		require.True(t, inserted)
	}
	inserted, err := tr.Insert(5, RID(5))
	require.NoError(t, err)
	require.True(t, inserted)

	rootID, err := tr.GetRootPageID()
	require.NoError(t, err)
	root, err := guard.FetchRead(tr.cache, rootID, page.TypeInternal)
	require.NoError(t, err)
	defer root.Drop()

	require.Equal(t, 2, nodeSize(root.Data()), "root should have exactly two children after one leaf split")
	require.Equal(t, int32(3), tr.keyAt(root.Data(), 1), "promoted separator must be 3, not 4")

	leftID := tr.childAt(root.Data(), 0)
	rightID := tr.childAt(root.Data(), 1)

	left, err := guard.FetchRead(tr.cache, leftID, page.TypeLeaf)
	require.NoError(t, err)
	defer left.Drop()
	require.Equal(t, 2, nodeSize(left.Data()))
	require.Equal(t, int32(1), tr.keyAt(left.Data(), 0))
	require.Equal(t, int32(2), tr.keyAt(left.Data(), 1))

	right, err := guard.FetchRead(tr.cache, rightID, page.TypeLeaf)
	require.NoError(t, err)
	defer right.Drop()
	require.Equal(t, 3, nodeSize(right.Data()))
	require.Equal(t, int32(3), tr.keyAt(right.Data(), 0))
	require.Equal(t, int32(4), tr.keyAt(right.Data(), 1))
	require.Equal(t, int32(5), tr.keyAt(right.Data(), 2))
}

func TestIteratorBeginAt(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	for _, k := range []int32{2, 4, 6, 8, 10, 12, 14, 16} {
		_, err := tr.Insert(k, RID(k))
		require.NoError(t, err)
	}

	it, err := tr.BeginAt(8)
	require.NoError(t, err)
	defer it.Close()

	k, v, ok := it.Deref()
	require.True(t, ok)
	require.Equal(t, int32(8), k)
	require.Equal(t, RID(8), v)
}

func TestIteratorBeginAtAbsentKeyIsEnd(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	for _, k := range []int32{2, 4, 6, 8, 10, 12, 14, 16} {
		_, err := tr.Insert(k, RID(k))
		require.NoError(t, err)
	}

	it, err := tr.BeginAt(7)
	require.NoError(t, err)
	defer it.Close()

	require.True(t, it.IsEnd())
	_, _, ok := it.Deref()
	require.False(t, ok)
}

func TestDeleteNotFound(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	_, err := tr.Insert(1, RID(1))
	require.NoError(t, err)

	removed, err := tr.Remove(99)
	require.NoError(t, err)
	require.False(t, removed)
}

// TestDeleteTriggersRedistributeAndMerge builds a tree with max_size=3,
// deletes enough keys to force both a redistribution and a merge, and
// confirms every surviving key is still reachable.
func TestDeleteTriggersRedistributeAndMerge(t *testing.T) {
	tr := newTestTree(t, 3, 3)

	var keys []int32
	for i := int32(1); i <= 20; i++ {
		keys = append(keys, i)
	}
	for _, k := range keys {
		_, err := tr.Insert(k, RID(k))
		require.NoError(t, err)
	}

	var removed []int32
	for i := int32(1); i <= 15; i++ {
		ok, err := tr.Remove(i)
		require.NoError(t, err)
		require.True(t, ok)
		removed = append(removed, i)
	}

	for _, k := range removed {
		_, ok, err := tr.GetValue(k)
		require.NoError(t, err)
		require.False(t, ok, "key %d should have been removed", k)
	}
	for i := int32(16); i <= 20; i++ {
		v, ok, err := tr.GetValue(i)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, RID(i), v)
	}

	got := collect(t, tr)
	require.Equal(t, []int32{16, 17, 18, 19, 20}, got)
}

func TestDeleteDownToEmptyCollapsesRoot(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	for i := int32(1); i <= 10; i++ {
		_, err := tr.Insert(i, RID(i))
		require.NoError(t, err)
	}
	for i := int32(1); i <= 10; i++ {
		ok, err := tr.Remove(i)
		require.NoError(t, err)
		require.True(t, ok)
	}

	empty, err := tr.IsEmpty()
	require.NoError(t, err)
	require.True(t, empty)

	rootID, err := tr.GetRootPageID()
	require.NoError(t, err)
	require.Equal(t, uint32(0), rootID, "root id doubles as page.InvalidID once the tree is empty")
}

func TestFprintDoesNotErrorOnEmptyOrPopulatedTree(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	out, err := tr.Sprint()
	require.NoError(t, err)
	require.Contains(t, out, "empty")

	for i := int32(1); i <= 12; i++ {
		_, err := tr.Insert(i, RID(i))
		require.NoError(t, err)
	}
	out, err = tr.Sprint()
	require.NoError(t, err)
	require.Contains(t, out, "leaf")
}

// TestWriteDotDrawsLeafChainDashed forces at least one leaf split, then
// checks the rendered digraph has a dashed edge following next_page_id
// between two leaves, distinct from the solid child-pointer edges.
func TestWriteDotDrawsLeafChainDashed(t *testing.T) {
	tr := newTestTree(t, 4, 4)
	for i := int32(1); i <= 12; i++ {
		_, err := tr.Insert(i, RID(i))
		require.NoError(t, err)
	}

	var sb strings.Builder
	require.NoError(t, tr.WriteDot(&sb))
	out := sb.String()

	require.Contains(t, out, "digraph bptree {")
	require.Contains(t, out, "style=dashed", "expected at least one dashed leaf-chain edge")
	require.Contains(t, out, "->", "expected at least one child-pointer edge")
}

// TestConcurrentInsertGetRemoveAcrossDisjointRanges drives 8 goroutines
// through inserts, lookups, and removals on disjoint key ranges against a
// buffer pool far smaller than the working set, forcing eviction under
// write-latch contention. Every key a goroutine inserts must be visible to
// its own later lookups, and removed once it removes it — the linearizable
// per-key behavior crab-latching exists to guarantee under concurrent
// writers.
func TestConcurrentInsertGetRemoveAcrossDisjointRanges(t *testing.T) {
	dm, err := diskmanager.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	pool := bufferpool.New(8, dm, nil, nil)
	tr, err := Open[int32](pool, true, CompareInt32, Int32Codec(), 4, 4, Options{})
	require.NoError(t, err)

	const goroutines = 8
	const perGoroutine = 50

	var wg sync.WaitGroup
	errs := make(chan error, goroutines)
	for g := 0; g < goroutines; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			base := int32(g * perGoroutine)
			for i := int32(0); i < perGoroutine; i++ {
				key := base + i
				inserted, err := tr.Insert(key, RID(key))
				if err != nil {
					errs <- fmt.Errorf("goroutine %d: insert %d: %w", g, key, err)
					return
				}
				if !inserted {
					errs <- fmt.Errorf("goroutine %d: insert %d unexpectedly rejected as duplicate", g, key)
					return
				}
				v, ok, err := tr.GetValue(key)
				if err != nil {
					errs <- fmt.Errorf("goroutine %d: get %d: %w", g, key, err)
					return
				}
				if !ok || v != RID(key) {
					errs <- fmt.Errorf("goroutine %d: get %d after insert: ok=%v v=%v", g, key, ok, v)
					return
				}
			}
			for i := int32(0); i < perGoroutine; i += 2 {
				key := base + i
				removed, err := tr.Remove(key)
				if err != nil {
					errs <- fmt.Errorf("goroutine %d: remove %d: %w", g, key, err)
					return
				}
				if !removed {
					errs <- fmt.Errorf("goroutine %d: remove %d unexpectedly reported not found", g, key)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for g := 0; g < goroutines; g++ {
		base := int32(g * perGoroutine)
		for i := int32(0); i < perGoroutine; i++ {
			key := base + i
			v, ok, err := tr.GetValue(key)
			require.NoError(t, err)
			if i%2 == 0 {
				require.False(t, ok, "key %d should have been removed", key)
			} else {
				require.True(t, ok, "key %d should still be present", key)
				require.Equal(t, RID(key), v)
			}
		}
	}
}
