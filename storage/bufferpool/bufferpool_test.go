package bufferpool

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"bptreedb/storage/diskmanager"
	"bptreedb/storage/page"
)

func newTestPool(t *testing.T, capacity int) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	dm, err := diskmanager.Open(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })
	return New(capacity, dm, nil, nil)
}

func TestNewPageIsPinnedAndDirty(t *testing.T) {
	p := newTestPool(t, 4)

	pg, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	require.Equal(t, int32(1), pg.PinCount(), "expected a fresh page to start pinned once")
	require.True(t, pg.IsDirty(), "expected a fresh page to start dirty")
}

func TestFetchPageCachesAcrossCalls(t *testing.T) {
	p := newTestPool(t, 4)

	pg, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	pg.Data[0] = 42
	require.NoError(t, p.UnpinPage(pg.ID, true))

	fetched, err := p.FetchPage(pg.ID, page.TypeLeaf)
	require.NoError(t, err)
	require.Same(t, pg, fetched, "expected FetchPage to return the same in-memory frame, not a fresh one from disk")
	require.Equal(t, byte(42), fetched.Data[0], "expected cached frame to carry in-memory edits")
	require.NoError(t, p.UnpinPage(pg.ID, false))
}

// TestEvictionSkipsPinnedFrames checks that a pool at capacity never
// evicts a frame with a nonzero pin count, even when that frame is the
// least recently used one.
func TestEvictionSkipsPinnedFrames(t *testing.T) {
	p := newTestPool(t, 2)

	pinned, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	// pinned stays pinned (PinCount() == 1) for the rest of the test.

	other, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	require.NoError(t, p.UnpinPage(other.ID, false))

	// The pool is now full (capacity 2). A third allocation must evict
	// `other`, the only unpinned frame, never `pinned`.
	third, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	require.NoError(t, p.UnpinPage(third.ID, false))

	require.Equal(t, 2, p.Size(), "expected pool size to stay at capacity 2")
	refetched, err := p.FetchPage(pinned.ID, page.TypeLeaf)
	require.NoError(t, err, "pinned page was evicted and could not be refetched")
	require.Same(t, pinned, refetched, "expected the pinned frame to survive eviction untouched")
	require.NoError(t, p.UnpinPage(pinned.ID, false))
}

func TestExhaustedWhenEveryFrameIsPinned(t *testing.T) {
	p := newTestPool(t, 2)

	_, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	_, err = p.NewPage(page.TypeLeaf)
	require.NoError(t, err)

	// Both frames are still pinned; a third allocation has nothing to evict.
	_, err = p.NewPage(page.TypeLeaf)
	require.Error(t, err, "expected NewPage to fail when the pool is full of pinned frames")
}

func TestFlushWritesDirtyFramesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	dm, err := diskmanager.Open(path, nil)
	require.NoError(t, err)
	defer dm.Close()
	p := New(4, dm, nil, nil)

	pg, err := p.NewPage(page.TypeLeaf)
	require.NoError(t, err)
	pg.Data[0] = 7
	require.NoError(t, p.UnpinPage(pg.ID, true))
	require.NoError(t, p.FlushPage(pg.ID))

	onDisk, err := dm.ReadPage(pg.ID, page.TypeLeaf)
	require.NoError(t, err)
	require.Equal(t, byte(7), onDisk.Data[0], "expected flushed byte 7 on disk")
}

// TestConcurrentFetchUnpinDoesNotDeadlock drives many goroutines through
// FetchPage/UnpinPage against a pool far smaller than the working set, so
// every fetch has a real chance of racing an eviction scan against another
// goroutine's pin/unpin bookkeeping. It would hang forever if pin/dirty
// bookkeeping ever shared a lock with a page's crab-latch.
func TestConcurrentFetchUnpinDoesNotDeadlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	dm, err := diskmanager.Open(path, nil)
	require.NoError(t, err)
	defer dm.Close()
	p := New(4, dm, nil, nil)

	var ids []uint32
	for i := 0; i < 16; i++ {
		pg, err := p.NewPage(page.TypeLeaf)
		require.NoError(t, err)
		ids = append(ids, pg.ID)
		require.NoError(t, p.UnpinPage(pg.ID, false))
	}

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		g := g
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 200; i++ {
				id := ids[(i+g)%len(ids)]
				pg, err := p.FetchPage(id, page.TypeLeaf)
				if err != nil {
					continue
				}
				_ = p.UnpinPage(pg.ID, i%2 == 0)
			}
		}()
	}
	for g := 0; g < 8; g++ {
		<-done
	}
}
