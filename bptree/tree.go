// Package bptree is a disk-resident, concurrent B+ tree index layered over
// a fixed-size page cache. Every node lives in exactly one page; searches
// descend with latch-coupling, and inserts/deletes take a pessimistic
// write-latch chain down from the header so a split, merge, or
// redistribution can patch every ancestor it touches without re-descending.
package bptree

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

// BTree is a generic B+ tree index keyed by K, with fixed-width uint64 RID
// values. K's comparator and on-disk width are supplied at construction,
// not derived from K's Go type, so the same tree code serves integer keys,
// fixed-width byte-string keys, or any caller-defined fixed-width key.
type BTree[K any] struct {
	cache guard.Cache
	cmp   Order[K]
	codec KeyCodec[K]

	leafMaxSize     int
	internalMaxSize int

	id  uuid.UUID
	log *zap.SugaredLogger
	met *metrics

	// mu guards the closed flag only. Structural concurrency
	// between concurrent readers/writers of the tree's contents is
	// entirely a property of the per-page latches in storage/guard.
	mu     sync.Mutex
	closed bool
}

// Options carries the ambient-stack dependencies a tree is opened with.
// Both fields may be left zero: Log defaults to a no-op logger and
// MetricsRegisterer to nil, which skips metrics registration entirely
// (so tests can open many trees without colliding on a shared default
// prometheus registry).
type Options struct {
	Log               *zap.SugaredLogger
	MetricsRegisterer prometheus.Registerer
}

// Open opens an existing tree's header, or — when fresh is true — creates
// one from scratch. fresh must be true only for a cache whose backing file
// is empty; a tree's header must be the first page ever allocated in its
// file (see headerPageID).
func Open[K any](cache guard.Cache, fresh bool, cmp Order[K], codec KeyCodec[K], leafMaxSize, internalMaxSize int, opts Options) (*BTree[K], error) {
	if leafMaxSize < 3 {
		return nil, fmt.Errorf("bptree: leaf max size %d too small (need >= 3)", leafMaxSize)
	}
	if internalMaxSize < 3 {
		return nil, fmt.Errorf("bptree: internal max size %d too small (need >= 3)", internalMaxSize)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	id := uuid.New()
	t := &BTree[K]{
		cache:           cache,
		cmp:             cmp,
		codec:           codec,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		id:              id,
		log:             log.With("tree", id.String()),
		met:             newMetrics(opts.MetricsRegisterer, id.String()),
	}

	if fresh {
		hw, err := newHeaderWrite(cache)
		if err != nil {
			return nil, fmt.Errorf("bptree: create tree: %w", err)
		}
		hw.drop()
		t.log.Infow("tree created", "leafMaxSize", leafMaxSize, "internalMaxSize", internalMaxSize)
		return t, nil
	}

	hr, err := fetchHeaderRead(cache)
	if err != nil {
		return nil, fmt.Errorf("bptree: open tree: %w", err)
	}
	hr.drop()
	t.log.Infow("tree opened", "leafMaxSize", leafMaxSize, "internalMaxSize", internalMaxSize)
	return t, nil
}

// Close records the tree as closed and logs it. Operations called after
// Close are not rejected; the closed flag is not consulted by them. The
// underlying cache/disk manager outlive it and are closed independently by
// whoever constructed them.
func (t *BTree[K]) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.log.Infow("tree closed")
	return nil
}

// IsEmpty reports whether the tree currently has no root, per spec's
// requirement that observing root id requires at least a shared latch.
func (t *BTree[K]) IsEmpty() (bool, error) {
	hr, err := fetchHeaderRead(t.cache)
	if err != nil {
		return false, err
	}
	defer hr.drop()
	return hr.rootPageID() == page.InvalidID, nil
}

// GetRootPageID returns the current root page id, or page.InvalidID if the
// tree is empty.
func (t *BTree[K]) GetRootPageID() (uint32, error) {
	hr, err := fetchHeaderRead(t.cache)
	if err != nil {
		return page.InvalidID, err
	}
	defer hr.drop()
	return hr.rootPageID(), nil
}
