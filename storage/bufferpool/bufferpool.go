// Package bufferpool is the pinned, reference-counted page cache the B+
// tree's guard layer is built on. It implements LRU eviction that skips any
// frame still pinned by a live guard, the property spec's invariant 8
// depends on.
package bufferpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bptreedb/storage/diskmanager"
	"bptreedb/storage/page"
)

// ErrExhausted is returned by NewPage/FetchPage when every frame in the
// pool is pinned and none can be evicted to make room.
var ErrExhausted = errors.New("bufferpool: exhausted, all frames pinned")

// Pool caches up to capacity pages in memory, backed by a diskmanager.Manager
// for misses and for flushing dirty frames.
type Pool struct {
	mu          sync.Mutex
	frames      map[uint32]*page.Page
	accessOrder []uint32
	capacity    int
	disk        *diskmanager.Manager
	log         *zap.SugaredLogger

	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  prometheus.Counter
}

// New constructs a Pool with room for capacity frames. reg may be nil to
// skip metrics registration (e.g. in tests that construct multiple pools).
func New(capacity int, disk *diskmanager.Manager, log *zap.SugaredLogger, reg prometheus.Registerer) *Pool {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	p := &Pool{
		frames:      make(map[uint32]*page.Page, capacity),
		accessOrder: make([]uint32, 0, capacity),
		capacity:    capacity,
		disk:        disk,
		log:         log,
		hits:        prometheus.NewCounter(prometheus.CounterOpts{Name: "bptree_bufferpool_hits_total"}),
		misses:      prometheus.NewCounter(prometheus.CounterOpts{Name: "bptree_bufferpool_misses_total"}),
		evicts:      prometheus.NewCounter(prometheus.CounterOpts{Name: "bptree_bufferpool_evictions_total"}),
	}
	if reg != nil {
		reg.MustRegister(p.hits, p.misses, p.evicts)
	}
	return p
}

// FetchPage returns a pinned page, loading it from disk on a cache miss.
func (p *Pool) FetchPage(id uint32, typ page.Type) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pg, ok := p.frames[id]; ok {
		p.hits.Inc()
		p.touch(id)
		pg.Pin()
		return pg, nil
	}

	p.misses.Inc()
	pg, err := p.disk.ReadPage(id, typ)
	if err != nil {
		return nil, fmt.Errorf("bufferpool: fetch page %d: %w", id, err)
	}
	if err := p.addLocked(pg); err != nil {
		return nil, err
	}
	pg.Pin()
	p.log.Debugw("page fetched from disk", "pageID", id)
	return pg, nil
}

// NewPage allocates a fresh page id on disk and a pinned, dirty in-memory
// frame for it. The caller must initialize the frame's layout before
// releasing its guard.
func (p *Pool) NewPage(typ page.Type) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.disk.AllocatePage()
	pg := page.New(id, typ)
	pg.SetDirty(true)
	pg.SetPinCount(1)

	if err := p.addLocked(pg); err != nil {
		return nil, err
	}
	return pg, nil
}

// UnpinPage decrements a frame's pin count, optionally marking it dirty.
func (p *Pool) UnpinPage(id uint32, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, ok := p.frames[id]
	if !ok {
		return fmt.Errorf("bufferpool: unpin: page %d not in pool", id)
	}
	pg.Unpin(dirty)
	return nil
}

// FlushPage writes a dirty frame to disk.
func (p *Pool) FlushPage(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushLocked(id)
}

func (p *Pool) flushLocked(id uint32) error {
	pg, ok := p.frames[id]
	if !ok {
		return fmt.Errorf("bufferpool: flush: page %d not in pool", id)
	}
	if !pg.IsDirty() {
		return nil
	}
	if err := p.disk.WritePage(pg); err != nil {
		return fmt.Errorf("bufferpool: flush page %d: %w", id, err)
	}
	pg.SetDirty(false)
	return nil
}

// FlushAllPages writes every dirty frame to disk.
func (p *Pool) FlushAllPages() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.frames {
		if err := p.flushLocked(id); err != nil {
			return err
		}
	}
	return nil
}

// addLocked inserts pg into the pool, evicting if at capacity. Caller holds p.mu.
func (p *Pool) addLocked(pg *page.Page) error {
	if _, ok := p.frames[pg.ID]; ok {
		p.touch(pg.ID)
		return nil
	}
	if len(p.frames) >= p.capacity {
		if err := p.evictLocked(); err != nil {
			return fmt.Errorf("bufferpool: add page %d: %w", pg.ID, err)
		}
	}
	p.frames[pg.ID] = pg
	p.touch(pg.ID)
	return nil
}

// evictLocked removes the least-recently-used unpinned frame, flushing it
// first if dirty. Caller holds p.mu.
func (p *Pool) evictLocked() error {
	for i, id := range p.accessOrder {
		pg, ok := p.frames[id]
		if !ok {
			p.accessOrder = append(p.accessOrder[:i], p.accessOrder[i+1:]...)
			return p.evictLocked()
		}
		pinned := pg.IsPinned()
		dirty := pg.IsDirty()
		if pinned {
			continue
		}
		if dirty {
			if err := p.flushLocked(id); err != nil {
				return err
			}
		}
		delete(p.frames, id)
		p.accessOrder = append(p.accessOrder[:i], p.accessOrder[i+1:]...)
		p.evicts.Inc()
		p.log.Debugw("page evicted", "pageID", id)
		return nil
	}
	return ErrExhausted
}

// touch moves id to the most-recently-used end. Caller holds p.mu.
func (p *Pool) touch(id uint32) {
	for i, v := range p.accessOrder {
		if v == id {
			p.accessOrder = append(p.accessOrder[:i], p.accessOrder[i+1:]...)
			break
		}
	}
	p.accessOrder = append(p.accessOrder, id)
}

// Size reports the current number of cached frames, for tests/metrics.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames)
}
