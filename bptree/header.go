package bptree

import (
	"encoding/binary"
	"fmt"

	"bptreedb/storage/guard"
	"bptreedb/storage/page"
)

// headerPageID is the page id the header always lives at. It is never an
// explicit parameter: by construction the header is the first page a tree
// ever allocates, and diskmanager hands out id 0 to the first allocation
// of a fresh file, so the convention holds without bookkeeping. page.InvalidID
// shares this numeric value but the two meanings never collide — InvalidID
// is only ever read out of a root/child/next-leaf slot, never used to
// address the header page directly.
const headerPageID = page.InvalidID

// headerRead and headerWrite are small bespoke guards for the header page.
// They go around storage/guard's Fetch* constructors, which reject
// page.InvalidID, because the header's own fixed address equals that
// sentinel value by the convention above.
type headerRead struct {
	cache    guard.Cache
	pg       *page.Page
	released bool
}

func fetchHeaderRead(cache guard.Cache) (*headerRead, error) {
	pg, err := cache.FetchPage(headerPageID, page.TypeHeader)
	if err != nil {
		return nil, fmt.Errorf("bptree: fetch header (read): %w", err)
	}
	pg.RLock()
	return &headerRead{cache: cache, pg: pg}, nil
}

func (h *headerRead) rootPageID() uint32 {
	return binary.LittleEndian.Uint32(h.pg.Data[0:4])
}

func (h *headerRead) drop() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.pg.RUnlock()
	_ = h.cache.UnpinPage(h.pg.ID, false)
}

type headerWrite struct {
	cache    guard.Cache
	pg       *page.Page
	released bool
}

func fetchHeaderWrite(cache guard.Cache) (*headerWrite, error) {
	pg, err := cache.FetchPage(headerPageID, page.TypeHeader)
	if err != nil {
		return nil, fmt.Errorf("bptree: fetch header (write): %w", err)
	}
	pg.Lock()
	return &headerWrite{cache: cache, pg: pg}, nil
}

// newHeaderWrite allocates the header page itself. Only called once, the
// first time a tree is created at a fresh file.
func newHeaderWrite(cache guard.Cache) (*headerWrite, error) {
	pg, err := cache.NewPage(page.TypeHeader)
	if err != nil {
		return nil, fmt.Errorf("bptree: allocate header: %w", err)
	}
	if pg.ID != headerPageID {
		return nil, fmt.Errorf("bptree: header allocated at page %d, want %d (tree must be the first thing created in its file)", pg.ID, headerPageID)
	}
	pg.Lock()
	binary.LittleEndian.PutUint32(pg.Data[0:4], page.InvalidID)
	return &headerWrite{cache: cache, pg: pg}, nil
}

func (h *headerWrite) rootPageID() uint32 {
	return binary.LittleEndian.Uint32(h.pg.Data[0:4])
}

func (h *headerWrite) setRootPageID(id uint32) {
	binary.LittleEndian.PutUint32(h.pg.Data[0:4], id)
}

func (h *headerWrite) drop() {
	if h == nil || h.released {
		return
	}
	h.released = true
	h.pg.Unlock()
	_ = h.cache.UnpinPage(h.pg.ID, true)
}
