// Package guard implements spec's page guard layer: scoped acquisition of
// (pin, optional latch) on a page with guaranteed release on every exit
// path. Three flavors share that contract — Basic (pin only), Read (pin +
// shared latch), Write (pin + exclusive latch).
package guard

import (
	"errors"
	"fmt"

	"bptreedb/storage/page"
)

// ErrInvalidPage is returned when fetching page.InvalidID.
var ErrInvalidPage = errors.New("guard: invalid page id")

// Cache is the page-cache contract the guard layer is built on
// (spec §6): fetch_read/fetch_write/fetch_basic/new_page, all pinned.
type Cache interface {
	FetchPage(id uint32, typ page.Type) (*page.Page, error)
	NewPage(typ page.Type) (*page.Page, error)
	UnpinPage(id uint32, dirty bool) error
}

// Basic holds a pin only. Upgrading to Read or Write atomically acquires
// the corresponding latch on the same page without losing the pin.
type Basic struct {
	cache    Cache
	pg       *page.Page
	released bool
}

// FetchBasic pins id without acquiring a latch.
func FetchBasic(c Cache, id uint32, typ page.Type) (*Basic, error) {
	if id == page.InvalidID {
		return nil, ErrInvalidPage
	}
	pg, err := c.FetchPage(id, typ)
	if err != nil {
		return nil, fmt.Errorf("guard: fetch basic %d: %w", id, err)
	}
	return &Basic{cache: c, pg: pg}, nil
}

// NewPageBasic allocates a fresh page, pinned, uninitialized.
func NewPageBasic(c Cache, typ page.Type) (*Basic, error) {
	pg, err := c.NewPage(typ)
	if err != nil {
		return nil, fmt.Errorf("guard: new page: %w", err)
	}
	return &Basic{cache: c, pg: pg}, nil
}

func (g *Basic) PageID() uint32 { return g.pg.ID }
func (g *Basic) Data() []byte   { return g.pg.Data }

// Drop releases the pin. Idempotent.
func (g *Basic) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	_ = g.cache.UnpinPage(g.pg.ID, false)
}

// AsRead upgrades this basic guard to a read guard, consuming it.
func (g *Basic) AsRead() *Read {
	g.pg.RLock()
	g.released = true
	return &Read{cache: g.cache, pg: g.pg}
}

// AsWrite upgrades this basic guard to a write guard, consuming it.
func (g *Basic) AsWrite() *Write {
	g.pg.Lock()
	g.released = true
	return &Write{cache: g.cache, pg: g.pg}
}

// Read holds a pin plus a shared latch. Exposes immutable typed access via
// Data(); callers reinterpret the returned bytes through the bptree
// package's node accessors.
type Read struct {
	cache    Cache
	pg       *page.Page
	released bool
}

// FetchRead pins and shared-latches id.
func FetchRead(c Cache, id uint32, typ page.Type) (*Read, error) {
	if id == page.InvalidID {
		return nil, ErrInvalidPage
	}
	pg, err := c.FetchPage(id, typ)
	if err != nil {
		return nil, fmt.Errorf("guard: fetch read %d: %w", id, err)
	}
	pg.RLock()
	return &Read{cache: c, pg: pg}, nil
}

func (g *Read) PageID() uint32 { return g.pg.ID }
func (g *Read) Data() []byte   { return g.pg.Data }

// Drop releases the shared latch then the pin. Idempotent.
func (g *Read) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.pg.RUnlock()
	_ = g.cache.UnpinPage(g.pg.ID, false)
}

// Write holds a pin plus an exclusive latch. Exposes mutable typed access.
// Acquiring a write latch is always treated as an intent to mutate: Drop
// unpins dirty unconditionally, so a caller never needs to remember to
// flag a page it touched.
type Write struct {
	cache    Cache
	pg       *page.Page
	released bool
}

// FetchWrite pins and exclusive-latches id.
func FetchWrite(c Cache, id uint32, typ page.Type) (*Write, error) {
	if id == page.InvalidID {
		return nil, ErrInvalidPage
	}
	pg, err := c.FetchPage(id, typ)
	if err != nil {
		return nil, fmt.Errorf("guard: fetch write %d: %w", id, err)
	}
	pg.Lock()
	return &Write{cache: c, pg: pg}, nil
}

// NewPageWrite allocates a fresh page, pinned and exclusively latched,
// ready for the caller to initialize its layout.
func NewPageWrite(c Cache, typ page.Type) (*Write, error) {
	pg, err := c.NewPage(typ)
	if err != nil {
		return nil, fmt.Errorf("guard: new page write: %w", err)
	}
	pg.Lock()
	return &Write{cache: c, pg: pg}, nil
}

func (g *Write) PageID() uint32 { return g.pg.ID }
func (g *Write) Data() []byte   { return g.pg.Data }

// Drop releases the exclusive latch then the pin, always propagating
// dirtiness. Idempotent.
func (g *Write) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.pg.Unlock()
	_ = g.cache.UnpinPage(g.pg.ID, true)
}
