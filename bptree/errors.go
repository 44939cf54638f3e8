package bptree

import (
	"errors"
	"fmt"

	"bptreedb/storage/bufferpool"
	"bptreedb/storage/guard"
)

// ErrInvalidPageID means a page id that should never be dereferenced (most
// often page.InvalidID) was passed to something that dereferences pages.
var ErrInvalidPageID = errors.New("bptree: invalid page id")

// ErrLayoutMismatch means a page's stored Type tag doesn't match what the
// caller expected to find there — a programming bug, not a runtime
// condition callers should plan around.
var ErrLayoutMismatch = errors.New("bptree: layout mismatch")

// ErrPageCacheExhausted is bufferpool.ErrExhausted itself: every frame is
// pinned and no page can be fetched or allocated until one is released.
var ErrPageCacheExhausted = bufferpool.ErrExhausted

// wrapCacheErr classifies an error surfaced by the guard/cache layer into
// the tree's own error taxonomy (spec §7), preserving it for errors.Is/As.
func wrapCacheErr(op string, id uint32, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bufferpool.ErrExhausted) {
		return fmt.Errorf("bptree: %s page %d: %w", op, id, ErrPageCacheExhausted)
	}
	if errors.Is(err, guard.ErrInvalidPage) {
		return fmt.Errorf("bptree: %s page %d: %w", op, id, ErrInvalidPageID)
	}
	return fmt.Errorf("bptree: %s page %d: %w", op, id, err)
}
