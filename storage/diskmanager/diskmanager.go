// Package diskmanager owns the single OS file backing one B+ tree index and
// the page ids within it. Page ids are plain offsets into that file — there
// is no multi-file global id space, since a tree's page cache addresses
// exactly one file (spec's page ids are opaque 32-bit integers, not a
// database-wide namespace).
package diskmanager

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"bptreedb/storage/page"
)

// Manager reads and writes fixed-size pages at fileOffset = pageID * page.Size.
type Manager struct {
	path string
	file *os.File
	log  *zap.SugaredLogger

	mu         sync.RWMutex
	nextPageID uint32
}

// Open opens or creates the index file at path. For a brand-new (empty)
// file, the first page AllocatePage hands out is id 0 — by convention the B+
// tree package always allocates its header page first, so id 0 always
// belongs to the header; every real tree node gets id >= 1.
func Open(path string, log *zap.SugaredLogger) (*Manager, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("diskmanager: open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("diskmanager: stat %s: %w", path, err)
	}
	numPages := uint32(stat.Size() / page.Size)
	log.Infow("disk manager opened", "path", path, "existingPages", numPages)
	return &Manager{path: path, file: f, log: log, nextPageID: numPages}, nil
}

// ReadPage reads page id directly from disk into a fresh frame of typ.
func (m *Manager) ReadPage(id uint32, typ page.Type) (*page.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pg := page.New(id, typ)
	offset := int64(id) * page.Size
	n, err := m.file.ReadAt(pg.Data, offset)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("diskmanager: read page %d: %w", id, err)
	}
	return pg, nil
}

// WritePage persists pg's bytes at its page id's offset.
func (m *Manager) WritePage(pg *page.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(pg.Data) != page.Size {
		return fmt.Errorf("diskmanager: page %d has wrong size %d", pg.ID, len(pg.Data))
	}
	offset := int64(pg.ID) * page.Size
	if _, err := m.file.WriteAt(pg.Data, offset); err != nil {
		return fmt.Errorf("diskmanager: write page %d: %w", pg.ID, err)
	}
	return nil
}

// AllocatePage reserves the next page id. It does not write anything —
// the buffer pool writes the frame's initial contents when it later flushes.
func (m *Manager) AllocatePage() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextPageID
	m.nextPageID++
	return id
}

// Sync flushes the OS file buffer to stable storage.
func (m *Manager) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("diskmanager: sync: %w", err)
	}
	return nil
}

// Close syncs and closes the underlying file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		m.log.Warnw("sync failed on close", "path", m.path, "error", err)
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("diskmanager: close: %w", err)
	}
	m.log.Infow("disk manager closed", "path", m.path)
	return nil
}
