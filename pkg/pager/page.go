package pager

import (
	"sync"
	"sync/atomic"
)

// NoPage is the pagenum for when there is no page being held.
const NoPage = -1

// Page caches a page from disk and stores additional metadata.
type Page struct {
	pager    *Pager       // Pointer to the pager that this page belongs to
	pagenum  int64        // Unique identifier for the page also denoting its position in the pager's file
	pinCount atomic.Int64 // The number of active references to this page
	dirty    bool         // Whether the page's data has changed and needs to be written to disk
	rwlatch  sync.RWMutex // Reader-writer latch on the page contents
	data     []byte       // The full frame, including the checksum trailer
}

// GetPager returns the pager this page belongs to.
func (page *Page) GetPager() *Pager {
	return page.pager
}

// GetPageNum returns the page's pagenum (unique identifier).
func (page *Page) GetPageNum() int64 {
	return page.pagenum
}

// IsDirty reports whether the page's data has changed and needs to be written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// SetDirty changes the dirty status of a page.
func (page *Page) SetDirty(dirty bool) {
	page.dirty = dirty
}

// GetData returns the payload bytes held by the page. The checksum trailer is
// not included; it belongs to the pager.
func (page *Page) GetData() []byte {
	return page.data[:UsableSize]
}

// Get increments the pin count, indicating that another process is using this page.
func (page *Page) Get() {
	page.pinCount.Add(1)
}

// Put decrements the pin count, indicating that a process is done using this page.
func (page *Page) Put() int64 {
	return page.pinCount.Add(-1)
}

// PinCount returns the page's current pin count.
func (page *Page) PinCount() int64 {
	return page.pinCount.Load()
}

// Update overwrites `size` bytes of the page's payload at the given offset
// and marks the page dirty.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// WLatch grabs a writer latch on the page.
func (page *Page) WLatch() {
	page.rwlatch.Lock()
}

// WUnlatch releases a writer latch.
func (page *Page) WUnlatch() {
	page.rwlatch.Unlock()
}

// RLatch grabs a reader latch on the page.
func (page *Page) RLatch() {
	page.rwlatch.RLock()
}

// RUnlatch releases a reader latch.
func (page *Page) RUnlatch() {
	page.rwlatch.RUnlock()
}
