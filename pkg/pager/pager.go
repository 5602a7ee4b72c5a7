// Package pager implements the buffer pool: fixed-size page frames cached in
// memory, backed by a database file, with pin counts and per-page latches.
package pager

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"stegodb/pkg/config"
	"stegodb/pkg/list"
	"stegodb/pkg/logger"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash"
	"github.com/ncw/directio"
)

// Pagesize is the size of an individual page frame - defaults to 4kb.
const Pagesize int64 = directio.BlockSize

// ChecksumSize is the width of the xxhash trailer at the end of every page.
const ChecksumSize int64 = 8

// UsableSize is the number of payload bytes available to page layouts.
const UsableSize int64 = Pagesize - ChecksumSize

// ErrRanOutOfPages is returned when there are no free or unpinned frames left.
var ErrRanOutOfPages = errors.New("no available pages")

// ErrPagePinned is returned when deleting a page that still has references.
var ErrPagePinned = errors.New("page is still pinned")

// Pager manages pages of data stored in a file.
type Pager struct {
	file         *os.File          // File descriptor for the file that backs this pager on disk.
	numPages     int64             // The number of page slots in the backing file.
	freePageNums *bitset.BitSet    // Page numbers below numPages that were deleted and may be reused.
	freeList     *list.List[*Page] // Pre-allocated (but unused) frames.
	unpinnedList *list.List[*Page] // In-memory pages that have yet to be evicted, but are not currently in use.
	pinnedList   *list.List[*Page] // In-memory pages currently being used by the database.
	// The page table, mapping pagenums to the link holding their page.
	pageTable map[int64]*list.Link[*Page]
	ptMtx     sync.Mutex // Protects the page table and lists for concurrent use.
}

// New constructs a Pager backed by a database file at the specified filePath,
// with poolSize frames in memory. A poolSize <= 0 uses the configured default.
func New(filePath string, poolSize int) (*Pager, error) {
	if poolSize <= 0 {
		poolSize = config.DefaultMaxPagesInBuffer
	}
	pager := &Pager{
		freePageNums: bitset.New(uint(poolSize)),
		freeList:     list.NewList[*Page](),
		unpinnedList: list.NewList[*Page](),
		pinnedList:   list.NewList[*Page](),
		pageTable:    make(map[int64]*list.Link[*Page]),
	}
	frames := directio.AlignedBlock(int(Pagesize) * poolSize)
	for i := 0; i < poolSize; i++ {
		frame := frames[i*int(Pagesize) : (i+1)*int(Pagesize)]
		page := Page{
			pager:   pager,
			pagenum: NoPage,
			data:    frame,
		}
		pager.freeList.PushTail(&page)
	}
	if err := pager.open(filePath); err != nil {
		return nil, err
	}
	return pager, nil
}

// GetFileName returns the file name/path used to open the pager's backing file.
func (pager *Pager) GetFileName() string {
	return pager.file.Name()
}

// GetNumPages returns the number of page slots in the backing file.
func (pager *Pager) GetNumPages() int64 {
	return pager.numPages
}

// open initializes the pager with a database file at the specified filePath,
// creating it if needed. The file's size must be a multiple of Pagesize.
func (pager *Pager) open(filePath string) (err error) {
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		err = os.MkdirAll(filePath[:idx], 0775)
		if err != nil {
			return err
		}
	}
	pager.file, err = directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return err
	}
	info, err := pager.file.Stat()
	if err != nil {
		return err
	}
	if info.Size()%Pagesize != 0 {
		return errors.New("db file has been corrupted")
	}
	pager.numPages = info.Size() / Pagesize
	return nil
}

// Close flushes all dirty pages to disk and closes the backing file.
// Errors out if any page is still pinned.
func (pager *Pager) Close() error {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	if pager.pinnedList.PeekHead() != nil {
		return errors.New("pages are still pinned on close")
	}
	pager.FlushAllPages()
	return pager.file.Close()
}

// fillPageFromDisk populates a page's frame from the data currently on disk
// and verifies the checksum trailer.
func (pager *Pager) fillPageFromDisk(page *Page) error {
	if _, err := pager.file.Seek(page.pagenum*Pagesize, 0); err != nil {
		return err
	}
	clear(page.data)
	if _, err := pager.file.Read(page.data); err != nil && err != io.EOF {
		return err
	}
	// A zero trailer means the page was never flushed (reads past EOF come
	// back zeroed); there is nothing to verify.
	stored := binary.LittleEndian.Uint64(page.data[UsableSize:])
	if stored != 0 && stored != xxhash.Sum64(page.data[:UsableSize]) {
		return fmt.Errorf("page %d failed checksum verification", page.pagenum)
	}
	return nil
}

// newPage returns a currently unused frame from the free or unpinned list,
// or ErrRanOutOfPages if no frame is available. The ptMtx must be held.
func (pager *Pager) newPage(pagenum int64) (*Page, error) {
	var newPage *Page
	if freeLink := pager.freeList.PeekHead(); freeLink != nil {
		freeLink.PopSelf()
		newPage = freeLink.GetValue()
	} else if unpinLink := pager.unpinnedList.PeekHead(); unpinLink != nil {
		unpinLink.PopSelf()
		newPage = unpinLink.GetValue()
		pager.FlushPage(newPage)
		delete(pager.pageTable, newPage.pagenum)
	} else {
		return nil, ErrRanOutOfPages
	}
	newPage.pagenum = pagenum
	newPage.dirty = false
	newPage.pinCount.Store(1)
	return newPage, nil
}

// NewPage allocates a new page, pins it, and returns it. Page numbers of
// previously deleted pages are reused before the file is extended.
func (pager *Pager) NewPage() (*Page, error) {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	pagenum := pager.numPages
	recycled, reuse := pager.freePageNums.NextSet(0)
	if reuse {
		pagenum = int64(recycled)
	}
	page, err := pager.newPage(pagenum)
	if err != nil {
		return nil, err
	}
	clear(page.data)
	// Mark dirty so the new page is eventually flushed to disk.
	page.dirty = true
	newLink := pager.pinnedList.PushTail(page)
	pager.pageTable[pagenum] = newLink
	if reuse {
		pager.freePageNums.Clear(recycled)
	} else {
		pager.numPages++
	}
	logger.Debugf("pager: allocated page %d", pagenum)
	return page, nil
}

// FetchPage pins and returns the existing page corresponding to the given pagenum.
func (pager *Pager) FetchPage(pagenum int64) (*Page, error) {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	if pagenum < 0 || pagenum > pager.numPages-1 {
		return nil, errors.New("invalid pagenum")
	}
	if pager.freePageNums.Test(uint(pagenum)) {
		return nil, fmt.Errorf("page %d has been deleted", pagenum)
	}
	if link, ok := pager.pageTable[pagenum]; ok {
		page := link.GetValue()
		// Move the page to the pinned list if needed.
		if link.GetList() == pager.unpinnedList {
			link.PopSelf()
			pager.pageTable[pagenum] = pager.pinnedList.PushTail(page)
		}
		page.Get()
		return page, nil
	}

	page, err := pager.newPage(pagenum)
	if err != nil {
		return nil, err
	}
	page.dirty = false
	if err = pager.fillPageFromDisk(page); err != nil {
		page.pagenum = NoPage
		pager.freeList.PushTail(page)
		return nil, err
	}
	pager.pageTable[pagenum] = pager.pinnedList.PushTail(page)
	return page, nil
}

// PutPage releases a reference to a page. Pages with no remaining references
// move to the unpinned list and become eviction candidates.
func (pager *Pager) PutPage(page *Page) error {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	ret := page.Put()
	if ret == 0 {
		link := pager.pageTable[page.pagenum]
		link.PopSelf()
		pager.pageTable[page.pagenum] = pager.unpinnedList.PushTail(page)
	}
	if ret < 0 {
		return errors.New("pinCount for page is < 0")
	}
	return nil
}

// DeletePage removes a page from the pager and recycles its page number.
// Only legal when the page has no remaining references.
func (pager *Pager) DeletePage(pagenum int64) error {
	pager.ptMtx.Lock()
	defer pager.ptMtx.Unlock()
	if pagenum < 0 || pagenum > pager.numPages-1 {
		return errors.New("invalid pagenum")
	}
	if link, ok := pager.pageTable[pagenum]; ok {
		page := link.GetValue()
		if page.PinCount() > 0 {
			return ErrPagePinned
		}
		link.PopSelf()
		delete(pager.pageTable, pagenum)
		page.pagenum = NoPage
		page.dirty = false
		pager.freeList.PushTail(page)
	}
	pager.freePageNums.Set(uint(pagenum))
	logger.Debugf("pager: deleted page %d", pagenum)
	return nil
}

// FlushPage flushes a particular page's data to disk if it is dirty,
// stamping the checksum trailer.
// Concurrency note: the page should at least be read-latched upon entry.
func (pager *Pager) FlushPage(page *Page) {
	if page.IsDirty() {
		binary.LittleEndian.PutUint64(page.data[UsableSize:], xxhash.Sum64(page.data[:UsableSize]))
		pager.file.WriteAt(page.data, page.pagenum*Pagesize)
		page.SetDirty(false)
	}
}

// FlushAllPages flushes all dirty pages to disk.
func (pager *Pager) FlushAllPages() {
	writer := func(link *list.Link[*Page]) {
		pager.FlushPage(link.GetValue())
	}
	pager.pinnedList.Map(writer)
	pager.unpinnedList.Map(writer)
}
