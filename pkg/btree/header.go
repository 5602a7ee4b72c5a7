package btree

import (
	"bytes"
	"encoding/binary"
	"errors"

	"stegodb/pkg/pager"
)

// The header page is the first page of an index file. It maps index names to
// their root pagenums so a tree can be located again after reopening.
//
// Layout: a record count in the first varint slot, then fixed-width records
// of a NUL-padded name followed by the root pagenum.
const (
	HEADER_COUNT_OFFSET   int64 = 0
	HEADER_COUNT_SIZE     int64 = binary.MaxVarintLen64
	HEADER_RECORDS_OFFSET int64 = HEADER_COUNT_OFFSET + HEADER_COUNT_SIZE
	RECORD_NAME_SIZE      int64 = 32
	RECORD_SIZE           int64 = RECORD_NAME_SIZE + binary.MaxVarintLen64
	MAX_HEADER_RECORDS    int64 = (pager.UsableSize - HEADER_RECORDS_OFFSET) / RECORD_SIZE
)

var (
	// ErrHeaderFull is returned when the header page has no record slots left.
	ErrHeaderFull = errors.New("header page is full")
	// ErrRecordNotFound is returned when updating a record that does not exist.
	ErrRecordNotFound = errors.New("header record not found")
)

// headerPage is a typed view over an index file's header page.
type headerPage struct {
	page *pager.Page
}

func asHeader(page *pager.Page) headerPage {
	return headerPage{page: page}
}

func (h headerPage) numRecords() int64 {
	count, _ := binary.Varint(h.page.GetData()[HEADER_COUNT_OFFSET : HEADER_COUNT_OFFSET+HEADER_COUNT_SIZE])
	return count
}

func (h headerPage) setNumRecords(count int64) {
	data := make([]byte, HEADER_COUNT_SIZE)
	binary.PutVarint(data, count)
	h.page.Update(data, HEADER_COUNT_OFFSET, HEADER_COUNT_SIZE)
}

func recordPos(index int64) int64 {
	return HEADER_RECORDS_OFFSET + index*RECORD_SIZE
}

func (h headerPage) recordNameAt(index int64) string {
	pos := recordPos(index)
	raw := h.page.GetData()[pos : pos+RECORD_NAME_SIZE]
	return string(bytes.TrimRight(raw, "\x00"))
}

func (h headerPage) recordRootAt(index int64) int64 {
	pos := recordPos(index) + RECORD_NAME_SIZE
	root, _ := binary.Varint(h.page.GetData()[pos : pos+binary.MaxVarintLen64])
	return root
}

func (h headerPage) writeRecordAt(index int64, name string, rootPN int64) {
	data := make([]byte, RECORD_SIZE)
	copy(data[:RECORD_NAME_SIZE], name)
	binary.PutVarint(data[RECORD_NAME_SIZE:], rootPN)
	h.page.Update(data, recordPos(index), RECORD_SIZE)
}

func (h headerPage) findRecord(name string) int64 {
	for i := int64(0); i < h.numRecords(); i++ {
		if h.recordNameAt(i) == name {
			return i
		}
	}
	return -1
}

// InsertRecord appends a (name, rootPN) record. Errors if the name is taken,
// too long, or the page is full.
func (h headerPage) InsertRecord(name string, rootPN int64) error {
	if int64(len(name)) > RECORD_NAME_SIZE {
		return errors.New("index name too long")
	}
	if h.findRecord(name) >= 0 {
		return errors.New("header record already exists")
	}
	count := h.numRecords()
	if count >= MAX_HEADER_RECORDS {
		return ErrHeaderFull
	}
	h.writeRecordAt(count, name, rootPN)
	h.setNumRecords(count + 1)
	return nil
}

// UpdateRecord rewrites the root pagenum stored under name.
func (h headerPage) UpdateRecord(name string, rootPN int64) error {
	idx := h.findRecord(name)
	if idx < 0 {
		return ErrRecordNotFound
	}
	h.writeRecordAt(idx, name, rootPN)
	return nil
}

// LookupRecord returns the root pagenum stored under name.
func (h headerPage) LookupRecord(name string) (rootPN int64, found bool) {
	idx := h.findRecord(name)
	if idx < 0 {
		return INVALID_PN, false
	}
	return h.recordRootAt(idx), true
}
