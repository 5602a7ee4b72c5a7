// Package concurrency defines the transaction context that index operations
// run under: the ancestor latch chain and the deferred page deletions.
package concurrency

import (
	"github.com/google/uuid"

	"stegodb/pkg/pager"
)

// Transaction carries the per-operation latch bookkeeping for an index op.
// The page set is the ordered chain of write-latched ancestor pages retained
// during a crabbing descent; the deleted page set holds page numbers to be
// reclaimed once every latch has been released.
//
// A Transaction is owned by a single operation and is not safe for use from
// multiple goroutines.
type Transaction struct {
	id             uuid.UUID
	pageSet        []*pager.Page
	deletedPageSet map[int64]struct{}
}

// NewTransaction constructs an empty transaction with a fresh client id.
func NewTransaction() *Transaction {
	return &Transaction{
		id:             uuid.New(),
		deletedPageSet: make(map[int64]struct{}),
	}
}

// GetID returns the transaction's unique id.
func (t *Transaction) GetID() uuid.UUID {
	return t.id
}

// AddToPageSet appends a latched ancestor page to the page set.
func (t *Transaction) AddToPageSet(page *pager.Page) {
	t.pageSet = append(t.pageSet, page)
}

// PageSet returns the ordered ancestor chain, root-most first.
func (t *Transaction) PageSet() []*pager.Page {
	return t.pageSet
}

// PopPageSet removes and returns the most recently added ancestor page,
// or nil if the page set is empty.
func (t *Transaction) PopPageSet() *pager.Page {
	if len(t.pageSet) == 0 {
		return nil
	}
	page := t.pageSet[len(t.pageSet)-1]
	t.pageSet = t.pageSet[:len(t.pageSet)-1]
	return page
}

// ClearPageSet empties the page set. The caller is responsible for having
// released the latches first.
func (t *Transaction) ClearPageSet() {
	t.pageSet = t.pageSet[:0]
}

// AddToDeletedPageSet records a page number to reclaim after latch release.
func (t *Transaction) AddToDeletedPageSet(pagenum int64) {
	t.deletedPageSet[pagenum] = struct{}{}
}

// DeletedPageSet returns the set of page numbers queued for deletion.
func (t *Transaction) DeletedPageSet() map[int64]struct{} {
	return t.deletedPageSet
}

// ClearDeletedPageSet empties the deleted page set.
func (t *Transaction) ClearDeletedPageSet() {
	clear(t.deletedPageSet)
}
