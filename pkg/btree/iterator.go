package btree

import (
	"fmt"

	"stegodb/pkg/entry"
	"stegodb/pkg/pager"
)

// Iterator is a forward cursor over the tree's leaves in key order. It keeps
// the current leaf pinned for its lifetime and takes the leaf's read latch
// only while reading, so writers can make progress between observations.
//
// Callers must Close the iterator to release the pin.
type Iterator struct {
	pager *pager.Pager
	page  *pager.Page // current leaf, pinned; nil for the empty tree or after Close
	leaf  leafNode
	index int64
}

// Begin returns an iterator positioned at the first entry of the tree.
func (t *BPlusTree) Begin() (*Iterator, error) {
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return &Iterator{pager: t.pager}, nil
	}
	page, _, err := t.findLeafPage(0, opFind, nil, true)
	if err != nil {
		return nil, err
	}
	it := &Iterator{pager: t.pager, page: page, leaf: t.leaf(page)}
	page.RUnlatch()
	return it, nil
}

// BeginAt returns an iterator positioned at the first entry whose key is
// >= key.
func (t *BPlusTree) BeginAt(key int64) (*Iterator, error) {
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return &Iterator{pager: t.pager}, nil
	}
	page, _, err := t.findLeafPage(key, opFind, nil, false)
	if err != nil {
		return nil, err
	}
	leaf := t.leaf(page)
	it := &Iterator{pager: t.pager, page: page, leaf: leaf, index: leaf.search(key)}
	pastEnd := it.index >= leaf.size()
	page.RUnlatch()
	// The key may order past this leaf's last entry; step onto the next leaf.
	if pastEnd {
		if err := it.Next(); err != nil {
			it.Close()
			return nil, err
		}
	}
	return it, nil
}

// End returns an iterator positioned one past the last entry of the tree.
func (t *BPlusTree) End() (*Iterator, error) {
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return &Iterator{pager: t.pager}, nil
	}
	page, _, err := t.findLeafPage(0, opFind, nil, true)
	if err != nil {
		return nil, err
	}
	leaf := t.leaf(page)
	for leaf.nextPN() != INVALID_PN {
		nextPage, err := t.pager.FetchPage(leaf.nextPN())
		if err != nil {
			page.RUnlatch()
			t.pager.PutPage(page)
			return nil, fmt.Errorf("%w: walking to last leaf: %v", ErrOutOfMemory, err)
		}
		nextPage.RLatch()
		page.RUnlatch()
		t.pager.PutPage(page)
		page = nextPage
		leaf = t.leaf(page)
	}
	it := &Iterator{pager: t.pager, page: page, leaf: leaf, index: leaf.size()}
	page.RUnlatch()
	return it, nil
}

// IsEnd reports whether the iterator is past the last entry.
func (it *Iterator) IsEnd() bool {
	if it.page == nil {
		return true
	}
	it.page.RLatch()
	defer it.page.RUnlatch()
	return it.leaf.nextPN() == INVALID_PN && it.index >= it.leaf.size()
}

// Entry returns the entry at the current position. Only legal when the
// iterator is not at the end.
func (it *Iterator) Entry() entry.Entry {
	it.page.RLatch()
	defer it.page.RUnlatch()
	return it.leaf.entryAt(it.index)
}

// Next advances by one entry, following the sibling link off the end of the
// current leaf.
func (it *Iterator) Next() error {
	if it.page == nil {
		return nil
	}
	it.index++
	it.page.RLatch()
	size := it.leaf.size()
	next := it.leaf.nextPN()
	it.page.RUnlatch()
	if it.index >= size {
		if next == INVALID_PN {
			it.index = size
			return nil
		}
		nextPage, err := it.pager.FetchPage(next)
		if err != nil {
			return fmt.Errorf("%w: advancing to page %d: %v", ErrOutOfMemory, next, err)
		}
		it.pager.PutPage(it.page)
		it.page = nextPage
		it.leaf = leafNode{node: asNode(nextPage), compare: it.leaf.compare}
		it.index = 0
	}
	return nil
}

// Equals reports whether two iterators reference the same position.
func (it *Iterator) Equals(other *Iterator) bool {
	if it.page == nil || other.page == nil {
		return it.page == other.page && it.index == other.index
	}
	return it.page.GetPageNum() == other.page.GetPageNum() && it.index == other.index
}

// Close releases the pin on the current leaf. Safe to call more than once.
func (it *Iterator) Close() {
	if it.page != nil {
		it.pager.PutPage(it.page)
		it.page = nil
	}
}
