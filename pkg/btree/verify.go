package btree

import (
	"fmt"
)

// Verify checks the structural invariants of the tree: in-node key order,
// separator bounds, parent pointers, non-root size bounds, and the sibling
// chain enumerating every key in ascending order exactly once.
//
// Verify holds the root latch only to read the root pagenum and takes no page
// latches; run it on a quiescent tree (tests, debugging).
func (t *BPlusTree) Verify() error {
	t.rootLatch.Lock()
	rootPN := t.rootPN
	t.rootLatch.Unlock()
	if rootPN == INVALID_PN {
		return nil
	}
	_, _, total, err := t.verifyNode(rootPN, INVALID_PN, nil, nil)
	if err != nil {
		return err
	}
	chained, err := t.verifyChain(rootPN)
	if err != nil {
		return err
	}
	if chained != total {
		return fmt.Errorf("sibling chain enumerates %d entries, tree holds %d", chained, total)
	}
	return nil
}

// verifyNode recursively checks the subtree rooted at pn. low and high bound
// the keys the subtree may contain: low inclusive, high exclusive; nil means
// unbounded.
func (t *BPlusTree) verifyNode(pn int64, expectParent int64, low *int64, high *int64) (first int64, last int64, count int64, err error) {
	page, err := t.pager.FetchPage(pn)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("fetching page %d: %w", pn, err)
	}
	defer t.pager.PutPage(page)
	n := asNode(page)

	if n.parentPN() != expectParent {
		return 0, 0, 0, fmt.Errorf("page %d has parent %d, expected %d", pn, n.parentPN(), expectParent)
	}
	if expectParent != INVALID_PN {
		if n.size() < n.minSize() {
			return 0, 0, 0, fmt.Errorf("page %d underflows: size %d < min %d", pn, n.size(), n.minSize())
		}
		if n.size() > n.maxItems() {
			return 0, 0, 0, fmt.Errorf("page %d overflows: size %d > max %d", pn, n.size(), n.maxItems())
		}
	}

	inBounds := func(key int64) error {
		if low != nil && t.compare(key, *low) < 0 {
			return fmt.Errorf("page %d: key %d below bound %d", pn, key, *low)
		}
		if high != nil && t.compare(key, *high) >= 0 {
			return fmt.Errorf("page %d: key %d at or above bound %d", pn, key, *high)
		}
		return nil
	}

	if n.isLeaf() {
		leaf := t.asLeafNode(n)
		size := leaf.size()
		for i := int64(0); i < size; i++ {
			key := leaf.keyAt(i)
			if i > 0 && t.compare(leaf.keyAt(i-1), key) >= 0 {
				return 0, 0, 0, fmt.Errorf("leaf %d: keys not strictly ascending at slot %d", pn, i)
			}
			if err := inBounds(key); err != nil {
				return 0, 0, 0, err
			}
		}
		if size == 0 {
			return 0, 0, 0, nil
		}
		return leaf.keyAt(0), leaf.keyAt(size - 1), size, nil
	}

	inode := t.asInternalNode(n)
	size := inode.size()
	if size < 2 && expectParent == INVALID_PN {
		return 0, 0, 0, fmt.Errorf("internal root %d has %d children", pn, size)
	}
	for i := int64(1); i < size; i++ {
		key := inode.keyAt(i)
		if i > 1 && t.compare(inode.keyAt(i-1), key) >= 0 {
			return 0, 0, 0, fmt.Errorf("internal %d: separators not strictly ascending at slot %d", pn, i)
		}
		if err := inBounds(key); err != nil {
			return 0, 0, 0, err
		}
	}
	for i := int64(0); i < size; i++ {
		childLow, childHigh := low, high
		if i > 0 {
			k := inode.keyAt(i)
			childLow = &k
		}
		if i < size-1 {
			k := inode.keyAt(i + 1)
			childHigh = &k
		}
		childFirst, childLast, childCount, err := t.verifyNode(inode.childAt(i), pn, childLow, childHigh)
		if err != nil {
			return 0, 0, 0, err
		}
		if i == 0 {
			first = childFirst
		}
		last = childLast
		count += childCount
	}
	return first, last, count, nil
}

// verifyChain walks the leaves via sibling links, checking strict ascent
// across the whole key set, and returns the number of entries seen.
func (t *BPlusTree) verifyChain(rootPN int64) (int64, error) {
	pn := rootPN
	for {
		page, err := t.pager.FetchPage(pn)
		if err != nil {
			return 0, err
		}
		n := asNode(page)
		if n.isLeaf() {
			t.pager.PutPage(page)
			break
		}
		next := t.asInternalNode(n).childAt(0)
		t.pager.PutPage(page)
		pn = next
	}

	var count int64
	var prev int64
	havePrev := false
	for pn != INVALID_PN {
		page, err := t.pager.FetchPage(pn)
		if err != nil {
			return 0, err
		}
		leaf := t.asLeafNode(asNode(page))
		size := leaf.size()
		for i := int64(0); i < size; i++ {
			key := leaf.keyAt(i)
			if havePrev && t.compare(prev, key) >= 0 {
				t.pager.PutPage(page)
				return 0, fmt.Errorf("leaf chain not strictly ascending at key %d in page %d", key, pn)
			}
			prev = key
			havePrev = true
			count++
		}
		pn = leaf.nextPN()
		t.pager.PutPage(page)
	}
	return count, nil
}
