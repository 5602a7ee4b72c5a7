// Package btree implements a concurrent, paged B+tree index on top of the
// pager's buffer pool. Readers and writers descend with latch coupling: a
// child's latch is taken before the parent's is released, and writers retain
// the ancestor chain only while a split or merge might still reach it.
package btree

import (
	"errors"
	"fmt"
	"sync"

	"stegodb/pkg/concurrency"
	"stegodb/pkg/logger"
	"stegodb/pkg/pager"
)

var (
	// ErrOutOfMemory wraps buffer pool exhaustion during an index operation.
	ErrOutOfMemory = errors.New("buffer pool exhausted")
	// ErrInvalidRoot reports a descent that found no valid root.
	ErrInvalidRoot = errors.New("root pagenum is invalid")
	// ErrNilTransaction reports a write operation invoked without a transaction.
	ErrNilTransaction = errors.New("write operations require a transaction")
)

// treeOp identifies the kind of operation descending the tree; the safety
// predicate and latch modes depend on it.
type treeOp int

const (
	opFind treeOp = iota
	opInsert
	opDelete
)

// BPlusTree is a handle on one named index inside a pager file.
type BPlusTree struct {
	name            string
	pager           *pager.Pager
	compare         KeyComparator
	leafMaxSize     int64
	internalMaxSize int64

	// rootLatch guards the identity of rootPN and the tree-is-empty decision.
	rootLatch sync.Mutex
	rootPN    int64
}

// Open returns a handle on the index called name inside the given pager file,
// registering it in the header page if it does not exist yet. A leafMaxSize
// or internalMaxSize of 0 derives the fanout from the page capacity.
func Open(name string, pgr *pager.Pager, compare KeyComparator, leafMaxSize, internalMaxSize int64) (*BPlusTree, error) {
	if compare == nil {
		compare = CompareIntKeys
	}
	if leafMaxSize == 0 {
		leafMaxSize = DEFAULT_LEAF_MAX_SIZE
	}
	if internalMaxSize == 0 {
		internalMaxSize = DEFAULT_INTERNAL_MAX_SIZE
	}
	if leafMaxSize < 3 || leafMaxSize > ENTRIES_PER_LEAF_MAX {
		return nil, fmt.Errorf("leaf max size %d out of range [3, %d]", leafMaxSize, ENTRIES_PER_LEAF_MAX)
	}
	if internalMaxSize < 3 || internalMaxSize > PAIRS_PER_INTERNAL_MAX-1 {
		return nil, fmt.Errorf("internal max size %d out of range [3, %d]", internalMaxSize, PAIRS_PER_INTERNAL_MAX-1)
	}

	t := &BPlusTree{
		name:            name,
		pager:           pgr,
		compare:         compare,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPN:          INVALID_PN,
	}

	// Page 0 of the file is the header page; create it on first use.
	var headerPg *pager.Page
	var err error
	if pgr.GetNumPages() == 0 {
		headerPg, err = pgr.NewPage()
	} else {
		headerPg, err = pgr.FetchPage(HEADER_PN)
	}
	if err != nil {
		return nil, err
	}
	defer pgr.PutPage(headerPg)
	headerPg.WLatch()
	defer headerPg.WUnlatch()
	header := asHeader(headerPg)
	if rootPN, found := header.LookupRecord(name); found {
		t.rootPN = rootPN
	} else if err := header.InsertRecord(name, INVALID_PN); err != nil {
		return nil, err
	}
	return t, nil
}

// GetName returns the index's name.
func (t *BPlusTree) GetName() string {
	return t.name
}

// GetPager returns the pager backing this index.
func (t *BPlusTree) GetPager() *pager.Pager {
	return t.pager
}

// IsEmpty reports whether the tree holds no entries.
func (t *BPlusTree) IsEmpty() bool {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()
	return t.rootPN == INVALID_PN
}

// Close flushes the index's pages to disk.
func (t *BPlusTree) Close() error {
	return t.pager.Close()
}

// updateRootRecord persists the current root pagenum into the header page.
// Must be called with the root latch held.
func (t *BPlusTree) updateRootRecord() error {
	headerPg, err := t.pager.FetchPage(HEADER_PN)
	if err != nil {
		return fmt.Errorf("%w: fetching header page: %v", ErrOutOfMemory, err)
	}
	headerPg.WLatch()
	err = asHeader(headerPg).UpdateRecord(t.name, t.rootPN)
	headerPg.WUnlatch()
	if putErr := t.pager.PutPage(headerPg); err == nil {
		err = putErr
	}
	return err
}

// isSafe reports whether the current operation cannot propagate a split or
// underflow past this node.
func (t *BPlusTree) isSafe(n node, op treeOp) bool {
	switch op {
	case opInsert:
		return n.size() < n.maxItems()
	case opDelete:
		// The root stays valid as long as one entry can be removed: an
		// internal root needs two children, a leaf root one entry.
		if n.isRoot() {
			return n.size() > 2
		}
		return n.size() > n.minSize()
	default:
		return true
	}
}

// releaseAncestors write-unlatches and unpins every page retained in the
// transaction's page set.
func (t *BPlusTree) releaseAncestors(txn *concurrency.Transaction) {
	if txn == nil {
		return
	}
	for _, page := range txn.PageSet() {
		page.WUnlatch()
		t.pager.PutPage(page)
	}
	txn.ClearPageSet()
}

// releaseAll drops the root latch (when still held) and the ancestor chain.
func (t *BPlusTree) releaseAll(txn *concurrency.Transaction, rootHeld bool) {
	if rootHeld {
		t.rootLatch.Unlock()
	}
	t.releaseAncestors(txn)
}

// findLeafPage descends to the leaf covering key (or the leftmost leaf),
// latch coupling on the way down.
//
// The root latch must be held on entry. For opFind it is dropped as soon as
// the root page is read-latched and the leaf comes back read-latched with no
// ancestors retained. For opInsert/opDelete the leaf comes back
// write-latched; every ancestor that might still be reached by a split or
// merge stays write-latched in txn's page set, and the returned flag reports
// whether the root latch is still held.
func (t *BPlusTree) findLeafPage(key int64, op treeOp, txn *concurrency.Transaction, leftmost bool) (*pager.Page, bool, error) {
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return nil, false, ErrInvalidRoot
	}
	page, err := t.pager.FetchPage(t.rootPN)
	if err != nil {
		t.rootLatch.Unlock()
		return nil, false, fmt.Errorf("%w: fetching root: %v", ErrOutOfMemory, err)
	}
	rootHeld := true
	n := asNode(page)
	if op == opFind {
		page.RLatch()
		t.rootLatch.Unlock()
		rootHeld = false
	} else {
		page.WLatch()
		if t.isSafe(n, op) {
			t.rootLatch.Unlock()
			rootHeld = false
		}
	}

	for !n.isLeaf() {
		inode := t.internal(page)
		var childPN int64
		if leftmost {
			childPN = inode.childAt(0)
		} else {
			childPN = inode.lookup(key)
		}
		childPage, err := t.pager.FetchPage(childPN)
		if err != nil {
			if op == opFind {
				page.RUnlatch()
				t.pager.PutPage(page)
			} else {
				page.WUnlatch()
				t.pager.PutPage(page)
				t.releaseAll(txn, rootHeld)
			}
			return nil, false, fmt.Errorf("%w: fetching page %d: %v", ErrOutOfMemory, childPN, err)
		}
		child := asNode(childPage)
		if op == opFind {
			childPage.RLatch()
			page.RUnlatch()
			t.pager.PutPage(page)
		} else {
			childPage.WLatch()
			txn.AddToPageSet(page)
			if t.isSafe(child, op) {
				if rootHeld {
					t.rootLatch.Unlock()
					rootHeld = false
				}
				t.releaseAncestors(txn)
			}
		}
		page = childPage
		n = child
	}
	return page, rootHeld, nil
}

// GetValue looks up the values stored under key. The transaction may be nil.
func (t *BPlusTree) GetValue(key int64, txn *concurrency.Transaction) (values []int64, found bool, err error) {
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return nil, false, nil
	}
	page, _, err := t.findLeafPage(key, opFind, txn, false)
	if err != nil {
		return nil, false, err
	}
	value, found := t.leaf(page).lookup(key)
	page.RUnlatch()
	t.pager.PutPage(page)
	if !found {
		return nil, false, nil
	}
	return []int64{value}, true, nil
}

// Insert adds (key, value) to the tree. Returns false if the key is already
// present; keys are unique.
func (t *BPlusTree) Insert(key int64, value int64, txn *concurrency.Transaction) (bool, error) {
	if txn == nil {
		return false, ErrNilTransaction
	}
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		err := t.startNewTree(key, value)
		t.rootLatch.Unlock()
		return err == nil, err
	}
	return t.insertIntoLeaf(key, value, txn)
}

// startNewTree allocates a leaf root holding the first entry.
// Must be called with the root latch held.
func (t *BPlusTree) startNewTree(key int64, value int64) error {
	page, err := t.pager.NewPage()
	if err != nil {
		return fmt.Errorf("%w: allocating root: %v", ErrOutOfMemory, err)
	}
	root := t.initLeaf(page, INVALID_PN)
	root.insert(key, value)
	t.rootPN = page.GetPageNum()
	err = t.updateRootRecord()
	t.pager.PutPage(page)
	logger.Debugf("btree %s: started new tree at page %d", t.name, t.rootPN)
	return err
}

// insertIntoLeaf descends with crabbing, inserts into the covering leaf, and
// splits upward while any node overflows. Called with the root latch held.
func (t *BPlusTree) insertIntoLeaf(key int64, value int64, txn *concurrency.Transaction) (bool, error) {
	page, rootHeld, err := t.findLeafPage(key, opInsert, txn, false)
	if err != nil {
		return false, err
	}
	leaf := t.leaf(page)
	if _, exists := leaf.lookup(key); exists {
		t.releaseAll(txn, rootHeld)
		page.WUnlatch()
		t.pager.PutPage(page)
		return false, nil
	}
	newSize := leaf.insert(key, value)
	if newSize < t.leafMaxSize {
		t.releaseAll(txn, rootHeld)
		page.WUnlatch()
		t.pager.PutPage(page)
		return true, nil
	}

	// The leaf overflowed: split it and push the new sibling's first key up.
	newPage, err := t.pager.NewPage()
	if err != nil {
		t.releaseAll(txn, rootHeld)
		page.WUnlatch()
		t.pager.PutPage(page)
		return false, fmt.Errorf("%w: splitting leaf %d: %v", ErrOutOfMemory, page.GetPageNum(), err)
	}
	newLeaf := t.initLeaf(newPage, leaf.parentPN())
	leaf.moveHalfTo(newLeaf)
	newLeaf.setNextPN(leaf.nextPN())
	leaf.setNextPN(newLeaf.pageNum())
	logger.Debugf("btree %s: split leaf %d into %d", t.name, leaf.pageNum(), newLeaf.pageNum())

	err = t.insertIntoParent(leaf.node, newLeaf.keyAt(0), newLeaf.node, txn, rootHeld)
	page.WUnlatch()
	t.pager.PutPage(page)
	t.pager.PutPage(newPage)
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertIntoParent walks the retained ancestor chain, inserting the new
// separator after old's slot and splitting each parent that overflows. Every
// latch retained by the descent is released before it returns; the caller
// keeps responsibility for old and newNode's pages only.
func (t *BPlusTree) insertIntoParent(old node, upKey int64, newNode node, txn *concurrency.Transaction, rootHeld bool) error {
	// Parents popped off the chain while cascading; unlatched once the
	// cascade settles. Fresh split pages are pinned but never latched:
	// nothing can reach them until they are linked beneath a latched parent.
	var ownedLatched []*pager.Page
	var ownedPinned []*pager.Page
	release := func() {
		for i := len(ownedLatched) - 1; i >= 0; i-- {
			ownedLatched[i].WUnlatch()
			t.pager.PutPage(ownedLatched[i])
		}
		for _, page := range ownedPinned {
			t.pager.PutPage(page)
		}
		t.releaseAll(txn, rootHeld)
	}

	for {
		if old.isRoot() {
			rootPage, err := t.pager.NewPage()
			if err != nil {
				release()
				return fmt.Errorf("%w: allocating new root: %v", ErrOutOfMemory, err)
			}
			newRoot := t.initInternal(rootPage, INVALID_PN)
			newRoot.populateNewRoot(old.pageNum(), upKey, newNode.pageNum())
			old.setParentPN(rootPage.GetPageNum())
			newNode.setParentPN(rootPage.GetPageNum())
			t.rootPN = rootPage.GetPageNum()
			err = t.updateRootRecord()
			t.pager.PutPage(rootPage)
			logger.Debugf("btree %s: new root at page %d", t.name, t.rootPN)
			release()
			return err
		}

		parentPage := txn.PopPageSet()
		if parentPage == nil {
			release()
			return errors.New("ancestor chain exhausted during split")
		}
		parent := t.internal(parentPage)
		parent.insertNodeAfter(old.pageNum(), upKey, newNode.pageNum())
		if parent.size() <= t.internalMaxSize {
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			release()
			return nil
		}

		// The parent overflowed in turn; split it and keep cascading.
		newParentPage, err := t.pager.NewPage()
		if err != nil {
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			release()
			return fmt.Errorf("%w: splitting internal %d: %v", ErrOutOfMemory, parent.pageNum(), err)
		}
		newParent := t.initInternal(newParentPage, parent.parentPN())
		if err := parent.moveHalfTo(newParent); err != nil {
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			t.pager.PutPage(newParentPage)
			release()
			return err
		}
		logger.Debugf("btree %s: split internal %d into %d", t.name, parent.pageNum(), newParent.pageNum())
		ownedLatched = append(ownedLatched, parentPage)
		ownedPinned = append(ownedPinned, newParentPage)
		old, upKey, newNode = parent.node, newParent.keyAt(0), newParent.node
	}
}

// Remove deletes the entry with the given key. Removing an absent key is a
// no-op.
func (t *BPlusTree) Remove(key int64, txn *concurrency.Transaction) error {
	if txn == nil {
		return ErrNilTransaction
	}
	t.rootLatch.Lock()
	if t.rootPN == INVALID_PN {
		t.rootLatch.Unlock()
		return nil
	}
	page, rootHeld, err := t.findLeafPage(key, opDelete, txn, false)
	if err != nil {
		return err
	}
	leaf := t.leaf(page)
	oldSize := leaf.size()
	if leaf.removeRecord(key) == oldSize {
		t.releaseAll(txn, rootHeld)
		page.WUnlatch()
		t.pager.PutPage(page)
		return nil
	}

	leafDeleted, err := t.coalesceOrRedistribute(leaf.node, txn, rootHeld)
	page.WUnlatch()
	if leafDeleted {
		txn.AddToDeletedPageSet(page.GetPageNum())
	}
	t.pager.PutPage(page)

	// Reclaim emptied pages only now that every latch has been dropped. A
	// page still pinned by a cursor is left unreclaimed rather than failing
	// the removal.
	for pn := range txn.DeletedPageSet() {
		if delErr := t.pager.DeletePage(pn); delErr != nil {
			if errors.Is(delErr, pager.ErrPagePinned) {
				logger.Debugf("btree %s: page %d still referenced, not reclaiming", t.name, pn)
				continue
			}
			if err == nil {
				err = delErr
			}
		}
	}
	txn.ClearDeletedPageSet()
	return err
}

// coalesceOrRedistribute restores the size bound on start after a removal,
// borrowing from or merging with a sibling and cascading up the retained
// ancestor chain as separators disappear. Returns whether start's page is to
// be deleted; it is not queued here, the caller queues it. Every latch retained by the descent, including the
// root latch when held, is released before it returns; start's page stays
// latched and pinned for the caller.
func (t *BPlusTree) coalesceOrRedistribute(start node, txn *concurrency.Transaction, rootHeld bool) (bool, error) {
	cur := start
	curOwned := false
	startDeleted := false

	// releaseCur drops cur's latch and pin unless it belongs to the caller.
	releaseCur := func() {
		if curOwned {
			cur.page.WUnlatch()
			t.pager.PutPage(cur.page)
		}
	}
	finish := func() {
		t.releaseAncestors(txn)
		releaseCur()
		if rootHeld {
			t.rootLatch.Unlock()
		}
	}

	for {
		if cur.isRoot() {
			deleted, err := t.adjustRoot(cur)
			if deleted {
				if cur.pageNum() == start.pageNum() {
					startDeleted = true
				} else {
					txn.AddToDeletedPageSet(cur.pageNum())
				}
			}
			finish()
			return startDeleted, err
		}
		if cur.size() >= cur.minSize() {
			finish()
			return startDeleted, nil
		}

		parentPage := txn.PopPageSet()
		if parentPage == nil {
			finish()
			return startDeleted, errors.New("ancestor chain exhausted during merge")
		}
		parent := t.internal(parentPage)
		index := parent.valueIndex(cur.pageNum())
		siblingIndex := index - 1
		if index == 0 {
			siblingIndex = 1
		}
		siblingPage, err := t.pager.FetchPage(parent.childAt(siblingIndex))
		if err != nil {
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			finish()
			return startDeleted, fmt.Errorf("%w: fetching sibling: %v", ErrOutOfMemory, err)
		}
		siblingPage.WLatch()
		sibling := asNode(siblingPage)

		if sibling.size()+cur.size() > cur.maxItems() {
			// Enough entries between the two to borrow one.
			err := t.redistribute(sibling, cur, parent, index)
			siblingPage.WUnlatch()
			t.pager.PutPage(siblingPage)
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			finish()
			return startDeleted, err
		}

		// Merge the right node into the left and drop the separator.
		left, right := sibling, cur
		keyIndex := index
		if index == 0 {
			left, right = cur, sibling
			keyIndex = 1
		}
		err = t.coalesce(left, right, parent, keyIndex)
		if right.pageNum() == start.pageNum() {
			startDeleted = true
		} else {
			txn.AddToDeletedPageSet(right.pageNum())
		}
		logger.Debugf("btree %s: merged page %d into %d", t.name, right.pageNum(), left.pageNum())
		siblingPage.WUnlatch()
		t.pager.PutPage(siblingPage)
		releaseCur()
		if err != nil {
			parentPage.WUnlatch()
			t.pager.PutPage(parentPage)
			t.releaseAncestors(txn)
			if rootHeld {
				t.rootLatch.Unlock()
			}
			return startDeleted, err
		}
		cur = parent.node
		curOwned = true
	}
}

// coalesce merges right into left and removes the separator at keyIndex from
// the parent. For leaves the sibling chain is patched around the emptied
// right node.
func (t *BPlusTree) coalesce(left node, right node, parent internalNode, keyIndex int64) error {
	if right.isLeaf() {
		leftLeaf, rightLeaf := t.asLeafNode(left), t.asLeafNode(right)
		next := rightLeaf.nextPN()
		rightLeaf.moveAllTo(leftLeaf)
		leftLeaf.setNextPN(next)
	} else {
		leftInt, rightInt := t.asInternalNode(left), t.asInternalNode(right)
		if err := rightInt.moveAllTo(leftInt, parent.keyAt(keyIndex)); err != nil {
			return err
		}
	}
	parent.remove(keyIndex)
	return nil
}

// redistribute moves one entry from sibling into n and rewrites the
// separator between them. index is n's slot in the parent: 0 means the
// sibling is the right neighbor, otherwise it is the left neighbor.
func (t *BPlusTree) redistribute(sibling node, n node, parent internalNode, index int64) error {
	if n.isLeaf() {
		siblingLeaf, nodeLeaf := t.asLeafNode(sibling), t.asLeafNode(n)
		if index == 0 {
			siblingLeaf.moveFirstToEndOf(nodeLeaf)
			parent.setKeyAt(1, siblingLeaf.keyAt(0))
		} else {
			siblingLeaf.moveLastToFrontOf(nodeLeaf)
			parent.setKeyAt(index, nodeLeaf.keyAt(0))
		}
		return nil
	}
	siblingInt, nodeInt := t.asInternalNode(sibling), t.asInternalNode(n)
	if index == 0 {
		if err := siblingInt.moveFirstToEndOf(nodeInt, parent.keyAt(1)); err != nil {
			return err
		}
		parent.setKeyAt(1, siblingInt.keyAt(0))
	} else {
		if err := siblingInt.moveLastToFrontOf(nodeInt, parent.keyAt(index)); err != nil {
			return err
		}
		parent.setKeyAt(index, nodeInt.keyAt(0))
	}
	return nil
}

// adjustRoot handles the two root collapse cases after a removal: an
// internal root left with a single child, and a leaf root left empty.
// Returns whether the old root page should be deleted. Must be called with
// the root latch held.
func (t *BPlusTree) adjustRoot(oldRoot node) (bool, error) {
	if !oldRoot.isLeaf() && oldRoot.size() == 1 {
		onlyChild := t.asInternalNode(oldRoot).removeAndReturnOnlyChild()
		t.rootPN = onlyChild
		childPage, err := t.pager.FetchPage(onlyChild)
		if err != nil {
			return true, fmt.Errorf("%w: fetching promoted root: %v", ErrOutOfMemory, err)
		}
		asNode(childPage).setParentPN(INVALID_PN)
		t.pager.PutPage(childPage)
		logger.Debugf("btree %s: root collapsed to page %d", t.name, onlyChild)
		return true, t.updateRootRecord()
	}
	if oldRoot.isLeaf() && oldRoot.size() == 0 {
		t.rootPN = INVALID_PN
		logger.Debugf("btree %s: tree emptied", t.name)
		return true, t.updateRootRecord()
	}
	return false, nil
}

// asLeafNode rebinds a generic node view as a leaf view.
func (t *BPlusTree) asLeafNode(n node) leafNode {
	return leafNode{node: n, compare: t.compare}
}

// asInternalNode rebinds a generic node view as an internal view.
func (t *BPlusTree) asInternalNode(n node) internalNode {
	return internalNode{node: n, compare: t.compare, pager: t.pager}
}
