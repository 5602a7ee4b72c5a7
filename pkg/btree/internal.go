package btree

import (
	"sort"

	"stegodb/pkg/entry"
	"stegodb/pkg/pager"
)

// internalNode is a typed view over an internal page: a sorted array of
// (separator key, child pagenum) pairs. The pair at slot 0 carries a
// sentinel key; every key in child i-1's subtree is < keyAt(i), and every
// key in child i's subtree is >= keyAt(i).
type internalNode struct {
	node
	compare KeyComparator
	pager   *pager.Pager
}

func (t *BPlusTree) internal(page *pager.Page) internalNode {
	return internalNode{node: asNode(page), compare: t.compare, pager: t.pager}
}

// initInternal formats page as an empty internal node.
func (t *BPlusTree) initInternal(page *pager.Page, parentPN int64) internalNode {
	n := initNode(page, INTERNAL_NODE, t.internalMaxSize, parentPN)
	return internalNode{node: n, compare: t.compare, pager: t.pager}
}

func pairPos(index int64) int64 {
	return INTERNAL_PAIRS_OFFSET + index*entry.Size
}

func (n internalNode) pairAt(index int64) entry.Entry {
	pos := pairPos(index)
	return entry.Unmarshal(n.page.GetData()[pos : pos+entry.Size])
}

func (n internalNode) setPairAt(index int64, pair entry.Entry) {
	n.page.Update(pair.Marshal(), pairPos(index), entry.Size)
}

func (n internalNode) keyAt(index int64) int64 {
	return n.pairAt(index).Key
}

func (n internalNode) setKeyAt(index int64, key int64) {
	pair := n.pairAt(index)
	pair.Key = key
	n.setPairAt(index, pair)
}

func (n internalNode) childAt(index int64) int64 {
	return n.pairAt(index).Value
}

func (n internalNode) setChildAt(index int64, pn int64) {
	pair := n.pairAt(index)
	pair.Value = pn
	n.setPairAt(index, pair)
}

// valueIndex returns the slot whose child pagenum equals pn, or -1.
func (n internalNode) valueIndex(pn int64) int64 {
	for i := int64(0); i < n.size(); i++ {
		if n.childAt(i) == pn {
			return i
		}
	}
	return -1
}

// lookup returns the pagenum of the child whose subtree contains key.
func (n internalNode) lookup(key int64) int64 {
	// First separator strictly greater than key; the child to its left
	// covers the key. Slot 0's sentinel key is never consulted.
	size := n.size()
	idx := sort.Search(int(size-1), func(i int) bool {
		return n.compare(n.keyAt(int64(i)+1), key) > 0
	})
	return n.childAt(int64(idx))
}

// insertNodeAfter inserts (key, newChildPN) immediately after the slot whose
// child is oldChildPN, returning the new size.
func (n internalNode) insertNodeAfter(oldChildPN int64, key int64, newChildPN int64) int64 {
	size := n.size()
	pos := n.valueIndex(oldChildPN) + 1
	for i := size - 1; i >= pos; i-- {
		n.setPairAt(i+1, n.pairAt(i))
	}
	n.setPairAt(pos, entry.New(key, newChildPN))
	n.setSize(size + 1)
	return size + 1
}

// remove deletes the pair at the given slot.
func (n internalNode) remove(index int64) {
	size := n.size()
	for i := index; i < size-1; i++ {
		n.setPairAt(i, n.pairAt(i+1))
	}
	n.setSize(size - 1)
}

// removeAndReturnOnlyChild empties a size-1 node and returns its only child.
// Used when collapsing the root.
func (n internalNode) removeAndReturnOnlyChild() int64 {
	child := n.childAt(0)
	n.setSize(0)
	return child
}

// populateNewRoot initializes a brand-new root with exactly two children.
func (n internalNode) populateNewRoot(leftPN int64, key int64, rightPN int64) {
	n.setPairAt(0, entry.New(0, leftPN))
	n.setPairAt(1, entry.New(key, rightPN))
	n.setSize(2)
}

// reparent rewrites the parent pointer of the child stored at pn.
// The caller must hold a write latch on an ancestor that guards the child.
func (n internalNode) reparent(pn int64) error {
	childPage, err := n.pager.FetchPage(pn)
	if err != nil {
		return err
	}
	asNode(childPage).setParentPN(n.pageNum())
	return n.pager.PutPage(childPage)
}

// moveHalfTo moves the upper half of this node's pairs to the empty node
// dest and adopts the moved children. The first moved pair's key is kept in
// dest's slot 0 so the caller can push it up as the new separator.
func (n internalNode) moveHalfTo(dest internalNode) error {
	size := n.size()
	splitFrom := size / 2
	var moved int64
	for i := splitFrom; i < size; i++ {
		pair := n.pairAt(i)
		dest.setPairAt(moved, pair)
		moved++
		if err := dest.reparent(pair.Value); err != nil {
			return err
		}
	}
	dest.setSize(moved)
	n.setSize(splitFrom)
	return nil
}

// moveAllTo appends every pair of this node to dest, rewriting the first
// pair's sentinel key to middleKey (the separator pulled from the parent),
// and adopts the moved children.
func (n internalNode) moveAllTo(dest internalNode, middleKey int64) error {
	destSize := dest.size()
	size := n.size()
	for i := int64(0); i < size; i++ {
		pair := n.pairAt(i)
		if i == 0 {
			pair.Key = middleKey
		}
		dest.setPairAt(destSize+i, pair)
		if err := dest.reparent(pair.Value); err != nil {
			return err
		}
	}
	dest.setSize(destSize + size)
	n.setSize(0)
	return nil
}

// moveFirstToEndOf shifts this node's first child to the end of dest under
// middleKey (the separator pulled from the parent). After the shift, keyAt(0)
// holds the separator to push back up.
func (n internalNode) moveFirstToEndOf(dest internalNode, middleKey int64) error {
	first := n.pairAt(0)
	n.remove(0)
	dest.setPairAt(dest.size(), entry.New(middleKey, first.Value))
	dest.setSize(dest.size() + 1)
	return dest.reparent(first.Value)
}

// moveLastToFrontOf shifts this node's last child to the front of dest.
// The moved pair lands in slot 0 carrying its key so the caller can read it
// as the new parent separator; the old front's key becomes middleKey.
func (n internalNode) moveLastToFrontOf(dest internalNode, middleKey int64) error {
	size := n.size()
	last := n.pairAt(size - 1)
	n.setSize(size - 1)
	destSize := dest.size()
	for i := destSize - 1; i >= 0; i-- {
		dest.setPairAt(i+1, dest.pairAt(i))
	}
	dest.setKeyAt(1, middleKey)
	dest.setPairAt(0, last)
	dest.setSize(destSize + 1)
	return dest.reparent(last.Value)
}
