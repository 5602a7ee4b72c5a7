package btree

import (
	"encoding/binary"

	"stegodb/pkg/pager"
)

// KeyComparator is a total order over keys: negative if a < b, zero if equal,
// positive if a > b. It must be deterministic.
type KeyComparator func(a, b int64) int

// CompareIntKeys is the natural order on int64 keys.
func CompareIntKeys(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// node is a typed view over the common header that every tree page starts
// with: kind byte, size, max size, parent pagenum, self pagenum.
//
// Concurrency note: the underlying page must be latched appropriately before
// reading or writing through a view.
type node struct {
	page *pager.Page
}

func asNode(page *pager.Page) node {
	return node{page: page}
}

// initNode resets the page's payload and stamps the header fields.
func initNode(page *pager.Page, kind byte, maxSize int64, parentPN int64) node {
	page.Update(make([]byte, pager.UsableSize), 0, pager.UsableSize)
	if kind == LEAF_NODE {
		page.Update([]byte{1}, NODETYPE_OFFSET, NODETYPE_SIZE)
	}
	n := node{page: page}
	n.setMaxSize(maxSize)
	n.setParentPN(parentPN)
	n.putVarint(SELF_PN_OFFSET, page.GetPageNum())
	return n
}

func (n node) getVarint(offset int64) int64 {
	v, _ := binary.Varint(n.page.GetData()[offset : offset+binary.MaxVarintLen64])
	return v
}

func (n node) putVarint(offset int64, value int64) {
	data := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(data, value)
	n.page.Update(data, offset, binary.MaxVarintLen64)
}

func (n node) kind() byte {
	return n.page.GetData()[NODETYPE_OFFSET]
}

func (n node) isLeaf() bool {
	return n.kind() == LEAF_NODE
}

func (n node) size() int64 {
	return n.getVarint(SIZE_OFFSET)
}

func (n node) setSize(size int64) {
	n.putVarint(SIZE_OFFSET, size)
}

func (n node) maxSize() int64 {
	return n.getVarint(MAX_SIZE_OFFSET)
}

func (n node) setMaxSize(maxSize int64) {
	n.putVarint(MAX_SIZE_OFFSET, maxSize)
}

func (n node) parentPN() int64 {
	return n.getVarint(PARENT_PN_OFFSET)
}

func (n node) setParentPN(pn int64) {
	n.putVarint(PARENT_PN_OFFSET, pn)
}

func (n node) pageNum() int64 {
	return n.page.GetPageNum()
}

// isRoot reports whether this node has no parent.
func (n node) isRoot() bool {
	return n.parentPN() == INVALID_PN
}

// minSize is the post-operation minimum for non-root nodes: half the settled
// capacity, rounded up.
func (n node) minSize() int64 {
	if n.isLeaf() {
		return n.maxSize() / 2
	}
	return (n.maxSize() + 1) / 2
}

// maxItems is the settled capacity of the node: a leaf holds at most
// maxSize-1 entries once an operation completes, an internal node maxSize.
func (n node) maxItems() int64 {
	if n.isLeaf() {
		return n.maxSize() - 1
	}
	return n.maxSize()
}
