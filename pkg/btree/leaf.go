package btree

import (
	"sort"

	"stegodb/pkg/entry"
	"stegodb/pkg/pager"
)

// leafNode is a typed view over a leaf page: a sorted array of key-value
// entries plus a right-sibling pointer.
type leafNode struct {
	node
	compare KeyComparator
}

func (t *BPlusTree) leaf(page *pager.Page) leafNode {
	return leafNode{node: asNode(page), compare: t.compare}
}

// initLeaf formats page as an empty leaf.
func (t *BPlusTree) initLeaf(page *pager.Page, parentPN int64) leafNode {
	n := initNode(page, LEAF_NODE, t.leafMaxSize, parentPN)
	l := leafNode{node: n, compare: t.compare}
	l.setNextPN(INVALID_PN)
	return l
}

func (l leafNode) nextPN() int64 {
	return l.getVarint(NEXT_PN_OFFSET)
}

func (l leafNode) setNextPN(pn int64) {
	l.putVarint(NEXT_PN_OFFSET, pn)
}

func entryPos(index int64) int64 {
	return LEAF_ENTRIES_OFFSET + index*entry.Size
}

func (l leafNode) entryAt(index int64) entry.Entry {
	pos := entryPos(index)
	return entry.Unmarshal(l.page.GetData()[pos : pos+entry.Size])
}

func (l leafNode) setEntryAt(index int64, e entry.Entry) {
	l.page.Update(e.Marshal(), entryPos(index), entry.Size)
}

func (l leafNode) keyAt(index int64) int64 {
	return l.entryAt(index).Key
}

// search returns the first index whose key is >= the given key,
// or size if no key satisfies this.
func (l leafNode) search(key int64) int64 {
	size := l.size()
	idx := sort.Search(int(size), func(i int) bool {
		return l.compare(l.keyAt(int64(i)), key) >= 0
	})
	return int64(idx)
}

// lookup returns the value stored under key, if present.
func (l leafNode) lookup(key int64) (value int64, found bool) {
	idx := l.search(key)
	if idx >= l.size() || l.compare(l.keyAt(idx), key) != 0 {
		return 0, false
	}
	return l.entryAt(idx).Value, true
}

// insert places (key, value) at its sorted position and returns the new size.
// The caller must have checked that key is not already present.
func (l leafNode) insert(key int64, value int64) int64 {
	size := l.size()
	pos := l.search(key)
	for i := size - 1; i >= pos; i-- {
		l.setEntryAt(i+1, l.entryAt(i))
	}
	l.setEntryAt(pos, entry.New(key, value))
	l.setSize(size + 1)
	return size + 1
}

// removeRecord deletes the entry with the given key, if present,
// and returns the resulting size.
func (l leafNode) removeRecord(key int64) int64 {
	size := l.size()
	pos := l.search(key)
	if pos >= size || l.compare(l.keyAt(pos), key) != 0 {
		return size
	}
	for i := pos; i < size-1; i++ {
		l.setEntryAt(i, l.entryAt(i+1))
	}
	l.setSize(size - 1)
	return size - 1
}

// moveHalfTo moves the upper half of this leaf's entries to the empty leaf
// dest. When the count is odd the extra entry goes right.
func (l leafNode) moveHalfTo(dest leafNode) {
	size := l.size()
	splitFrom := size / 2
	var n int64
	for i := splitFrom; i < size; i++ {
		dest.setEntryAt(n, l.entryAt(i))
		n++
	}
	dest.setSize(n)
	l.setSize(splitFrom)
}

// moveAllTo appends every entry of this leaf to dest.
func (l leafNode) moveAllTo(dest leafNode) {
	destSize := dest.size()
	size := l.size()
	for i := int64(0); i < size; i++ {
		dest.setEntryAt(destSize+i, l.entryAt(i))
	}
	dest.setSize(destSize + size)
	l.setSize(0)
}

// moveFirstToEndOf shifts this leaf's first entry to the end of dest.
func (l leafNode) moveFirstToEndOf(dest leafNode) {
	first := l.entryAt(0)
	size := l.size()
	for i := int64(0); i < size-1; i++ {
		l.setEntryAt(i, l.entryAt(i+1))
	}
	l.setSize(size - 1)
	dest.setEntryAt(dest.size(), first)
	dest.setSize(dest.size() + 1)
}

// moveLastToFrontOf shifts this leaf's last entry to the front of dest.
func (l leafNode) moveLastToFrontOf(dest leafNode) {
	size := l.size()
	last := l.entryAt(size - 1)
	l.setSize(size - 1)
	destSize := dest.size()
	for i := destSize - 1; i >= 0; i-- {
		dest.setEntryAt(i+1, dest.entryAt(i))
	}
	dest.setEntryAt(0, last)
	dest.setSize(destSize + 1)
}
