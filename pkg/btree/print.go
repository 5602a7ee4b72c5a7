package btree

import (
	"fmt"
	"io"
)

// Print pretty-prints every node in the tree. Debugging aid; it holds the
// root latch only to read the root pagenum and takes no page latches.
func (t *BPlusTree) Print(w io.Writer) {
	t.rootLatch.Lock()
	rootPN := t.rootPN
	t.rootLatch.Unlock()
	if rootPN == INVALID_PN {
		io.WriteString(w, "(empty tree)\n")
		return
	}
	t.printNode(rootPN, w, "", "")
}

// PrintPN pretty-prints the node stored at the given pagenum.
func (t *BPlusTree) PrintPN(pagenum int64, w io.Writer) {
	t.printNode(pagenum, w, "", "")
}

func (t *BPlusTree) printNode(pn int64, w io.Writer, firstPrefix string, prefix string) {
	page, err := t.pager.FetchPage(pn)
	if err != nil {
		fmt.Fprintf(w, "%v<unreadable page %d: %v>\n", firstPrefix, pn, err)
		return
	}
	defer t.pager.PutPage(page)
	n := asNode(page)

	var isRoot string
	if n.isRoot() {
		isRoot = " (root)"
	}
	if n.isLeaf() {
		leaf := t.asLeafNode(n)
		fmt.Fprintf(w, "%v[%v] Leaf%v size: %v\n", firstPrefix, pn, isRoot, leaf.size())
		for i := int64(0); i < leaf.size(); i++ {
			e := leaf.entryAt(i)
			fmt.Fprintf(w, "%v |--> (%v, %v)\n", prefix, e.Key, e.Value)
		}
		if leaf.nextPN() != INVALID_PN {
			fmt.Fprintf(w, "%v |--+\n", prefix)
			fmt.Fprintf(w, "%v    | right sibling @ [%v]\n", prefix, leaf.nextPN())
			fmt.Fprintf(w, "%v    v\n", prefix)
		}
		return
	}

	inode := t.asInternalNode(n)
	fmt.Fprintf(w, "%v[%v] Internal%v size: %v\n", firstPrefix, pn, isRoot, inode.size())
	nextFirstPrefix := prefix + " |--> "
	nextPrefix := prefix + " |    "
	for i := int64(0); i < inode.size(); i++ {
		fmt.Fprintf(w, "%v\n", nextPrefix)
		t.printNode(inode.childAt(i), w, nextFirstPrefix, nextPrefix)
		if i+1 < inode.size() {
			fmt.Fprintf(w, "\n%v[KEY] %v\n", nextPrefix, inode.keyAt(i+1))
		}
	}
}
