package btree

import (
	"encoding/binary"

	"stegodb/pkg/entry"
	"stegodb/pkg/pager"
)

// INVALID_PN denotes "no page": an absent root, sibling, or parent.
const INVALID_PN int64 = -1

// HEADER_PN is the pagenum of the header page. It is always the first page
// allocated in an index file, so opening an index never has to search for it.
const HEADER_PN int64 = 0

// Node kind byte values.
const (
	INTERNAL_NODE byte = 0
	LEAF_NODE     byte = 1
)

// Common node header layout. Every numeric field occupies a fixed varint slot.
const (
	NODETYPE_OFFSET  int64 = 0
	NODETYPE_SIZE    int64 = 1
	SIZE_OFFSET      int64 = NODETYPE_OFFSET + NODETYPE_SIZE
	SIZE_SIZE        int64 = binary.MaxVarintLen64
	MAX_SIZE_OFFSET  int64 = SIZE_OFFSET + SIZE_SIZE
	MAX_SIZE_SIZE    int64 = binary.MaxVarintLen64
	PARENT_PN_OFFSET int64 = MAX_SIZE_OFFSET + MAX_SIZE_SIZE
	PARENT_PN_SIZE   int64 = binary.MaxVarintLen64
	SELF_PN_OFFSET   int64 = PARENT_PN_OFFSET + PARENT_PN_SIZE
	SELF_PN_SIZE     int64 = binary.MaxVarintLen64
	NODE_HEADER_SIZE int64 = SELF_PN_OFFSET + SELF_PN_SIZE
)

// Leaf node layout: the sibling pointer follows the common header, then the
// sorted entry array.
const (
	NEXT_PN_OFFSET       int64 = NODE_HEADER_SIZE
	NEXT_PN_SIZE         int64 = binary.MaxVarintLen64
	LEAF_HEADER_SIZE     int64 = NODE_HEADER_SIZE + NEXT_PN_SIZE
	LEAF_ENTRIES_OFFSET  int64 = LEAF_HEADER_SIZE
	ENTRIES_PER_LEAF_MAX int64 = (pager.UsableSize - LEAF_HEADER_SIZE) / entry.Size
)

// Internal node layout: an array of (key, child pagenum) pairs follows the
// common header. The pair at slot 0 carries a sentinel key.
const (
	INTERNAL_PAIRS_OFFSET  int64 = NODE_HEADER_SIZE
	PAIRS_PER_INTERNAL_MAX int64 = (pager.UsableSize - NODE_HEADER_SIZE) / entry.Size
)

// Default fanouts derived from the page capacity. A leaf transiently holds
// leafMaxSize entries before splitting, and an internal node transiently
// holds internalMaxSize+1, so both leave room for the overflow element.
const (
	DEFAULT_LEAF_MAX_SIZE     int64 = ENTRIES_PER_LEAF_MAX
	DEFAULT_INTERNAL_MAX_SIZE int64 = PAIRS_PER_INTERNAL_MAX - 1
)
