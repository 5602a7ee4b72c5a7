// Package entry defines the key-value pairs stored in the leaves of an index.
package entry

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Size is the number of bytes an entry occupies when marshalled.
const Size int64 = binary.MaxVarintLen64 * 2

// Entry is a key-value pair stored in an index leaf. Value holds the packed
// record id of the tuple the key points at.
type Entry struct {
	Key   int64
	Value int64
}

// New constructs an Entry with the given key and value.
func New(key int64, value int64) Entry {
	return Entry{Key: key, Value: value}
}

// Marshal serializes the entry into a fresh byte slice of length Size.
func (entry Entry) Marshal() []byte {
	data := make([]byte, Size)
	binary.PutVarint(data[:binary.MaxVarintLen64], entry.Key)
	binary.PutVarint(data[binary.MaxVarintLen64:], entry.Value)
	return data
}

// Unmarshal deserializes an entry from a byte slice of length Size.
func Unmarshal(data []byte) Entry {
	key, _ := binary.Varint(data[:binary.MaxVarintLen64])
	value, _ := binary.Varint(data[binary.MaxVarintLen64:])
	return Entry{Key: key, Value: value}
}

// Print writes the entry to w as "(<key>, <value>), ".
func (entry Entry) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d), ", entry.Key, entry.Value)
}
