package database

import (
	"errors"
	"fmt"
	"io"

	"stegodb/pkg/btree"
	"stegodb/pkg/concurrency"
	"stegodb/pkg/entry"
	"stegodb/pkg/pager"
)

// ErrKeyNotFound is returned by Find for keys absent from an index.
var ErrKeyNotFound = errors.New("no entry with that key")

// Index is a handle on one named B+tree index. Every write operation runs
// under a fresh transaction that carries the latch bookkeeping for the op;
// reads run without one.
type Index struct {
	tree  *btree.BPlusTree
	pager *pager.Pager
}

// GetName returns the index's name.
func (index *Index) GetName() string {
	return index.tree.GetName()
}

// GetPager returns the pager backing this index.
func (index *Index) GetPager() *pager.Pager {
	return index.pager
}

// GetTree returns the underlying B+tree.
func (index *Index) GetTree() *btree.BPlusTree {
	return index.tree
}

// Close flushes all of the index's changes to disk.
func (index *Index) Close() error {
	return index.pager.Close()
}

// Find returns the entry associated with the given key, or ErrKeyNotFound.
func (index *Index) Find(key int64) (entry.Entry, error) {
	values, found, err := index.tree.GetValue(key, nil)
	if err != nil {
		return entry.Entry{}, err
	}
	if !found {
		return entry.Entry{}, fmt.Errorf("%w: %d", ErrKeyNotFound, key)
	}
	return entry.New(key, values[0]), nil
}

// Insert inserts a key-value entry. Errors on duplicate keys.
func (index *Index) Insert(key int64, value int64) error {
	inserted, err := index.tree.Insert(key, value, concurrency.NewTransaction())
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("cannot insert duplicate key %d", key)
	}
	return nil
}

// Delete removes the entry with the given key. Deleting an absent key is a
// no-op.
func (index *Index) Delete(key int64) error {
	return index.tree.Remove(key, concurrency.NewTransaction())
}

// Select returns all entries in the index in ascending key order.
func (index *Index) Select() ([]entry.Entry, error) {
	entries := make([]entry.Entry, 0)
	iter, err := index.tree.Begin()
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	for !iter.IsEnd() {
		entries = append(entries, iter.Entry())
		if err := iter.Next(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// SelectRange returns the entries with keys in [startKey, endKey).
func (index *Index) SelectRange(startKey int64, endKey int64) ([]entry.Entry, error) {
	if startKey >= endKey {
		return nil, errors.New("startKey is not smaller than endKey")
	}
	entries := make([]entry.Entry, 0)
	iter, err := index.tree.BeginAt(startKey)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	for !iter.IsEnd() {
		e := iter.Entry()
		if e.Key >= endKey {
			break
		}
		entries = append(entries, e)
		if err := iter.Next(); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Verify checks the index's structural invariants.
func (index *Index) Verify() error {
	return index.tree.Verify()
}

// Print pretty-prints the index's nodes to w.
func (index *Index) Print(w io.Writer) {
	index.tree.Print(w)
}

// PrintPN pretty-prints the node at the given pagenum to w.
func (index *Index) PrintPN(pagenum int64, w io.Writer) {
	index.tree.PrintPN(pagenum, w)
}
