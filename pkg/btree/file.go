package btree

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"stegodb/pkg/concurrency"
)

// InsertFromFile reads 64-bit keys from the file at path, one per line, and
// inserts each with its key as the record id. Blank lines are skipped.
func (t *BPlusTree) InsertFromFile(path string, txn *concurrency.Transaction) error {
	return t.applyFromFile(path, func(key int64) error {
		_, err := t.Insert(key, key, txn)
		return err
	})
}

// RemoveFromFile reads 64-bit keys from the file at path, one per line, and
// removes each from the tree.
func (t *BPlusTree) RemoveFromFile(path string, txn *concurrency.Transaction) error {
	return t.applyFromFile(path, func(key int64) error {
		return t.Remove(key, txn)
	})
}

func (t *BPlusTree) applyFromFile(path string, apply func(key int64) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return err
		}
		if err := apply(key); err != nil {
			return err
		}
	}
	return scanner.Err()
}
