package btree_test

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"stegodb/pkg/concurrency"
)

func TestConcurrentDisjointInserts(t *testing.T) {
	tree := setupTreeWithPool(t, 4, 4, 256)
	const workers = 8
	const perWorker = 500

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := int64(w)
		eg.Go(func() error {
			txn := concurrency.NewTransaction()
			for i := int64(0); i < perWorker; i++ {
				key := worker*perWorker + i
				if _, err := tree.Insert(key, key*2, txn); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	require.NoError(t, tree.Verify())
	keys := scan(t, tree)
	require.Equal(t, ascending(0, workers*perWorker-1), keys)
	for k := int64(0); k < workers*perWorker; k += 97 {
		checkFound(t, tree, k, k*2)
	}
	// Closing fails if any page is still pinned, so this doubles as the
	// unpin-balance check.
	require.NoError(t, tree.Close())
}

func TestConcurrentInsertsAndRemoves(t *testing.T) {
	tree := setupTreeWithPool(t, 4, 4, 256)
	const workers = 8
	const perWorker = 400

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := int64(w)
		eg.Go(func() error {
			txn := concurrency.NewTransaction()
			base := worker * perWorker
			for i := int64(0); i < perWorker; i++ {
				if _, err := tree.Insert(base+i, base+i, txn); err != nil {
					return err
				}
			}
			// Remove the odd keys of this worker's range.
			for i := int64(1); i < perWorker; i += 2 {
				if err := tree.Remove(base+i, txn); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	require.NoError(t, tree.Verify())
	var expected []int64
	for w := int64(0); w < workers; w++ {
		for i := int64(0); i < perWorker; i += 2 {
			expected = append(expected, w*perWorker+i)
		}
	}
	sort.Slice(expected, func(i, j int) bool { return expected[i] < expected[j] })
	require.Equal(t, expected, scan(t, tree))
	require.NoError(t, tree.Close())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	tree := setupTreeWithPool(t, 4, 4, 256)
	const workers = 4
	const perWorker = 300

	// Preload half the key space so readers always have something to find.
	txn := concurrency.NewTransaction()
	for k := int64(0); k < workers*perWorker; k += 2 {
		_, err := tree.Insert(k, k, txn)
		require.NoError(t, err)
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := int64(w)
		eg.Go(func() error {
			wtxn := concurrency.NewTransaction()
			base := worker * perWorker
			for i := int64(1); i < perWorker; i += 2 {
				if _, err := tree.Insert(base+i, base+i, wtxn); err != nil {
					return err
				}
			}
			return nil
		})
		eg.Go(func() error {
			base := worker * perWorker
			for i := int64(0); i < perWorker; i += 2 {
				values, found, err := tree.GetValue(base+i, nil)
				if err != nil {
					return err
				}
				if !found || values[0] != base+i {
					return errEntryLost
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.NoError(t, tree.Verify())
	require.Equal(t, ascending(0, workers*perWorker-1), scan(t, tree))
	require.NoError(t, tree.Close())
}

var errEntryLost = errors.New("a preloaded entry went missing under concurrent writes")

func TestConcurrentRemovesDownToEmpty(t *testing.T) {
	tree := setupTreeWithPool(t, 3, 3, 256)
	const workers = 4
	const perWorker = 200

	txn := concurrency.NewTransaction()
	for k := int64(0); k < workers*perWorker; k++ {
		_, err := tree.Insert(k, k, txn)
		require.NoError(t, err)
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := int64(w)
		eg.Go(func() error {
			wtxn := concurrency.NewTransaction()
			base := worker * perWorker
			for i := int64(0); i < perWorker; i++ {
				if err := tree.Remove(base+i, wtxn); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.True(t, tree.IsEmpty())
	require.NoError(t, tree.Close())
}
