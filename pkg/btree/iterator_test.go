package btree_test

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorEmptyTree(t *testing.T) {
	tree := setupTree(t, 4, 3)
	iter, err := tree.Begin()
	require.NoError(t, err)
	require.True(t, iter.IsEnd())
	iter.Close()

	end, err := tree.End()
	require.NoError(t, err)
	require.True(t, end.IsEnd())
	require.True(t, iter.Equals(end))
	end.Close()
	require.NoError(t, tree.Close())
}

func TestIteratorYieldsSortedKeys(t *testing.T) {
	tree := setupTree(t, 4, 3)
	// Insert out of order; iteration must come back sorted.
	for _, k := range []int64{9, 3, 7, 1, 5, 8, 2, 6, 4, 10} {
		insert(t, tree, k, k*100)
	}
	iter, err := tree.Begin()
	require.NoError(t, err)
	var prev int64
	count := 0
	for !iter.IsEnd() {
		e := iter.Entry()
		if count > 0 {
			require.Greater(t, e.Key, prev)
		}
		require.Equal(t, e.Key*100, e.Value)
		prev = e.Key
		count++
		require.NoError(t, iter.Next())
	}
	iter.Close()
	require.Equal(t, 10, count)
	require.NoError(t, tree.Close())
}

func TestIteratorBeginAt(t *testing.T) {
	tree := setupTree(t, 4, 3)
	for k := int64(0); k < 20; k += 2 {
		insert(t, tree, k, k)
	}

	// Exact hit.
	iter, err := tree.BeginAt(8)
	require.NoError(t, err)
	require.EqualValues(t, 8, iter.Entry().Key)
	iter.Close()

	// Between keys: positions at the next larger key.
	iter, err = tree.BeginAt(9)
	require.NoError(t, err)
	require.EqualValues(t, 10, iter.Entry().Key)
	iter.Close()

	// Past every key: lands at the end.
	iter, err = tree.BeginAt(100)
	require.NoError(t, err)
	require.True(t, iter.IsEnd())
	iter.Close()
	require.NoError(t, tree.Close())
}

func TestIteratorEndEquality(t *testing.T) {
	tree := setupTree(t, 4, 3)
	for k := int64(1); k <= 12; k++ {
		insert(t, tree, k, k)
	}
	iter, err := tree.Begin()
	require.NoError(t, err)
	end, err := tree.End()
	require.NoError(t, err)

	steps := 0
	for !iter.Equals(end) {
		require.False(t, iter.IsEnd())
		require.NoError(t, iter.Next())
		steps++
		require.LessOrEqual(t, steps, 12)
	}
	require.True(t, iter.IsEnd())
	iter.Close()
	end.Close()
	require.NoError(t, tree.Close())
}

func TestIteratorRangeScan(t *testing.T) {
	tree := setupTree(t, 3, 3)
	for k := int64(1); k <= 30; k++ {
		insert(t, tree, k, k*7)
	}
	iter, err := tree.BeginAt(10)
	require.NoError(t, err)
	var got []int64
	for !iter.IsEnd() {
		e := iter.Entry()
		if e.Key >= 20 {
			break
		}
		got = append(got, e.Key)
		require.NoError(t, iter.Next())
	}
	iter.Close()
	require.Equal(t, ascending(10, 19), got)
	require.NoError(t, tree.Close())
}

func TestIteratorSurvivesConcurrentSafety(t *testing.T) {
	// An iterator holds only a pin between observations, so a writer can
	// modify other leaves while it is positioned.
	tree := setupTree(t, 4, 3)
	for k := int64(0); k < 40; k += 2 {
		insert(t, tree, k, k)
	}
	iter, err := tree.Begin()
	require.NoError(t, err)
	require.EqualValues(t, 0, iter.Entry().Key)

	// Insert into a region the iterator has not reached yet.
	insert(t, tree, 39, 39)

	var got []int64
	for !iter.IsEnd() {
		got = append(got, iter.Entry().Key)
		require.NoError(t, iter.Next())
	}
	iter.Close()
	require.Contains(t, got, int64(39))
	require.NoError(t, tree.Verify())
	require.NoError(t, tree.Close())
}
