package pager

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// setupPager creates a pager backed by a temp file with the given pool size.
func setupPager(t *testing.T, poolSize int) *Pager {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "*.db")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())
	pgr, err := New(tmpfile.Name(), poolSize)
	require.NoError(t, err)
	return pgr
}

func TestNewPageAssignsSequentialPagenums(t *testing.T) {
	pgr := setupPager(t, 8)
	for i := int64(0); i < 4; i++ {
		page, err := pgr.NewPage()
		require.NoError(t, err)
		require.Equal(t, i, page.GetPageNum())
		require.NoError(t, pgr.PutPage(page))
	}
	require.EqualValues(t, 4, pgr.GetNumPages())
	require.NoError(t, pgr.Close())
}

func TestFetchPageRoundTrip(t *testing.T) {
	pgr := setupPager(t, 8)
	page, err := pgr.NewPage()
	require.NoError(t, err)
	pagenum := page.GetPageNum()
	page.Update([]byte("hello"), 0, 5)
	require.NoError(t, pgr.PutPage(page))

	fetched, err := pgr.FetchPage(pagenum)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), fetched.GetData()[:5])
	require.NoError(t, pgr.PutPage(fetched))
	require.NoError(t, pgr.Close())
}

func TestFetchInvalidPagenum(t *testing.T) {
	pgr := setupPager(t, 8)
	_, err := pgr.FetchPage(0)
	require.Error(t, err)
	_, err = pgr.FetchPage(-1)
	require.Error(t, err)
	require.NoError(t, pgr.Close())
}

func TestDataSurvivesReopen(t *testing.T) {
	pgr := setupPager(t, 8)
	filename := pgr.GetFileName()
	page, err := pgr.NewPage()
	require.NoError(t, err)
	page.Update([]byte("persisted"), 100, 9)
	require.NoError(t, pgr.PutPage(page))
	require.NoError(t, pgr.Close())

	reopened, err := New(filename, 8)
	require.NoError(t, err)
	fetched, err := reopened.FetchPage(0)
	require.NoError(t, err)
	require.Equal(t, []byte("persisted"), fetched.GetData()[100:109])
	require.NoError(t, reopened.PutPage(fetched))
	require.NoError(t, reopened.Close())
}

func TestChecksumDetectsCorruption(t *testing.T) {
	pgr := setupPager(t, 8)
	filename := pgr.GetFileName()
	page, err := pgr.NewPage()
	require.NoError(t, err)
	page.Update([]byte("checksummed"), 0, 11)
	require.NoError(t, pgr.PutPage(page))
	require.NoError(t, pgr.Close())

	// Flip a payload byte behind the pager's back.
	file, err := os.OpenFile(filename, os.O_RDWR, 0666)
	require.NoError(t, err)
	_, err = file.WriteAt([]byte{0xFF}, 3)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	reopened, err := New(filename, 8)
	require.NoError(t, err)
	_, err = reopened.FetchPage(0)
	require.Error(t, err)
	require.NoError(t, reopened.Close())
}

func TestRunsOutOfPages(t *testing.T) {
	pgr := setupPager(t, 2)
	a, err := pgr.NewPage()
	require.NoError(t, err)
	b, err := pgr.NewPage()
	require.NoError(t, err)

	// Both frames pinned: the pool is exhausted.
	_, err = pgr.NewPage()
	require.ErrorIs(t, err, ErrRanOutOfPages)

	// Releasing one frame makes allocation possible again.
	require.NoError(t, pgr.PutPage(a))
	c, err := pgr.NewPage()
	require.NoError(t, err)
	require.NoError(t, pgr.PutPage(b))
	require.NoError(t, pgr.PutPage(c))
	require.NoError(t, pgr.Close())
}

func TestEvictionWritesThrough(t *testing.T) {
	pgr := setupPager(t, 2)
	// Fill more pages than the pool holds so earlier ones get evicted.
	for i := int64(0); i < 6; i++ {
		page, err := pgr.NewPage()
		require.NoError(t, err)
		page.Update([]byte{byte(i + 1)}, 0, 1)
		require.NoError(t, pgr.PutPage(page))
	}
	for i := int64(0); i < 6; i++ {
		page, err := pgr.FetchPage(i)
		require.NoError(t, err)
		require.Equal(t, byte(i+1), page.GetData()[0])
		require.NoError(t, pgr.PutPage(page))
	}
	require.NoError(t, pgr.Close())
}

func TestDeletePage(t *testing.T) {
	pgr := setupPager(t, 8)
	page, err := pgr.NewPage()
	require.NoError(t, err)
	pagenum := page.GetPageNum()

	// Deleting a pinned page must fail.
	require.ErrorIs(t, pgr.DeletePage(pagenum), ErrPagePinned)

	require.NoError(t, pgr.PutPage(page))
	require.NoError(t, pgr.DeletePage(pagenum))

	// The deleted page can no longer be fetched...
	_, err = pgr.FetchPage(pagenum)
	require.Error(t, err)

	// ...and its pagenum is recycled by the next allocation.
	reused, err := pgr.NewPage()
	require.NoError(t, err)
	require.Equal(t, pagenum, reused.GetPageNum())
	require.NoError(t, pgr.PutPage(reused))
	require.NoError(t, pgr.Close())
}

func TestCloseFailsWhilePinned(t *testing.T) {
	pgr := setupPager(t, 8)
	page, err := pgr.NewPage()
	require.NoError(t, err)
	require.Error(t, pgr.Close())
	require.NoError(t, pgr.PutPage(page))
	require.NoError(t, pgr.Close())
}
