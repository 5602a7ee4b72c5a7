package database_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"stegodb/pkg/database"
)

func setupDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetIndex(t *testing.T) {
	db := setupDatabase(t)
	created, err := db.CreateIndex("users")
	require.NoError(t, err)
	require.Equal(t, "users", created.GetName())

	// Creating the same index twice fails.
	_, err = db.CreateIndex("users")
	require.Error(t, err)

	got, err := db.GetIndex("users")
	require.NoError(t, err)
	require.Same(t, created, got)

	_, err = db.GetIndex("missing")
	require.Error(t, err)
}

func TestIndexNameValidation(t *testing.T) {
	db := setupDatabase(t)
	_, err := db.CreateIndex("no spaces")
	require.Error(t, err)
	_, err = db.CreateIndex("../escape")
	require.Error(t, err)
}

func TestIndexCrud(t *testing.T) {
	db := setupDatabase(t)
	index, err := db.CreateIndex("t")
	require.NoError(t, err)

	for k := int64(1); k <= 50; k++ {
		require.NoError(t, index.Insert(k, k*2))
	}
	require.ErrorContains(t, index.Insert(7, 7), "duplicate")

	e, err := index.Find(7)
	require.NoError(t, err)
	require.EqualValues(t, 14, e.Value)

	require.NoError(t, index.Delete(7))
	_, err = index.Find(7)
	require.ErrorIs(t, err, database.ErrKeyNotFound)
	// Deleting again is a no-op.
	require.NoError(t, index.Delete(7))

	entries, err := index.Select()
	require.NoError(t, err)
	require.Len(t, entries, 49)
	require.NoError(t, index.Verify())
}

func TestSelectRange(t *testing.T) {
	db := setupDatabase(t)
	index, err := db.CreateIndex("t")
	require.NoError(t, err)
	for k := int64(0); k < 30; k++ {
		require.NoError(t, index.Insert(k, k))
	}

	entries, err := index.SelectRange(10, 20)
	require.NoError(t, err)
	require.Len(t, entries, 10)
	require.EqualValues(t, 10, entries[0].Key)
	require.EqualValues(t, 19, entries[len(entries)-1].Key)

	_, err = index.SelectRange(20, 10)
	require.Error(t, err)
}

func TestReplHandlers(t *testing.T) {
	db := setupDatabase(t)
	out, err := database.HandleCreateIndex(db, "create index t")
	require.NoError(t, err)
	require.Contains(t, out, "created")

	require.NoError(t, database.HandleInsert(db, "insert 1 10 into t"))
	require.NoError(t, database.HandleInsert(db, "insert 2 20 into t"))

	out, err = database.HandleFind(db, "find 2 from t")
	require.NoError(t, err)
	require.Contains(t, out, "(2, 20)")

	out, err = database.HandleSelect(db, "select from t")
	require.NoError(t, err)
	require.Equal(t, "(1, 10), (2, 20), ", out)

	require.NoError(t, database.HandleDelete(db, "delete 1 from t"))
	_, err = database.HandleFind(db, "find 1 from t")
	require.Error(t, err)

	out, err = database.HandleVerify(db, "verify t")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "ok"))

	// Malformed commands surface usage errors.
	_, err = database.HandleFind(db, "find t")
	require.Error(t, err)
	require.Error(t, database.HandleInsert(db, "insert x y into t"))
}
