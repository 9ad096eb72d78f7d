package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fastinghub/pulse/internal/database/testutil"
)

func newTestDatabaseStore(t *testing.T) *DatabaseStore {
	t.Helper()
	store := NewDatabaseStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	require.NotNil(t, store)
	return store
}

func TestDatabaseStoreNilHandle(t *testing.T) {
	require.Nil(t, NewDatabaseStore(nil))

	var store *DatabaseStore
	require.Error(t, store.Set(context.Background(), "k", nil, 0))
}

func TestDatabaseStoreSetGetDelete(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dbstore:get:hit", []byte("payload"), time.Minute))

	value, ok, err := store.Get(ctx, "dbstore:get:hit")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("payload"), value)

	_, ok, err = store.Get(ctx, "dbstore:get:absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Delete(ctx, "dbstore:get:hit"))
	_, ok, err = store.Get(ctx, "dbstore:get:hit")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreSetOverwrites(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dbstore:overwrite", []byte("first"), time.Minute))
	require.NoError(t, store.Set(ctx, "dbstore:overwrite", []byte("second"), time.Minute))

	value, ok, err := store.Get(ctx, "dbstore:overwrite")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("second"), value)
}

func TestDatabaseStoreExpiredEntryIsAMiss(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dbstore:expired", []byte("stale"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := store.Get(ctx, "dbstore:expired")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDatabaseStoreZeroTTLPersists(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dbstore:persistent", []byte("keep"), 0))

	_, err := store.PurgeExpired(ctx)
	require.NoError(t, err)

	value, ok, err := store.Get(ctx, "dbstore:persistent")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("keep"), value)
}

func TestDatabaseStoreIncrementWindows(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	count, remaining, err := store.IncrementWithTTL(ctx, "dbstore:counter", 200*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
	require.Greater(t, remaining, time.Duration(0))

	count, _, err = store.IncrementWithTTL(ctx, "dbstore:counter", 200*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	time.Sleep(250 * time.Millisecond)

	count, _, err = store.IncrementWithTTL(ctx, "dbstore:counter", 200*time.Millisecond)
	require.NoError(t, err)
	require.EqualValues(t, 1, count, "lapsed window restarts the count")
}

func TestDatabaseStorePurgeExpired(t *testing.T) {
	store := newTestDatabaseStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "dbstore:purge:old", []byte("a"), 5*time.Millisecond))
	require.NoError(t, store.Set(ctx, "dbstore:purge:live", []byte("b"), time.Hour))
	time.Sleep(20 * time.Millisecond)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, removed, int64(1))

	value, ok, err := store.Get(ctx, "dbstore:purge:live")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b"), value)
}
