package localstore

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "store.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := openTestStore(t)

	_, ok := store.Get("missing")
	require.False(t, ok)

	store.Set(KeyPosts, `[{"id":"1"}]`)
	val, ok := store.Get(KeyPosts)
	require.True(t, ok)
	require.Equal(t, `[{"id":"1"}]`, val)

	store.Delete(KeyPosts)
	_, ok = store.Get(KeyPosts)
	require.False(t, ok)
}

func TestUnchangedWritesAreSuppressed(t *testing.T) {
	store := openTestStore(t)

	var notified []string
	cancel := store.Subscribe(func(key string) { notified = append(notified, key) })
	defer cancel()

	store.Set("k", "v")
	rev := store.Revision("k")
	require.Len(t, notified, 1)

	store.Set("k", "v")
	require.Len(t, notified, 1, "identical write must not notify")
	require.Equal(t, rev, store.Revision("k"), "identical write must not advance the revision")

	store.Set("k", "v2")
	require.Len(t, notified, 2)
	require.Greater(t, store.Revision("k"), rev)
}

func TestDeleteAbsentKeyDoesNotNotify(t *testing.T) {
	store := openTestStore(t)

	count := 0
	cancel := store.Subscribe(func(string) { count++ })
	defer cancel()

	store.Delete("never-set")
	require.Zero(t, count)
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	store.Set(ChatsKey("u1"), "[]")
	require.NoError(t, store.Close())

	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	val, ok := reopened.Get(ChatsKey("u1"))
	require.True(t, ok)
	require.Equal(t, "[]", val)
}

func TestKeysAreNamespacedPerActor(t *testing.T) {
	store := openTestStore(t)

	store.Set(ChatsKey("alice"), "[1]")
	store.Set(ChatsKey("bob"), "[2]")

	a, _ := store.Get(ChatsKey("alice"))
	b, _ := store.Get(ChatsKey("bob"))
	require.Equal(t, "[1]", a)
	require.Equal(t, "[2]", b)
	require.NotEqual(t, MessagesKey("alice"), ChatsKey("alice"))
}

func TestSubscribeCancel(t *testing.T) {
	store := openTestStore(t)

	count := 0
	cancel := store.Subscribe(func(string) { count++ })
	store.Set("a", "1")
	cancel()
	store.Set("a", "2")
	require.Equal(t, 1, count)
}
