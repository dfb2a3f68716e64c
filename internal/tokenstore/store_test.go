package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T, now func() time.Time) Store) {
	ctx := context.Background()

	t.Run("find on an unknown key returns ErrNotFound", func(t *testing.T) {
		store := newStore(t, fixedClock)
		_, err := store.Find(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("create bootstraps an empty, short-lived record", func(t *testing.T) {
		store := newStore(t, fixedClock)

		rec, err := store.Create(ctx, "apikey")
		require.NoError(t, err)
		assert.Equal(t, "apikey", rec.APIKey)
		assert.Equal(t, "", rec.AccessToken)
		assert.True(t, rec.ExpiresAt.Equal(testNow.Add(BootstrapTTL)))

		found, err := store.Find(ctx, "apikey")
		require.NoError(t, err)
		assert.Equal(t, "", found.AccessToken)
		assert.WithinDuration(t, testNow.Add(BootstrapTTL), found.ExpiresAt, time.Second)
	})

	t.Run("create refuses a second record for the same key", func(t *testing.T) {
		store := newStore(t, fixedClock)

		_, err := store.Create(ctx, "apikey")
		require.NoError(t, err)
		_, err = store.Create(ctx, "apikey")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("save updates token and expiry in place", func(t *testing.T) {
		now := testNow
		store := newStore(t, func() time.Time { return now })

		rec, err := store.Create(ctx, "abc123")
		require.NoError(t, err)

		now = testNow.Add(5 * time.Minute)
		rec.AccessToken = "access-token456"
		rec.ExpiresAt = now.Add(25 * time.Minute)
		require.NoError(t, store.Save(ctx, rec))

		found, err := store.Find(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "access-token456", found.AccessToken)
		assert.WithinDuration(t, now.Add(25*time.Minute), found.ExpiresAt, time.Second)
		assert.WithinDuration(t, testNow, found.CreatedAt, time.Second)
		assert.WithinDuration(t, now, found.UpdatedAt, time.Second)
	})

	t.Run("save is idempotent", func(t *testing.T) {
		store := newStore(t, fixedClock)

		rec := &Record{APIKey: "abc123", AccessToken: "123abc", ExpiresAt: testNow.Add(time.Hour)}
		require.NoError(t, store.Save(ctx, rec))
		require.NoError(t, store.Save(ctx, rec))

		found, err := store.Find(ctx, "abc123")
		require.NoError(t, err)
		assert.Equal(t, "123abc", found.AccessToken)

		_, err = store.Create(ctx, "abc123")
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("records are keyed by api key", func(t *testing.T) {
		store := newStore(t, fixedClock)

		require.NoError(t, store.Save(ctx, &Record{APIKey: "one", AccessToken: "t1", ExpiresAt: testNow.Add(time.Hour)}))
		require.NoError(t, store.Save(ctx, &Record{APIKey: "two", AccessToken: "t2", ExpiresAt: testNow.Add(time.Hour)}))

		one, err := store.Find(ctx, "one")
		require.NoError(t, err)
		two, err := store.Find(ctx, "two")
		require.NoError(t, err)
		assert.Equal(t, "t1", one.AccessToken)
		assert.Equal(t, "t2", two.AccessToken)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		return NewMemoryStore(WithClock(now))
	})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(WithClock(fixedClock))

	rec, err := store.Create(ctx, "abc123")
	require.NoError(t, err)
	rec.AccessToken = "unsaved"

	found, err := store.Find(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "", found.AccessToken)
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		store, err := OpenSQLite(context.Background(), ":memory:", WithClock(now))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flyerless.db")

	store, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	assert.True(t, FileExists(path))
	// Migrate must be safe to run again against an existing schema.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestFileStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "tokens.json"), WithClock(now))
	})
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	runStoreContract(t, func(t *testing.T, now func() time.Time) Store {
		ctx := context.Background()
		store, err := DialRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0, WithClock(now))
		require.NoError(t, err)
		require.NoError(t, store.client.FlushDB(ctx).Err())
		t.Cleanup(func() { store.Close() })
		return store
	})
}
