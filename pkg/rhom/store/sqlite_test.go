package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/rhom/pkg/rhom/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackend_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	b1, err := store.NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	require.NoError(t, b1.HSet(ctx, "User:1", map[string]any{"email": "a@b", "age": 36}))
	require.NoError(t, b1.SAdd(ctx, "User:all", "1"))
	require.NoError(t, b1.Close())

	b2, err := store.NewSQLiteBackend(dbPath)
	require.NoError(t, err)
	defer b2.Close()

	got, err := b2.HGetAll(ctx, "User:1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"email": "a@b", "age": float64(36)}, got, "numbers come back as JSON float64")

	members, err := b2.SMembers(ctx, "User:all")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, members)
}

func TestSQLiteBackend_Memory(t *testing.T) {
	b, err := store.NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	require.NoError(t, b.SetString(ctx, "k", "v"))
	v, err := b.GetString(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestSQLiteBackend_InvalidPath(t *testing.T) {
	_, err := store.NewSQLiteBackend("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteBackend_UnencodableValue(t *testing.T) {
	b, err := store.NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	err = b.HSet(context.Background(), "k", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestSQLiteBackend_Concurrent(t *testing.T) {
	b, err := store.NewSQLiteBackend(filepath.Join(t.TempDir(), "concurrent.db"))
	require.NoError(t, err)
	defer b.Close()

	const numGoroutines = 20
	const numOps = 20
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("User:%d-%d", id, j)
				switch j % 3 {
				case 0:
					assert.NoError(t, b.HSet(ctx, key, map[string]any{"n": j}))
				case 1:
					assert.NoError(t, b.SAdd(ctx, "User:all", key))
				case 2:
					_, err := b.SMembers(ctx, "User:all")
					assert.NoError(t, err)
				}
			}
		}(i)
	}
	wg.Wait()

	members, err := b.SMembers(ctx, "User:all")
	require.NoError(t, err)
	assert.Len(t, members, numGoroutines*7)
}
