package benchmarks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
)

func userType(b *testing.B, backend store.Backend) *rhom.Descriptor {
	b.Helper()
	return rhom.New("User", rhom.WithProperties("email", "name", "age")).MustUse(store.New(backend))
}

func createSQLiteBackend(b *testing.B) *store.SQLiteBackend {
	b.Helper()
	backend, err := store.NewSQLiteBackend(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = backend.Close() })
	return backend
}

func newUser(d *rhom.Descriptor) *rhom.Instance {
	inst := d.NewInstance()
	_ = inst.Set("email", "ada@example.com")
	_ = inst.Set("name", "Ada")
	_ = inst.Set("age", 36)
	return inst
}

func benchmarkSave(b *testing.B, backend store.Backend) {
	ctx := context.Background()
	d := userType(b, backend)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := newUser(d).Save(ctx).Wait(); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, backend store.Backend) {
	ctx := context.Background()
	d := userType(b, backend)
	inst := newUser(d)
	if _, err := inst.Save(ctx).Wait(); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.Get(ctx, inst.ID()).Wait(); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMemory_Save measures a save through the storage plugin.
func BenchmarkMemory_Save(b *testing.B) {
	benchmarkSave(b, store.NewMemoryBackend())
}

// BenchmarkMemory_Get measures a stored get.
func BenchmarkMemory_Get(b *testing.B) {
	benchmarkGet(b, store.NewMemoryBackend())
}

// BenchmarkSQLite_Save measures a save against a file-backed database.
func BenchmarkSQLite_Save(b *testing.B) {
	benchmarkSave(b, createSQLiteBackend(b))
}

// BenchmarkSQLite_Get measures a get against a file-backed database.
func BenchmarkSQLite_Get(b *testing.B) {
	benchmarkGet(b, createSQLiteBackend(b))
}
