package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	errx "github.com/savant-model-analyzer/server/internal/core/error"
	pkgbadger "github.com/savant-model-analyzer/server/pkg/badger"
)

type record struct {
	Name   string
	Values []float64
}

func backends(t *testing.T) map[string]Manager {
	t.Helper()

	fc, err := NewFileCache(t.TempDir())
	require.NoError(t, err)

	db, err := pkgbadger.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return map[string]Manager{
		"file":   fc,
		"memory": NewMemoryCache(db),
		"redis":  NewRedisCache(rdb, time.Hour),
	}
}

func TestBackendsRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Save(ctx, "s1", "features", []string{"age", "dose"}))
			var features []string
			require.NoError(t, m.Load(ctx, "s1", "features", &features))
			assert.Equal(t, []string{"age", "dose"}, features)

			in := record{Name: "x", Values: []float64{1.5, -2}}
			require.NoError(t, m.Save(ctx, "s1", "record", in))
			var out record
			require.NoError(t, m.Load(ctx, "s1", "record", &out))
			assert.Equal(t, in, out)

			dense := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
			require.NoError(t, m.Save(ctx, "s1", "shap", dense))
			var loaded mat.Dense
			require.NoError(t, m.Load(ctx, "s1", "shap", &loaded))
			assert.True(t, mat.Equal(dense, &loaded))
		})
	}
}

func TestBackendsAgreeOnMissingKeys(t *testing.T) {
	ctx := context.Background()
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var out []string
			err := m.Load(ctx, "missing", "features", &out)
			assert.ErrorIs(t, err, errx.ErrNotFound)

			ok, err := m.Exists(ctx, "missing", "features")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, m.Delete(ctx, "missing", "features"))
		})
	}
}

func TestBackendsOverwriteAndDelete(t *testing.T) {
	ctx := context.Background()
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, m.Save(ctx, "s2", "y_test", []int{0, 1}))
			require.NoError(t, m.Save(ctx, "s2", "y_test", []int{1, 1, 0}))

			var labels []int
			require.NoError(t, m.Load(ctx, "s2", "y_test", &labels))
			assert.Equal(t, []int{1, 1, 0}, labels)

			ok, err := m.Exists(ctx, "s2", "y_test")
			require.NoError(t, err)
			assert.True(t, ok)

			require.NoError(t, m.Delete(ctx, "s2", "y_test"))
			ok, err = m.Exists(ctx, "s2", "y_test")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackendsRejectPathLikeKeys(t *testing.T) {
	ctx := context.Background()
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"../etc", "a/b", `a\b`, ""} {
				err := m.Save(ctx, id, "model", 1)
				assert.ErrorIs(t, err, errx.ErrInvalidReference, id)
			}
		})
	}
}

func TestFileCacheLayout(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)

	require.NoError(t, fc.Save(context.Background(), "abc", "model", "payload"))
	_, err = os.Stat(filepath.Join(dir, "abc_model.pkl"))
	assert.NoError(t, err)
}

func TestFileCacheCorruptFile(t *testing.T) {
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc_model.pkl"), []byte("garbage"), 0o600))

	var out string
	err = fc.Load(context.Background(), "abc", "model", &out)
	assert.ErrorIs(t, err, errx.ErrDeserialization)
}

func TestRedisCacheKeyAndTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	c := NewRedisCache(rdb, 3600*time.Second)
	require.NoError(t, c.Save(context.Background(), "abc", "shap", []float64{1}))

	assert.True(t, mr.Exists("shap:abc"))
	assert.Equal(t, 3600*time.Second, mr.TTL("shap:abc"))
}

func TestRedisClaim(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewRedisCache(rdb, time.Hour)

	release, ok, err := c.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = c.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	release2, ok, err := c.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// a stale release must not drop somebody else's lock
	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("lock:abc"))
	require.NoError(t, release2(ctx))

	_, ok, err = c.Claim(ctx, "expiring", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(2 * time.Second)
	_, ok, err = c.Claim(ctx, "expiring", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileClaim(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fc, err := NewFileCache(dir)
	require.NoError(t, err)

	release, ok, err := fc.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = fc.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = fc.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "abc.lock"), old, old))
	_, ok, err = fc.Claim(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "stale lock should be taken over")
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{"joblib file", Config{Backend: "joblib", Location: "file", Dir: t.TempDir()}, &FileCache{}},
		{"joblib memory", Config{Backend: "joblib", Location: "memory"}, &MemoryCache{}},
		{"redis", Config{Backend: "REDIS", RedisTTL: 60}, &RedisCache{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(ctx, tt.cfg, WithRedisClient(rdb))
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
			if mc, ok := m.(*MemoryCache); ok {
				mc.Close()
			}
		})
	}

	_, err := New(ctx, Config{Backend: "mongo"})
	assert.Error(t, err)
}

func TestSharedFirstConstructionWins(t *testing.T) {
	sharedMu.Lock()
	shared = nil
	sharedMu.Unlock()
	t.Cleanup(func() {
		sharedMu.Lock()
		shared = nil
		sharedMu.Unlock()
	})

	ctx := context.Background()
	first, err := Shared(ctx, Config{Backend: "joblib", Dir: t.TempDir()})
	require.NoError(t, err)

	second, err := Shared(ctx, Config{Backend: "joblib", Location: "memory"})
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.IsType(t, &FileCache{}, second)
}

func TestBackendsRejectUnderscoreIDs(t *testing.T) {
	ctx := context.Background()
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := m.Save(ctx, "a_b", "c", 1)
			assert.ErrorIs(t, err, errx.ErrInvalidReference)

			require.NoError(t, m.Save(ctx, "a", "b_c", 2))
			ok, err := m.Exists(ctx, "a_b", "c")
			assert.ErrorIs(t, err, errx.ErrInvalidReference)
			assert.False(t, ok)

			var n int
			require.NoError(t, m.Load(ctx, "a", "b_c", &n))
			assert.Equal(t, 2, n)
		})
	}
}
