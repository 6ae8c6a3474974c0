package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the shared contract against any backend. Keys are
// prefixed so shared servers can be reused between runs.
func exerciseKV(t *testing.T, kv KV, prefix string) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, prefix+"missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, prefix+"a:R1", []byte("one")))
	v, ok, err := kv.Get(ctx, prefix+"a:R1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("one"), v)

	exists, err := kv.Exists(ctx, prefix+"a:R1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, kv.SetMany(ctx, map[string][]byte{
		prefix + "b:R1": []byte("two"),
		prefix + "c:R2": []byte("three"),
	}))
	got, err := kv.GetMany(ctx, []string{prefix + "a:R1", prefix + "c:R2", prefix + "nope"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		prefix + "a:R1": []byte("one"),
		prefix + "c:R2": []byte("three"),
	}, got)

	keys, err := kv.Keys(ctx, prefix+"*:R1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{prefix + "a:R1", prefix + "b:R1"}, keys)
}

func TestMemoryKV(t *testing.T) {
	t.Parallel()
	kv := NewMemory()
	exerciseKV(t, kv, "")
	require.NoError(t, kv.Close())

	_, _, err := kv.Get(context.Background(), "a:R1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryKVCopiesValues(t *testing.T) {
	t.Parallel()
	kv := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, kv.Set(ctx, "k", buf))
	buf[0] = 'z'
	v, _, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := Open(context.Background(), Options{Backend: "etcd"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Options{Backend: "redis"})
	assert.Error(t, err)

	kv, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)
}

func TestRedisKV(t *testing.T) {
	url := os.Getenv("DRAWSOLVER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("DRAWSOLVER_TEST_REDIS_URL not set")
	}
	kv, err := Open(context.Background(), Options{Backend: "redis", RedisURL: url})
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv, "drawsolver-test:"+t.Name()+":")
}

func TestPostgresKV(t *testing.T) {
	dsn := os.Getenv("DRAWSOLVER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DRAWSOLVER_TEST_DATABASE_URL not set")
	}
	kv, err := Open(context.Background(), Options{Backend: "postgres", DatabaseURL: dsn})
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv, "drawsolver-test:"+t.Name()+":")
}

func TestGlobToLike(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "%:R1", globToLike("*:R1"))
	assert.Equal(t, "a_b", globToLike("a?b"))
	assert.Equal(t, `100\%\_x`, globToLike("100%_x"))
}
