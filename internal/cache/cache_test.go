package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizes(t *testing.T) {
	a := Key("dns", "  Pearl Hotel  ", "Istanbul")
	b := Key("dns", "pearl hotel", "istanbul")
	assert.Equal(t, a, b, "keys must be case- and whitespace-insensitive")
	assert.Contains(t, a, "dns:")
}

func TestKeyNamespacesDiffer(t *testing.T) {
	assert.NotEqual(t, Key("dns", "pearl.com"), Key("validate", "pearl.com"))
}

func TestMemoryPutGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", []byte("v"), time.Hour))
	got, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryMiss(t *testing.T) {
	m := NewMemory()
	_, ok, err := m.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	now := time.Now()
	m.nowFunc = func() time.Time { return now }
	require.NoError(t, m.Put(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(2 * time.Minute)
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "expired entries must never be returned")
	assert.Equal(t, 0, m.Len(), "expired entries are dropped on read")
}

func TestMemorySupersede(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, "k", []byte("old"), time.Hour))
	require.NoError(t, m.Put(ctx, "k", []byte("new"), time.Hour))

	got, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestGetPutJSON(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type entry struct {
		Exists bool `json:"exists"`
	}
	require.NoError(t, PutJSON(ctx, m, "k", entry{Exists: true}, time.Hour))

	var out entry
	ok, err := GetJSON(ctx, m, "k", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, out.Exists)

	ok, err = GetJSON(ctx, m, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePutGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte(`{"v":1}`), time.Hour))
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"v":1}`, string(got))
}

func TestSQLiteExpiredNotReturned(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("v"), -time.Minute))
	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteUpsertSupersedes(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", []byte("stale"), -time.Minute))
	require.NoError(t, s.Put(ctx, "k", []byte("fresh"), time.Hour))

	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), got)
}

func TestSQLitePurgeExpired(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "dead", []byte("v"), -time.Minute))
	require.NoError(t, s.Put(ctx, "live", []byte("v"), time.Hour))

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, _ := s.Get(ctx, "live")
	assert.True(t, ok)
}
