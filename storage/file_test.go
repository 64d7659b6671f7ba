package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKV(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	_, err = kv.Get(ctx, "reports")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "reports", []byte(`[1,2]`)))
	require.NoError(t, kv.Set(ctx, "reports", []byte(`[3]`)))

	got, err := kv.Get(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, `[3]`, string(got))

	// no temp files are left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileKV_KeyIsSanitized(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, "route_history:../../etc", []byte(`[]`)))

	_, err = os.Stat(filepath.Join(dir, "route_history_.._.._etc.json"))
	assert.NoError(t, err)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	var v []string
	found, err := GetJSON(ctx, kv, "names", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetJSON(ctx, kv, "names", []string{"a", "b"}))
	found, err = GetJSON(ctx, kv, "names", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, v)

	require.NoError(t, kv.Set(ctx, "names", []byte("{")))
	_, err = GetJSON(ctx, kv, "names", &v)
	assert.ErrorIs(t, err, ErrCorrupt)
}
