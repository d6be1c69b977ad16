package storage

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files",
	}, logger)
	require.NoError(t, err)

	return store
}

func TestLocalPutGetRoundTrip(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	err := store.Put(ctx, "reports/1/attachments/a.txt", strings.NewReader("hello"), PutOptions{})
	require.NoError(t, err)

	rc, info, err := store.Get(ctx, "reports/1/attachments/a.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), info.Size)
}

func TestLocalPutRejectsOversized(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	err := store.Put(ctx, "big.bin", strings.NewReader("0123456789"), PutOptions{MaxSize: 5})
	require.Error(t, err)
	assert.True(t, IsTooLarge(err))

	// The partial file must not survive the failed upload.
	exists, err := store.Exists(ctx, "big.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalPutExactSizeAllowed(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	err := store.Put(ctx, "exact.bin", strings.NewReader("12345"), PutOptions{MaxSize: 5})
	assert.NoError(t, err)
}

func TestLocalPutRejectsDuplicateKey(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "dup.txt", strings.NewReader("one"), PutOptions{}))

	err := store.Put(ctx, "dup.txt", strings.NewReader("two"), PutOptions{})
	require.Error(t, err)

	// Overwrite opts in.
	err = store.Put(ctx, "dup.txt", strings.NewReader("two"), PutOptions{Overwrite: true})
	assert.NoError(t, err)
}

func TestLocalRejectsPathTraversal(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	err := store.Put(ctx, "../escape.txt", strings.NewReader("x"), PutOptions{})
	require.Error(t, err)
	assert.True(t, IsInvalidKey(err))
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	assert.NoError(t, store.Delete(ctx, "never-existed.txt"))
}

func TestLocalURL(t *testing.T) {
	store := newTestLocalStorage(t)
	ctx := context.Background()

	url, err := store.URL(ctx, "reports/1/attachments/a.jpg", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/reports/1/attachments/a.jpg", url)
}
