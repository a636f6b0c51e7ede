// ABOUTME: Tests for the local-directory object store.
// ABOUTME: Covers key scoping, round-trips, missing objects, and traversal rejection.

package files

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserKey(t *testing.T) {
	assert.Equal(t, "private/user-1/photo.jpg", UserKey("user-1", "photo.jpg"))
}

func TestPutGet(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	key := UserKey("user-1", "doc.pdf")
	require.NoError(t, store.Put(ctx, key, []byte("content")))

	data, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), data)
}

func TestGet_Missing(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "private/user-1/missing.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_RejectsTraversal(t *testing.T) {
	store, err := NewDirStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	for _, key := range []string{"../outside", "private/../../etc/passwd", "/absolute/path"} {
		_, err := store.Get(ctx, key)
		assert.Error(t, err, "key %q should be rejected", key)
		assert.NotErrorIs(t, err, ErrNotFound)
	}
}
