package session_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cursos-vacacionales/panel/internal/session"
	"github.com/cursos-vacacionales/panel/internal/shared"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credential")
	store := session.NewFileStore(path)
	assert.Equal(t, path, store.Path())

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoCredential)

	require.NoError(t, store.Save(ctx, "abc.def.ghi"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	dirInfo, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	require.NoError(t, store.Save(ctx, "second"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestFileStoreTreatsBlankFileAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credential")
	require.NoError(t, os.WriteFile(path, []byte(" \n"), 0o600))

	_, err := session.NewFileStore(path).Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoCredential)
}

func TestBrowserStorePersistsThroughCommit(t *testing.T) {
	mr := miniredis.RunT(t)
	manager := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test_session", "secret", time.Hour, false)
	ctx := context.Background()

	req := httptest.NewRequest("GET", "/", nil)
	sess, err := manager.Load(ctx, req)
	require.NoError(t, err)
	store := session.NewBrowserStore(sess)
	_, err = store.Load(ctx)
	require.ErrorIs(t, err, session.ErrNoCredential)
	require.NoError(t, store.Save(ctx, "browser-token"))

	res := httptest.NewRecorder()
	require.NoError(t, manager.Commit(ctx, res, req, sess))

	next := httptest.NewRequest("GET", "/", nil)
	for _, c := range res.Result().Cookies() {
		next.AddCookie(c)
	}
	reloaded, err := manager.Load(ctx, next)
	require.NoError(t, err)
	token, err := session.NewBrowserStore(reloaded).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "browser-token", token)
}

func TestBrowserStoreWithoutSession(t *testing.T) {
	store := session.NewBrowserStore(nil)
	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoCredential)
	assert.Error(t, store.Save(context.Background(), "x"))
	assert.NoError(t, store.Delete(context.Background()))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore("seed")
	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seed", token)
	require.NoError(t, store.Delete(ctx))
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, session.ErrNoCredential)
}
