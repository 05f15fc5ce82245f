package redisstore_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/webauth/stores/redisstore"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

// compile-time interface checks
var (
	_ scs.Store    = (*redisstore.Store)(nil)
	_ scs.CtxStore = (*redisstore.Store)(nil)
)

func TestStoreRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	store := redisstore.New(client)
	ctx := context.Background()

	_, found, err := store.FindCtx(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.CommitCtx(ctx, "tok", []byte("payload"), time.Now().Add(time.Minute)))
	assert.True(t, mr.Exists(redisstore.DefaultPrefix+"tok"))

	b, found, err := store.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), b)

	require.NoError(t, store.DeleteCtx(ctx, "tok"))
	_, found, err = store.FindCtx(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := redisstore.New(client)

	require.NoError(t, store.Commit("tok", []byte("x"), time.Now().Add(30*time.Second)))
	mr.FastForward(31 * time.Second)

	_, found, err := store.Find("tok")
	require.NoError(t, err)
	assert.False(t, found)

	// an already expired commit deletes instead of writing
	require.NoError(t, store.Commit("old", []byte("x"), time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(redisstore.DefaultPrefix+"old"))
}

func TestStoreBacksSessionManager(t *testing.T) {
	_, client := newTestRedis(t)
	sm := scs.New()
	sm.Store = redisstore.New(client)

	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/put" {
			sm.Put(r.Context(), "userEmail", "a@example.com")
			return
		}
		w.Write([]byte(sm.GetString(r.Context(), "userEmail")))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/put", nil))
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/get", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "a@example.com", rr.Body.String())
}
