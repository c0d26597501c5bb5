package jwks

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keySetServer struct {
	srv    *httptest.Server
	doc    atomic.Value // document JSON
	hits   atomic.Int64
	status atomic.Int64
}

func newKeySetServer(t *testing.T) *keySetServer {
	t.Helper()
	ks := &keySetServer{}
	ks.status.Store(http.StatusOK)
	ks.doc.Store([]byte(`{"keys":[]}`))
	ks.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		ks.hits.Add(1)
		w.WriteHeader(int(ks.status.Load()))
		_, _ = w.Write(ks.doc.Load().([]byte))
	}))
	t.Cleanup(ks.srv.Close)
	return ks
}

func (ks *keySetServer) serve(t *testing.T, kids ...keyEntry) {
	t.Helper()
	type jwk struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	}
	var doc struct {
		Keys []jwk `json:"keys"`
	}
	for _, e := range kids {
		doc.Keys = append(doc.Keys, jwk{
			Kty: "RSA",
			Kid: e.kid,
			N:   base64.RawURLEncoding.EncodeToString(e.pub.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(e.pub.E)).Bytes()),
		})
	}
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	ks.doc.Store(b)
}

type keyEntry struct {
	kid string
	pub *rsa.PublicKey
}

func newKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &k.PublicKey
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKey_LazyFetchAndWarmHit(t *testing.T) {
	ks := newKeySetServer(t)
	pub := newKey(t)
	ks.serve(t, keyEntry{kid: "k1", pub: pub})

	clock := &fakeClock{t: time.Now()}
	c := NewCache(ks.srv.URL, time.Hour, nil, clock.now)

	got, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.Equal(t, pub.N, got.N)
	assert.EqualValues(t, 1, ks.hits.Load())

	// Warm cache within TTL: no second fetch.
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, ks.hits.Load())
}

func TestKey_StaleCacheRefetches(t *testing.T) {
	ks := newKeySetServer(t)
	ks.serve(t, keyEntry{kid: "k1", pub: newKey(t)})

	clock := &fakeClock{t: time.Now()}
	c := NewCache(ks.srv.URL, time.Hour, nil, clock.now)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	clock.advance(61 * time.Minute)
	_, err = c.Key(context.Background(), "k1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, ks.hits.Load())
}

func TestKey_UnknownKidOnWarmCache_ForcesOneRefetch(t *testing.T) {
	ks := newKeySetServer(t)
	ks.serve(t, keyEntry{kid: "k1", pub: newKey(t)})

	clock := &fakeClock{t: time.Now()}
	c := NewCache(ks.srv.URL, time.Hour, nil, clock.now)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	// Key rotation: the provider now publishes k2 as well.
	rotated := newKey(t)
	ks.serve(t, keyEntry{kid: "k1", pub: newKey(t)}, keyEntry{kid: "k2", pub: rotated})

	got, err := c.Key(context.Background(), "k2")
	require.NoError(t, err)
	assert.Equal(t, rotated.N, got.N)
	assert.EqualValues(t, 2, ks.hits.Load())
}

func TestKey_UnknownKidAfterRefetch_Fails(t *testing.T) {
	ks := newKeySetServer(t)
	ks.serve(t, keyEntry{kid: "k1", pub: newKey(t)})

	clock := &fakeClock{t: time.Now()}
	c := NewCache(ks.srv.URL, time.Hour, nil, clock.now)

	_, err := c.Key(context.Background(), "k1")
	require.NoError(t, err)

	_, err = c.Key(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyNotFound))
	// Exactly one forced refetch before failing.
	assert.EqualValues(t, 2, ks.hits.Load())
}

func TestKey_UpstreamError(t *testing.T) {
	ks := newKeySetServer(t)
	ks.status.Store(http.StatusInternalServerError)

	c := NewCache(ks.srv.URL, time.Hour, nil, nil)
	_, err := c.Key(context.Background(), "k1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestKey_GarbageDocument(t *testing.T) {
	ks := newKeySetServer(t)
	ks.doc.Store([]byte(`not json`))

	c := NewCache(ks.srv.URL, time.Hour, nil, nil)
	_, err := c.Key(context.Background(), "k1")
	require.Error(t, err)
}
