package repository

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinScore/internal/domain/models"
	xhttp "FinScore/pkg/http"
)

// fakeBucket emulates the storage object endpoints.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    bool
	auth    []string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.auth = append(b.auth, r.Header.Get("Authorization"))
	if b.fail {
		http.Error(w, "upstream down", http.StatusBadGateway)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/storage/v1/object/MLmodels/")
	switch r.Method {
	case http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"statusCode":"404","error":"not_found","message":"Object not found"}`))
			return
		}
		_, _ = w.Write(data)
	case http.MethodPost:
		if r.Header.Get("x-upsert") != "true" {
			http.Error(w, "exists", http.StatusConflict)
			return
		}
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		_, _ = w.Write([]byte(`{"Key":"` + key + `"}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newHTTPStore(t *testing.T, b *fakeBucket, bs BreakerSettings) *HTTPArtifactStore {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return NewHTTPArtifactStore(srv.URL+"/", "MLmodels", "secret", xhttp.NewClient(xhttp.WithTimeout(2*time.Second)), bs, nil)
}

func defaultBreaker() BreakerSettings {
	return BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureRatio: 0.6}
}

func TestHTTPArtifactStoreRoundTrip(t *testing.T) {
	b := &fakeBucket{objects: map[string][]byte{}}
	s := newHTTPStore(t, b, defaultBreaker())
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "models/u1.json", []byte(`{"v":1}`)))
	got, err := s.Get(ctx, "models/u1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got))
	assert.Equal(t, "Bearer secret", b.auth[0])

	_, err = s.Get(ctx, "models/ghost.json")
	assert.ErrorIs(t, err, models.ErrArtifactNotFound)
}

func TestHTTPArtifactStoreNotFoundDoesNotTripBreaker(t *testing.T) {
	s := newHTTPStore(t, &fakeBucket{objects: map[string][]byte{}}, defaultBreaker())
	for i := 0; i < 10; i++ {
		_, err := s.Get(context.Background(), "missing.json")
		require.ErrorIs(t, err, models.ErrArtifactNotFound)
	}
}

func TestHTTPArtifactStoreOpensBreaker(t *testing.T) {
	b := &fakeBucket{objects: map[string][]byte{}, fail: true}
	s := newHTTPStore(t, b, defaultBreaker())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Get(ctx, "decision_model.json")
		require.ErrorIs(t, err, models.ErrStoreUnavailable)
	}
	calls := len(b.auth)

	_, err := s.Get(ctx, "decision_model.json")
	require.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, calls, len(b.auth), "open breaker short-circuits the request")
}

func TestRedisArtifactStore(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisArtifactStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	ctx := context.Background()

	_, err := s.Get(ctx, "decision_model.json")
	require.ErrorIs(t, err, models.ErrArtifactNotFound)

	require.NoError(t, s.Put(ctx, "decision_model.json", []byte("{}")))
	assert.True(t, mr.Exists("finscore:artifacts:decision_model.json"))
	got, err := s.Get(ctx, "decision_model.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))

	mr.Close()
	_, err = s.Get(ctx, "decision_model.json")
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}
