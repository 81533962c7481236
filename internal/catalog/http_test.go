package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"CandleShop/internal/catalog"
)

func newCatalogTS(t *testing.T, store catalog.Store) *httptest.Server {
	t.Helper()

	h := catalog.NewHandler(&catalog.Server{Store: store}, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func TestCatalogHTTP_ListAndGet(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewSeededStore())

	resp, err := http.Get(ts.URL + "/products")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var products []catalog.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 3)
	for i := 1; i < len(products); i++ {
		assert.Less(t, products[i-1].ID, products[i].ID)
	}

	cases := []struct {
		path   string
		status int
	}{
		{"/products/2", http.StatusOK},
		{"/products/99", http.StatusNotFound},
		{"/products/abc", http.StatusBadRequest},
		{"/products/0", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp, err := http.Get(ts.URL + tc.path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, tc.status, resp.StatusCode, tc.path)
	}
}

func TestClient_GetProduct(t *testing.T) {
	ts := newCatalogTS(t, catalog.NewSeededStore())
	c := catalog.NewClient(ts.URL + "/")

	p, err := c.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Lavender Dream", p.Name)

	_, err = c.GetProduct(context.Background(), 99)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, c.Ping(context.Background()))
}

func TestClient_BadStatusAndUnavailable(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	_, err := catalog.NewClient(broken.URL).GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, catalog.ErrBadStatus)
	assert.ErrorIs(t, catalog.NewClient(broken.URL).Ping(context.Background()), catalog.ErrBadStatus)

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	_, err = catalog.NewClient(url).GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.True(t, errors.Is(catalog.NewClient(url).Ping(context.Background()), catalog.ErrUnavailable))
}

func TestClient_SharesConcurrentLookups(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(catalog.Product{ID: 1, Name: "Lavender Dream"})
	}))
	t.Cleanup(ts.Close)

	c := catalog.NewClient(ts.URL)

	const n = 8
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)
	errs := make([]error, n)
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			_, errs[i] = c.GetProduct(context.Background(), 1)
		}(i)
	}
	started.Wait()

	require.Eventually(t, func() bool { return hits.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}
