package storefront_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"CandleShop/internal/cart"
	"CandleShop/internal/catalog"
	"CandleShop/internal/checkout"
	"CandleShop/internal/kvstore"
	"CandleShop/internal/session"
	"CandleShop/internal/storefront"
)

const jwtSecret = "storefront-test-secret"

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &catalog.Server{Store: catalog.NewSeededStore()}
	h := catalog.NewHandler(s, catalog.HTTPDeps{
		Log:     zap.NewNop(),
		Service: "catalog",
	})
	return httptest.NewServer(h)
}

func newStorefrontTS(t *testing.T, catalogURL string, kv kvstore.Store) (*httptest.Server, *cart.Store) {
	t.Helper()

	store := cart.Open(context.Background(), kv, cart.Options{Log: zap.NewNop()})
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}

	h, err := storefront.NewHandler(
		storefront.Deps{
			Cart:       store,
			Orders:     checkout.NewMemStore(),
			CatalogURL: catalogURL,
			JWTSecret:  jwtSecret,
			Pricing:    checkout.DefaultPricing,
		},
		storefront.HTTPDeps{
			Log:          zap.NewNop(),
			Service:      "storefront",
			Registry:     prometheus.NewRegistry(),
			MetricsToken: "metrics-token",
		},
	)
	if err != nil {
		t.Fatalf("storefront.NewHandler: %v", err)
	}

	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, store
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func authHeader(t *testing.T, userID string) map[string]string {
	t.Helper()

	tok, err := session.NewTokenMaker(jwtSecret).New(userID, userID+"@example.com", 15*time.Minute)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

func TestStorefront_PublicAPI_HappyPath(t *testing.T) {
	catalogTS := newCatalogTS(t)
	t.Cleanup(catalogTS.Close)

	kv := kvstore.NewMemStore()
	sfTS, store := newStorefrontTS(t, catalogTS.URL, kv)

	c := &http.Client{}
	u1 := authHeader(t, "u1")

	{
		resp, raw := doJSON(t, c, http.MethodGet, sfTS.URL+"/products", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("products status=%d body=%s", resp.StatusCode, string(raw))
		}
		var products []catalog.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			t.Fatalf("decode products: %v", err)
		}
		if len(products) == 0 {
			t.Fatalf("expected products")
		}
	}

	for _, add := range []map[string]any{
		{"id": 1, "quantity": 2},
		{"id": 2, "quantity": 1},
		{"id": 1, "quantity": 1},
	} {
		resp, raw := doJSON(t, c, http.MethodPost, sfTS.URL+"/cart/items", add, u1)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add status=%d body=%s", resp.StatusCode, string(raw))
		}
	}

	if got := store.Items(); len(got) != 2 || got[0].Quantity != 3 {
		t.Fatalf("cart=%+v", got)
	}

	var created checkout.Order
	{
		resp, raw := doJSON(t, c, http.MethodPost, sfTS.URL+"/checkout/confirm", map[string]any{
			"item_ids": []int64{1},
		}, u1)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("confirm status=%d body=%s", resp.StatusCode, string(raw))
		}
		if err := json.Unmarshal(raw, &created); err != nil {
			t.Fatalf("decode order: %v body=%s", err, string(raw))
		}
		if created.Total != 3*120000+20000-5000 {
			t.Fatalf("total=%v", created.Total)
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, sfTS.URL+"/checkout/orders/"+created.ID, nil, u1)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get order status=%d body=%s", resp.StatusCode, string(raw))
		}
	}

	left := store.Items()
	if len(left) != 1 || left[0].ItemID != 2 {
		t.Fatalf("cart after checkout=%+v", left)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	restarted := cart.Open(context.Background(), kv, cart.Options{})
	t.Cleanup(func() { _ = restarted.Close(context.Background()) })
	if err := restarted.WaitReady(ctx); err != nil {
		t.Fatalf("wait ready: %v", err)
	}
	if got := restarted.Items(); len(got) != 1 || got[0] != left[0] {
		t.Fatalf("restored cart=%+v want %+v", got, left)
	}
}

func TestStorefront_PublicAPI_AddRequiresSession(t *testing.T) {
	catalogTS := newCatalogTS(t)
	t.Cleanup(catalogTS.Close)

	sfTS, _ := newStorefrontTS(t, catalogTS.URL, kvstore.NewMemStore())

	resp, raw := doJSON(t, &http.Client{}, http.MethodPost, sfTS.URL+"/cart/items", map[string]any{
		"id": 1, "quantity": 1,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestStorefront_ReadyAndMetrics(t *testing.T) {
	catalogTS := newCatalogTS(t)
	t.Cleanup(catalogTS.Close)

	sfTS, _ := newStorefrontTS(t, catalogTS.URL, kvstore.NewMemStore())

	c := &http.Client{}
	if resp, raw := doJSON(t, c, http.MethodGet, sfTS.URL+"/readyz", nil, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", resp.StatusCode, string(raw))
	}

	if resp, _ := doJSON(t, c, http.MethodGet, sfTS.URL+"/metrics", nil, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("metrics without token status=%d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, c, http.MethodGet, sfTS.URL+"/metrics", nil, map[string]string{
		"Authorization": "Bearer metrics-token",
	}); resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", resp.StatusCode)
	}
}

func TestStorefront_CatalogDown(t *testing.T) {
	catalogTS := newCatalogTS(t)
	url := catalogTS.URL
	catalogTS.Close()

	sfTS, _ := newStorefrontTS(t, url, kvstore.NewMemStore())
	c := &http.Client{}

	if resp, _ := doJSON(t, c, http.MethodGet, sfTS.URL+"/products", nil, nil); resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("products status=%d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, c, http.MethodGet, sfTS.URL+"/readyz", nil, nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", resp.StatusCode)
	}
	resp, _ := doJSON(t, c, http.MethodPost, sfTS.URL+"/cart/items", map[string]any{"id": 1, "quantity": 1}, authHeader(t, "u1"))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("add status=%d", resp.StatusCode)
	}
}
