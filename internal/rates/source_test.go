package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSource(srv *httptest.Server, apiKey string) *GoldAPISource {
	return &GoldAPISource{
		client: srv.Client(),
		url:    srv.URL,
		apiKey: apiKey,
	}
}

func TestGoldAPISource_FetchSpotPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-access-token"))
		w.Write([]byte(`{"price": 202172.75, "currency": "INR", "metal": "XAU"}`))
	}))
	defer srv.Close()

	source := newTestSource(srv, "test-key")

	price, err := source.FetchSpotPrice(context.Background())
	assert.NoError(t, err)

	// 202172.75 per troy ounce is roughly 6500 per gram.
	assert.Equal(t, "6500", price.Round(2).String())
}

func TestGoldAPISource_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	source := newTestSource(srv, "bad-key")

	_, err := source.FetchSpotPrice(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestGoldAPISource_NonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price": 0}`))
	}))
	defer srv.Close()

	source := newTestSource(srv, "test-key")

	_, err := source.FetchSpotPrice(context.Background())
	assert.Error(t, err)
}
