// internal/platform/client_test.go
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/twiliot/internal/config"
	"github.com/signalnine/twiliot/internal/protocol"
)

// pagedServer serves `pages` pages of `perPage` records at path, chained by "next" tokens
func pagedServer(t *testing.T, path string, pages, perPage int, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		page := 0
		if next := r.URL.Query().Get("next"); next != "" {
			page, _ = strconv.Atoi(next)
		}

		data := make([]map[string]any, 0, perPage)
		for i := 0; i < perPage; i++ {
			data = append(data, map[string]any{"id": fmt.Sprintf("rec-%d-%d", page, i)})
		}
		next := ""
		if page+1 < pages {
			next = strconv.Itoa(page + 1)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": data,
			"meta": map[string]any{"next": next},
		})
	}))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	c, err := NewClient(config.PlatformConfig{
		AccountID: "acme",
		APIKey:    "test-key",
		URL:       url,
		PageSize:  10,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClientMissingKeys(t *testing.T) {
	_, err := NewClient(config.PlatformConfig{AccountID: "acme"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, config.IsConfigError(err))
}

func TestGetPixelsFollowsTokens(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/v1/owner/acme/tag", 3, 10, &hits)
	defer srv.Close()

	pixels, err := newTestClient(t, srv.URL).GetPixels(context.Background(), 0)
	require.NoError(t, err)

	assert.Len(t, pixels, 30)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	assert.Equal(t, "rec-0-0", pixels[0].ID())
	assert.Equal(t, "rec-2-9", pixels[29].ID())
}

func TestGetPixelsStopsAtCap(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/v1/owner/acme/tag", 10, 10, &hits)
	defer srv.Close()

	pixels, err := newTestClient(t, srv.URL).GetPixels(context.Background(), 25)
	require.NoError(t, err)

	assert.Len(t, pixels, 25)
	// 3 pages reach 30 >= 25; the 4th is never requested
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestGetPixelsCapOnFirstPage(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/v1/owner/acme/tag", 5, 10, &hits)
	defer srv.Close()

	pixels, err := newTestClient(t, srv.URL).GetPixels(context.Background(), 10)
	require.NoError(t, err)

	assert.Len(t, pixels, 10)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetAssetsPaginates(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/v1/traceability/owner/acme/asset", 2, 4, &hits)
	defer srv.Close()

	assets, err := newTestClient(t, srv.URL).GetAssets(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, assets, 8)
	assert.Equal(t, "rec-1-3", assets[7].ID)
}

func TestGetAssetsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [], "meta": {}}`))
	}))
	defer srv.Close()

	assets, err := newTestClient(t, srv.URL).GetAssets(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, assets)
	assert.Empty(t, assets)
}

func TestRepeatedTokenIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [{"id": "x"}], "meta": {"next": "same"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetAssets(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeated")
}

func TestListErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetPixels(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "upstream exploded")
}

func TestGetAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/traceability/owner/acme/asset/pallet-7":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": {"id": "pallet-7", "categoryId": "pallets",
				"lastUpdatedAt": 1770121800000, "lastUpdatedBy": "bridge-2"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	asset, err := c.GetAsset(context.Background(), "pallet-7")
	require.NoError(t, err)
	assert.Equal(t, "pallets", asset.CategoryID)
	assert.Equal(t, "bridge-2", asset.LastUpdatedBy)
	require.NotNil(t, asset.LastUpdatedAt)
	assert.Equal(t, int64(1770121800), asset.LastUpdatedAt.Unix())

	_, err = c.GetAsset(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetAssetRequiresID(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/", 1, 1, &hits)
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).GetAsset(context.Background(), " ")
	var ve *protocol.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "asset id", ve.Field)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestListingIgnoresContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(`{"data":[{"id":"a","lastUpdatedAt":1770121800}],"meta":{}}`))
	}))
	defer srv.Close()

	assets, err := newTestClient(t, srv.URL).GetAssets(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "a", assets[0].ID)
	require.NotNil(t, assets[0].LastUpdatedAt)
	assert.Equal(t, int64(1770121800), assets[0].LastUpdatedAt.Unix())
}

func TestListingWithoutDataIsAnError(t *testing.T) {
	for name, body := range map[string]string{
		"html":    `<html><body>gateway timeout</body></html>`,
		"no data": `{"meta":{}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := newTestClient(t, srv.URL).GetAssets(context.Background(), 0)
			var ve *protocol.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestGetAssetIgnoresContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte(`{"data": {"id": "pallet-7"}}`))
	}))
	defer srv.Close()

	asset, err := newTestClient(t, srv.URL).GetAsset(context.Background(), "pallet-7")
	require.NoError(t, err)
	assert.Equal(t, "pallet-7", asset.ID)
}

func TestDebugLevelDumpsRequests(t *testing.T) {
	var hits int32
	srv := pagedServer(t, "/v1/owner/acme/tag", 1, 1, &hits)
	defer srv.Close()

	cfg := config.PlatformConfig{AccountID: "acme", APIKey: "test-key", URL: srv.URL}

	var debug bytes.Buffer
	c, err := NewClient(cfg, zerolog.New(&debug).Level(zerolog.DebugLevel))
	require.NoError(t, err)
	_, err = c.GetPixels(context.Background(), 0)
	require.NoError(t, err)
	assert.Contains(t, debug.String(), "~~~ REQUEST ~~~")
	assert.Contains(t, debug.String(), "[redacted]")
	assert.NotContains(t, debug.String(), "test-key")

	var info bytes.Buffer
	c, err = NewClient(cfg, zerolog.New(&info).Level(zerolog.InfoLevel))
	require.NoError(t, err)
	_, err = c.GetPixels(context.Background(), 0)
	require.NoError(t, err)
	assert.NotContains(t, info.String(), "~~~ REQUEST ~~~")
}
