package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/moi-etl/internal/utils"
)

// fetchURL returns the status code, or the transport error.
func fetchURL(c HTTPClient, url string) (int, error) {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestHTTPClientHandles500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(2 * time.Second)
	code, err := fetchURL(client, srv.URL)
	if err != nil {
		t.Fatalf("unexpected network error: %v", err)
	}
	if code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestHTTPClientHandlesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewHTTPClient(500 * time.Millisecond)
	if _, err := fetchURL(client, srv.URL); err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

func TestGetWithRetryRecoversFrom5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="shopify 2025-09-10 to 2025-09-12.csv"`)
		io.WriteString(w, shopifyCSV)
	}))
	defer srv.Close()

	body, name, err := GetWithRetry(context.Background(), NewHTTPClient(time.Second), srv.URL+"/export", utils.NewBackoff(time.Millisecond, 2))
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "shopify 2025-09-10 to 2025-09-12.csv", name)
	assert.Equal(t, shopifyCSV, string(body))
}

func TestGetWithRetryDoesNotRetry404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := GetWithRetry(context.Background(), NewHTTPClient(time.Second), srv.URL, utils.NewBackoff(time.Millisecond, 3))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoaderReadsPathsAndURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, metaCSV)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "shopify.csv")
	require.NoError(t, os.WriteFile(path, []byte(shopifyCSV), 0o644))

	l := NewLoader(NewHTTPClient(time.Second), slog.New(slog.NewTextHandler(io.Discard, nil)))
	fs, err := l.LoadAll(context.Background(), path, srv.URL+"/meta-export.csv", "")
	require.NoError(t, err)
	require.NotNil(t, fs.Shopify)
	require.NotNil(t, fs.Meta)
	assert.Nil(t, fs.Google)
	assert.Equal(t, "shopify.csv", fs.Shopify.Name)
	assert.Equal(t, "meta-export.csv", fs.Meta.Name)

	_, err = l.Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}
