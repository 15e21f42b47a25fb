package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchMappings(t *testing.T) {
	const body = `{"results": {"bindings": []}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	c := NewClient(Options{
		MappingsURL: srv.URL + "/mappings.json",
		CacheDir:    cacheDir,
	})

	data, err := c.FetchMappings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	// The fetch refreshes the on-disk cache.
	cached, err := os.ReadFile(filepath.Join(cacheDir, "mappings.json"))
	require.NoError(t, err)
	assert.Equal(t, body, string(cached))

	fromCache, err := c.CachedMappings()
	require.NoError(t, err)
	assert.Equal(t, body, string(fromCache))
}

func TestFetchOntology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"@graph": []}`))
	}))
	defer srv.Close()

	c := NewClient(Options{
		OntologyURL: srv.URL + "/d3fend.json",
		CacheDir:    t.TempDir(),
	})

	data, err := c.FetchOntology(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"@graph": []}`, string(data))

	cached, err := c.CachedOntology()
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestFetchErrors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		c := NewClient(Options{MappingsURL: srv.URL, CacheDir: t.TempDir()})
		_, err := c.FetchMappings(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status 503")
	})

	t.Run("no URL configured", func(t *testing.T) {
		c := NewClient(Options{CacheDir: t.TempDir()})
		_, err := c.FetchMappings(context.Background())
		require.Error(t, err)
	})

	t.Run("cache miss", func(t *testing.T) {
		c := NewClient(Options{CacheDir: t.TempDir()})
		_, err := c.CachedMappings()
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c := NewClient(Options{MappingsURL: srv.URL, CacheDir: t.TempDir()})
		_, err := c.FetchMappings(ctx)
		require.Error(t, err)
	})
}
