// Package fetch retrieves the raw D3FEND mapping and ontology documents
// and caches them on disk so index rebuilds can run offline.
//
// Fetching is the only I/O the build pipeline performs; it either completes
// or fails quickly under the configured timeout. Nothing here inspects the
// documents, that is the normalizer's job.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// maxDocumentSize bounds how much of a response body is read. The full
// mappings dump is tens of megabytes; anything past this is a broken or
// hostile endpoint.
const maxDocumentSize = 256 << 20

// Cache file names under the cache directory.
const (
	mappingsCacheFile = "mappings.json"
	ontologyCacheFile = "d3fend.json"
)

// Options configures a Client.
type Options struct {
	// MappingsURL is the full-mappings dump endpoint.
	MappingsURL string

	// OntologyURL is the secondary ontology endpoint.
	OntologyURL string

	// CacheDir is where fetched documents are written. Default: "data"
	CacheDir string

	// Timeout is the per-document fetch timeout. Default: 2m
	Timeout time.Duration

	// HTTPClient overrides the HTTP client, mainly for tests.
	HTTPClient *http.Client

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
}

// Client fetches and caches the source documents.
type Client struct {
	mappingsURL string
	ontologyURL string
	cacheDir    string
	timeout     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

// NewClient creates a fetch client with the given options.
func NewClient(opts Options) *Client {
	if opts.CacheDir == "" {
		opts.CacheDir = "data"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		mappingsURL: opts.MappingsURL,
		ontologyURL: opts.OntologyURL,
		cacheDir:    opts.CacheDir,
		timeout:     opts.Timeout,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
	}
}

// FetchMappings downloads the full-mappings dump and refreshes the cache.
func (c *Client) FetchMappings(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, c.mappingsURL, mappingsCacheFile)
}

// FetchOntology downloads the secondary ontology document and refreshes
// the cache.
func (c *Client) FetchOntology(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, c.ontologyURL, ontologyCacheFile)
}

// CachedMappings reads the last fetched mappings dump from disk.
func (c *Client) CachedMappings() ([]byte, error) {
	return os.ReadFile(filepath.Join(c.cacheDir, mappingsCacheFile))
}

// CachedOntology reads the last fetched ontology document from disk.
func (c *Client) CachedOntology() ([]byte, error) {
	return os.ReadFile(filepath.Join(c.cacheDir, ontologyCacheFile))
}

func (c *Client) fetch(ctx context.Context, url, cacheFile string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("no URL configured for %s", cacheFile)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	c.writeCache(cacheFile, data)
	return data, nil
}

// writeCache refreshes the on-disk copy. Cache failures are logged, not
// returned; the fetched bytes are still usable.
func (c *Client) writeCache(name string, data []byte) {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		c.logger.Warn("failed to create cache directory", "dir", c.cacheDir, "error", err)
		return
	}
	path := filepath.Join(c.cacheDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		c.logger.Warn("failed to write document cache", "path", path, "error", err)
	}
}
