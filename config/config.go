// Package config provides loading and parsing of countermap.yaml
// configuration files. The configuration selects the persisted-index
// backend, names the source documents, and holds optional service-registry
// settings. Backend selection is a single explicit decision here; there is
// no implicit fallback chain between backends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a countermap.yaml configuration file.
type Config struct {
	// Source configures where the raw mapping documents come from.
	Source SourceConfig `yaml:"source"`

	// Store selects and configures the persisted-index backend.
	Store StoreConfig `yaml:"store"`

	// Registry configures optional etcd self-registration of a serving
	// instance. Nil disables registration.
	Registry *RegistryConfig `yaml:"registry,omitempty"`

	// ListLimit is the default row cap for technique listings.
	// Default: 500
	ListLimit int `yaml:"list_limit,omitempty"`
}

// SourceConfig names the mapping and ontology documents.
type SourceConfig struct {
	// MappingsURL is the full-mappings dump endpoint.
	MappingsURL string `yaml:"mappings_url,omitempty"`

	// OntologyURL is the secondary ontology endpoint used for canonical-ID
	// enrichment.
	OntologyURL string `yaml:"ontology_url,omitempty"`

	// CacheDir is where fetched documents are cached so rebuilds work
	// offline. Default: "data"
	CacheDir string `yaml:"cache_dir,omitempty"`

	// FetchTimeout is the per-document fetch timeout.
	// Format: Go duration string. Default: 2m
	FetchTimeout string `yaml:"fetch_timeout,omitempty"`
}

// StoreConfig selects the persisted-index backend.
type StoreConfig struct {
	// Backend is one of "memory", "file", or "redis". Default: "memory"
	Backend string `yaml:"backend,omitempty"`

	// Path is the index file location for the file backend.
	// Default: "data/search_index.json"
	Path string `yaml:"path,omitempty"`

	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig holds redis connection settings for the redis store backend.
type RedisConfig struct {
	// URL is the connection string (e.g., "redis://localhost:6379").
	URL string `yaml:"url,omitempty"`

	// KeyPrefix namespaces all index keys. Default: "countermap"
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// RegistryConfig holds etcd registration settings for a serving instance.
type RegistryConfig struct {
	// Endpoints lists etcd endpoints (e.g., ["localhost:2379"]).
	Endpoints []string `yaml:"endpoints"`

	// Namespace prefixes all registration keys. Default: "countermap"
	Namespace string `yaml:"namespace,omitempty"`

	// TTL is the registration lease TTL in seconds. Default: 30
	TTL int `yaml:"ttl,omitempty"`

	// Endpoint is the address this instance advertises.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Default endpoints published by MITRE.
const (
	DefaultMappingsURL = "https://d3fend.mitre.org/api/ontology/inference/d3fend-full-mappings.json"
	DefaultOntologyURL = "https://d3fend.mitre.org/ontologies/d3fend.json"
)

// Load reads and parses a countermap.yaml file from the given path. If the
// path is a directory, it looks for countermap.yaml or countermap.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	configPath := path
	if info.IsDir() {
		yamlPath := filepath.Join(path, "countermap.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "countermap.yml")
			if _, err := os.Stat(ymlPath); err != nil {
				return nil, fmt.Errorf("no countermap.yaml or countermap.yml found in %s", path)
			}
			configPath = ymlPath
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with all defaults applied, suitable for
// single-binary runs without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Source.MappingsURL == "" {
		c.Source.MappingsURL = DefaultMappingsURL
	}
	if c.Source.OntologyURL == "" {
		c.Source.OntologyURL = DefaultOntologyURL
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = "data"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join("data", "search_index.json")
	}
	if c.Store.Redis.KeyPrefix == "" {
		c.Store.Redis.KeyPrefix = "countermap"
	}
	if c.ListLimit <= 0 {
		c.ListLimit = 500
	}
	if c.Registry != nil {
		if c.Registry.Namespace == "" {
			c.Registry.Namespace = "countermap"
		}
		if c.Registry.TTL <= 0 {
			c.Registry.TTL = 30
		}
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "file":
	case "redis":
		if c.Store.Redis.URL == "" {
			return fmt.Errorf("store backend %q requires redis.url", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file, or redis)", c.Store.Backend)
	}
	if c.Registry != nil && len(c.Registry.Endpoints) == 0 {
		return fmt.Errorf("registry requires at least one endpoint")
	}
	return nil
}

// GetFetchTimeout parses the fetch timeout string and returns a duration.
// Returns the default value if not set or invalid.
func (s *SourceConfig) GetFetchTimeout() time.Duration {
	if s == nil || s.FetchTimeout == "" {
		return 2 * time.Minute
	}
	d, err := time.ParseDuration(s.FetchTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}
