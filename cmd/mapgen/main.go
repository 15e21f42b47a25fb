// mapgen builds the ATT&CK → D3FEND lookup index from the MITRE mapping
// dump and persists it to the configured store.
//
// Usage:
//
//	mapgen [-config countermap.yaml] [-mappings mappings.json] [-ontology d3fend.json] [-offline]
//
// Without -mappings, the dump is fetched from the configured endpoint and
// cached; -offline skips fetching and uses the cache. A local file given
// via -mappings or -ontology is used as-is.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/countermap/countermap/config"
	"github.com/countermap/countermap/fetch"
	"github.com/countermap/countermap/ontology"
	"github.com/countermap/countermap/service"
	"github.com/countermap/countermap/store"
)

func main() {
	configPath := flag.String("config", "", "Path to countermap.yaml. Defaults apply when omitted.")
	mappingsFile := flag.String("mappings", "", "Local mappings document; skips fetching when set.")
	ontologyFile := flag.String("ontology", "", "Local secondary ontology document; skips fetching when set.")
	offline := flag.Bool("offline", false, "Use cached documents only, never fetch.")
	verbose := flag.Bool("v", false, "Verbose (debug) logging.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	fetcher := fetch.NewClient(fetch.Options{
		MappingsURL: cfg.Source.MappingsURL,
		OntologyURL: cfg.Source.OntologyURL,
		CacheDir:    cfg.Source.CacheDir,
		Timeout:     cfg.Source.GetFetchTimeout(),
		Logger:      logger,
	})

	svc, err := service.New(service.Options{
		Config:  cfg,
		Store:   st,
		Fetcher: fetcher,
		Logger:  logger,
		Progress: func(done, total int) {
			if total > 0 && done%5000 == 0 {
				logger.Debug("normalizing", "rows", done, "total", total)
			}
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx := context.Background()
	info, err := build(ctx, svc, fetcher, *mappingsFile, *ontologyFile, *offline)
	if err != nil {
		if ontology.IsFatal(err) {
			fmt.Fprintf(os.Stderr, "error: mapping document is malformed: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("mapgen: built index %s with %d techniques, %d countermeasures\n",
		info.ID, info.Techniques, info.Countermeasures)
}

// build selects the document source per flags and runs the rebuild.
func build(ctx context.Context, svc *service.Service, fetcher *fetch.Client, mappingsFile, ontologyFile string, offline bool) (service.BuildInfo, error) {
	if mappingsFile == "" && !offline {
		return svc.Rebuild(ctx)
	}

	var (
		raw []byte
		err error
	)
	if mappingsFile != "" {
		raw, err = os.ReadFile(mappingsFile)
		if err != nil {
			return service.BuildInfo{}, fmt.Errorf("failed to read mappings file: %w", err)
		}
	} else {
		raw, err = fetcher.CachedMappings()
		if err != nil {
			return service.BuildInfo{}, fmt.Errorf("no cached mappings document: %w", err)
		}
	}

	var enrichment []byte
	if ontologyFile != "" {
		enrichment, err = os.ReadFile(ontologyFile)
		if err != nil {
			return service.BuildInfo{}, fmt.Errorf("failed to read ontology file: %w", err)
		}
	} else if cached, err := fetcher.CachedOntology(); err == nil {
		enrichment = cached
	}

	return svc.RebuildFromRaw(ctx, raw, enrichment)
}
