package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/countermap/countermap/config"
	"github.com/countermap/countermap/fetch"
	"github.com/countermap/countermap/index"
	"github.com/countermap/countermap/ontology"
	"github.com/countermap/countermap/registry"
	"github.com/countermap/countermap/store"
)

// instrumentationName identifies this package's tracer and meter.
const instrumentationName = "github.com/countermap/countermap/service"

// ErrIndexNotReady indicates that no index has been built or loaded yet.
var ErrIndexNotReady = errors.New("index not ready")

// BuildInfo describes one successful index build.
type BuildInfo struct {
	// ID is a unique identifier for this build.
	ID string `json:"id"`

	// BuiltAt is when the build completed.
	BuiltAt time.Time `json:"built_at"`

	// Techniques is the number of indexed techniques.
	Techniques int `json:"techniques"`

	// Countermeasures is the total countermeasure count across the index.
	Countermeasures int `json:"countermeasures"`
}

// Options configures a Service.
type Options struct {
	// Config supplies limits and source settings. Defaults to
	// config.Default().
	Config *config.Config

	// Store persists built indexes. Defaults to an in-memory store.
	Store store.Store

	// Fetcher retrieves the raw documents. Required for Rebuild; services
	// that only load a prebuilt index may leave it nil.
	Fetcher *fetch.Client

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger

	// TracerProvider overrides the global OpenTelemetry tracer provider.
	TracerProvider trace.TracerProvider

	// MeterProvider overrides the global OpenTelemetry meter provider.
	MeterProvider metric.MeterProvider

	// Progress receives normalization progress during rebuilds.
	Progress ontology.ProgressFunc

	// Registry self-registers this instance in etcd when set. Nil
	// disables registration; the service still works, it just is not
	// discoverable.
	Registry *registry.Client
}

// Service builds, persists, and queries the lookup index.
//
// All query methods are safe for unbounded concurrent use; the index they
// read is immutable and swapped atomically by rebuilds.
type Service struct {
	cfg      *config.Config
	store    store.Store
	fetcher  *fetch.Client
	logger   *slog.Logger
	tracer   trace.Tracer
	metrics  *serviceMetrics
	progress ontology.ProgressFunc
	reg      *registry.Client

	mu      sync.RWMutex
	current *index.Index
	build   BuildInfo
}

// New creates a Service from the given options.
func New(opts Options) (*Service, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := opts.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	metrics, err := newServiceMetrics(mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:      opts.Config,
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		logger:   opts.Logger,
		tracer:   tp.Tracer(instrumentationName),
		metrics:  metrics,
		progress: opts.Progress,
		reg:      opts.Registry,
	}, nil
}

// RegisterInstance announces this instance in the configured registry.
// No-op without one. The returned instance ID identifies the registration.
func (s *Service) RegisterInstance(ctx context.Context, endpoint, version string) (string, error) {
	if s.reg == nil {
		return "", nil
	}

	s.mu.RLock()
	build := s.build
	s.mu.RUnlock()

	info := registry.InstanceInfo{
		Name:       "countermap",
		Version:    version,
		InstanceID: uuid.NewString(),
		Endpoint:   endpoint,
		BuildID:    build.ID,
		Techniques: build.Techniques,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.reg.Register(ctx, info); err != nil {
		return "", err
	}
	return info.InstanceID, nil
}

// LoadPersisted builds the serving index from the configured store. Use it
// at startup to serve a prebuilt index without touching the raw documents.
func (s *Service) LoadPersisted(ctx context.Context) (BuildInfo, error) {
	techniques, err := s.store.Load(ctx)
	if err != nil {
		return BuildInfo{}, fmt.Errorf("failed to load persisted index: %w", err)
	}
	info := s.swap(index.New(techniques))
	s.logger.Info("loaded persisted index",
		"build_id", info.ID,
		"techniques", info.Techniques)
	return info, nil
}

// Rebuild fetches the raw documents, normalizes them, persists the result,
// and swaps in the new index. On any error the current serving index stays
// in place. A fetched mappings document that fails to arrive falls back to
// the on-disk cache before giving up.
func (s *Service) Rebuild(ctx context.Context) (BuildInfo, error) {
	if s.fetcher == nil {
		return BuildInfo{}, errors.New("no fetcher configured")
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "countermap.rebuild")
	defer span.End()

	raw, err := s.fetcher.FetchMappings(ctx)
	if err != nil {
		s.logger.Warn("mappings fetch failed, trying cache", "error", err)
		raw, err = s.fetcher.CachedMappings()
		if err != nil {
			span.SetStatus(codes.Error, "no mappings document")
			return BuildInfo{}, fmt.Errorf("no mappings document available: %w", err)
		}
	}

	// Enrichment is best-effort end to end: no document, no canonical IDs.
	enrichment, err := s.fetcher.FetchOntology(ctx)
	if err != nil {
		s.logger.Warn("ontology fetch failed, trying cache", "error", err)
		if enrichment, err = s.fetcher.CachedOntology(); err != nil {
			s.logger.Warn("rebuilding without countermeasure enrichment",
				"error", fmt.Errorf("%w: %v", ontology.ErrEnrichmentUnavailable, err))
			enrichment = nil
		}
	}

	info, err := s.RebuildFromRaw(ctx, raw, enrichment)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return BuildInfo{}, err
	}

	s.metrics.rebuildDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	span.SetAttributes(
		attribute.String("build.id", info.ID),
		attribute.Int("build.techniques", info.Techniques),
	)
	return info, nil
}

// RebuildFromRaw normalizes an already-fetched mapping document (and
// optional enrichment document), persists the result, and swaps in the new
// index. This is the build entry point for callers that manage their own
// document retrieval.
func (s *Service) RebuildFromRaw(ctx context.Context, raw, enrichment []byte) (BuildInfo, error) {
	opts := []ontology.Option{ontology.WithLogger(s.logger)}
	if enrichment != nil {
		opts = append(opts, ontology.WithEnrichment(enrichment))
	}
	if s.progress != nil {
		opts = append(opts, ontology.WithProgress(s.progress))
	}

	techniques, err := ontology.Normalize(raw, opts...)
	if err != nil {
		// The previous index keeps serving; a malformed dump must never
		// truncate it.
		s.logger.Error("normalization failed, keeping current index", "error", err)
		return BuildInfo{}, err
	}

	if err := s.store.Save(ctx, techniques); err != nil {
		s.logger.Error("failed to persist index, keeping current index", "error", err)
		return BuildInfo{}, err
	}

	info := s.swap(index.New(techniques))
	s.logger.Info("index rebuilt",
		"build_id", info.ID,
		"techniques", info.Techniques,
		"countermeasures", info.Countermeasures)
	return info, nil
}

// swap atomically replaces the serving index.
func (s *Service) swap(ix *index.Index) BuildInfo {
	stats := ix.Stats()
	info := BuildInfo{
		ID:              uuid.NewString(),
		BuiltAt:         time.Now().UTC(),
		Techniques:      stats.Techniques,
		Countermeasures: stats.Countermeasures,
	}

	s.mu.Lock()
	s.current = ix
	s.build = info
	s.mu.Unlock()

	// Registered instances advertise which build they serve.
	if s.reg != nil {
		if err := s.reg.UpdateBuild(context.Background(), info.ID, info.Techniques); err != nil {
			s.logger.Warn("failed to update registry build metadata", "error", err)
		}
	}
	return info
}

// snapshot returns the current index, or nil before the first build.
func (s *Service) snapshot() *index.Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Search answers a lookup query against the current index and returns the
// HTML-escaped representation for transport. Fails with ErrIndexNotReady
// before the first successful build or load.
func (s *Service) Search(ctx context.Context, query string) (*index.SearchResult, error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "countermap.search",
		trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	ix := s.snapshot()
	if ix == nil {
		span.SetStatus(codes.Error, "index not ready")
		return nil, ErrIndexNotReady
	}

	result, err := ix.Search(query)
	outcome := "hit"
	switch {
	case errors.Is(err, index.ErrEmptyQuery):
		outcome = "empty"
	case errors.Is(err, index.ErrNoResults):
		outcome = "miss"
	case err != nil:
		outcome = "error"
	}
	s.metrics.searchCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
	s.metrics.searchDuration.Record(ctx, float64(time.Since(start).Milliseconds()))

	if err != nil {
		span.SetAttributes(attribute.String("outcome", outcome))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("matches", len(result.Techniques)),
	)
	return result.Sanitized(), nil
}

// ListTechniques returns up to limit {id, name} rows matching the filter.
// A non-positive limit uses the configured default.
func (s *Service) ListTechniques(ctx context.Context, filter string, limit int) ([]index.TechniqueSummary, error) {
	_, span := s.tracer.Start(ctx, "countermap.list")
	defer span.End()

	ix := s.snapshot()
	if ix == nil {
		return nil, ErrIndexNotReady
	}
	if limit <= 0 {
		limit = s.cfg.ListLimit
	}
	return ix.ListTechniques(filter, limit), nil
}

// Stats returns index contents and the build that produced them.
func (s *Service) Stats() (index.Stats, BuildInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return index.Stats{}, BuildInfo{}, ErrIndexNotReady
	}
	return s.current.Stats(), s.build, nil
}

// Close releases the underlying store.
func (s *Service) Close() error {
	return s.store.Close()
}
