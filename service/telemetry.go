package service

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// serviceMetrics holds the OpenTelemetry instruments for the lookup
// service. Created once in New and reused for every query and rebuild.
type serviceMetrics struct {
	// searchCounter increments for each search, tagged with outcome.
	searchCounter metric.Int64Counter

	// searchDuration records search latency in milliseconds.
	searchDuration metric.Float64Histogram

	// rebuildDuration records index rebuild time in milliseconds.
	rebuildDuration metric.Float64Histogram
}

func newServiceMetrics(meter metric.Meter) (*serviceMetrics, error) {
	m := &serviceMetrics{}
	var err error

	m.searchCounter, err = meter.Int64Counter(
		"countermap.search.count",
		metric.WithDescription("Number of lookup queries served"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search counter: %w", err)
	}

	m.searchDuration, err = meter.Float64Histogram(
		"countermap.search.duration",
		metric.WithDescription("Lookup query latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	m.rebuildDuration, err = meter.Float64Histogram(
		"countermap.rebuild.duration",
		metric.WithDescription("Index rebuild time in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rebuild duration histogram: %w", err)
	}

	return m, nil
}
