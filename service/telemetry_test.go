package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/countermap/countermap/store"
)

func TestServiceTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	svc, err := New(Options{Store: store.NewMemoryStore(), TracerProvider: tp})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.RebuildFromRaw(ctx, []byte(validDoc), nil)
	require.NoError(t, err)

	_, err = svc.Search(ctx, "T1566")
	require.NoError(t, err)

	var search sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if s.Name() == "countermap.search" {
			search = s
		}
	}
	require.NotNil(t, search, "expected a countermap.search span")

	outcome := ""
	for _, kv := range search.Attributes() {
		if kv.Key == "outcome" {
			outcome = kv.Value.AsString()
		}
	}
	assert.Equal(t, "hit", outcome)
}

func TestServiceTracingMiss(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	svc, err := New(Options{Store: store.NewMemoryStore(), TracerProvider: tp})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.RebuildFromRaw(ctx, []byte(validDoc), nil)
	require.NoError(t, err)

	_, err = svc.Search(ctx, "T9999")
	require.Error(t, err)

	outcomes := []string{}
	for _, s := range recorder.Ended() {
		if s.Name() != "countermap.search" {
			continue
		}
		for _, kv := range s.Attributes() {
			if kv.Key == "outcome" {
				outcomes = append(outcomes, kv.Value.AsString())
			}
		}
	}
	assert.Contains(t, outcomes, "miss")
}

func TestNewServiceMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	metrics, err := newServiceMetrics(meter)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	assert.NotNil(t, metrics.searchCounter)
	assert.NotNil(t, metrics.searchDuration)
	assert.NotNil(t, metrics.rebuildDuration)
}
