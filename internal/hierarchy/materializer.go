package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"teamtree/internal/logging"
	"teamtree/internal/metrics"
	"teamtree/internal/tracing"
)

var tracer = tracing.Tracer("teamtree/hierarchy")

// Materializer is the only writer of the Cache. It rebuilds every record
// from the Source on each refresh.
type Materializer struct {
	source  Source
	cache   Cache
	metrics *metrics.Metrics
	group   singleflight.Group
	// mu serializes load and store so an older snapshot never overwrites
	// a newer one.
	mu sync.Mutex
}

// NewMaterializer wires a materializer. m may be nil.
func NewMaterializer(source Source, cache Cache, m *metrics.Metrics) *Materializer {
	return &Materializer{source: source, cache: cache, metrics: m}
}

// Exists reports whether the cache is populated.
func (m *Materializer) Exists(ctx context.Context) (bool, error) {
	return m.cache.Exists(ctx)
}

// Refresh recomputes every record and stores it, creating the cache when it
// does not exist yet. A refresh always loads teams after Refresh was
// called; callers that arrive before a running rebuild has loaded share it.
// A cycle in the live data fails the refresh and leaves the cache as it
// was. Cancelling ctx abandons the wait, not the shared rebuild.
func (m *Materializer) Refresh(ctx context.Context) error {
	flight := context.WithoutCancel(ctx)
	ch := m.group.DoChan("refresh", func() (any, error) {
		return nil, m.refresh(flight)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Materializer) refresh(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Later callers may have written after this point; they get a new flight.
	m.group.Forget("refresh")

	ctx, span := tracer.Start(ctx, "Materializer.Refresh")
	defer span.End()
	logger := logging.FromContext(ctx)
	start := time.Now()

	records, err := m.build(ctx)
	if err == nil {
		err = m.store(ctx, records)
	}
	m.metrics.ObserveRefresh(time.Since(start), len(records), err)
	span.SetAttributes(attribute.Int("teams", len(records)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		logger.Error("tree view refresh failed", "error", err)
		return err
	}
	logger.Info("tree view refreshed", "teams", len(records), "duration", time.Since(start))
	return nil
}

func (m *Materializer) build(ctx context.Context) ([]Record, error) {
	nodes, err := m.source.Nodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading teams: %w", err)
	}
	records, err := Materialize(nodes)
	if err != nil {
		return nil, fmt.Errorf("materializing teams: %w", err)
	}
	return records, nil
}

func (m *Materializer) store(ctx context.Context, records []Record) error {
	exists, err := m.cache.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := m.cache.Create(ctx, records); err != nil {
			return fmt.Errorf("creating tree view: %w", err)
		}
		return nil
	}
	if err := m.cache.Replace(ctx, records); err != nil {
		// Dropped between the check and the replace.
		if errors.Is(err, ErrCacheMissing) {
			_, err = m.cache.Create(ctx, records)
		}
		if err != nil {
			return fmt.Errorf("replacing tree view: %w", err)
		}
	}
	return nil
}

// Create builds the cache only if it does not exist; an existing cache is
// left as is.
func (m *Materializer) Create(ctx context.Context) (created bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exists, err := m.cache.Exists(ctx)
	if err != nil || exists {
		return false, err
	}
	records, err := m.build(ctx)
	if err != nil {
		return false, err
	}
	return m.cache.Create(ctx, records)
}

// Drop removes the cache. Dropping a missing cache is not an error.
func (m *Materializer) Drop(ctx context.Context) error {
	return m.cache.Drop(ctx)
}

// Records returns cached records, building the cache first if needed.
func (m *Materializer) Records(ctx context.Context, limit int) ([]Record, error) {
	var records []Record
	err := m.withCache(ctx, func() (err error) {
		records, err = m.cache.Records(ctx, limit)
		return err
	})
	return records, err
}

// Statistics aggregates the cache, building it first if needed.
func (m *Materializer) Statistics(ctx context.Context) (*Statistics, error) {
	var stats *Statistics
	err := m.withCache(ctx, func() (err error) {
		stats, err = m.cache.Statistics(ctx)
		return err
	})
	return stats, err
}

// withCache runs read and, if the cache turns out to be missing, refreshes
// once and runs it again.
func (m *Materializer) withCache(ctx context.Context, read func() error) error {
	err := read()
	if !errors.Is(err, ErrCacheMissing) {
		return err
	}
	logging.FromContext(ctx).Debug("tree view missing, rebuilding")
	m.metrics.ObserveLazyRebuild()
	if err := m.Refresh(ctx); err != nil {
		return err
	}
	return read()
}
