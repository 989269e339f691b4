package identity

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/blame/pkg/observability"
)

// MeteredLookup records the outcome of every call to an inner Lookup.
type MeteredLookup struct {
	inner   Lookup
	metrics *observability.BlameMetrics
}

// NewMeteredLookup wraps inner. A nil metrics disables recording.
func NewMeteredLookup(inner Lookup, metrics *observability.BlameMetrics) *MeteredLookup {
	return &MeteredLookup{inner: inner, metrics: metrics}
}

// Lookup implements Lookup.
func (m *MeteredLookup) Lookup(ctx context.Context, subject Subject) (string, bool, error) {
	username, found, err := m.inner.Lookup(ctx, subject)

	switch {
	case err != nil && errors.Is(err, ErrLookupUnavailable):
		m.metrics.RecordLookup(ctx, observability.LookupUnavailable)
	case err != nil:
	case found:
		m.metrics.RecordLookup(ctx, observability.LookupHit)
	default:
		m.metrics.RecordLookup(ctx, observability.LookupMiss)
	}

	return username, found, err
}
