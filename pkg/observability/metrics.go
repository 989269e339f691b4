package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesTotal     = "blame.files.total"
	metricLinesTotal     = "blame.lines.total"
	metricFileDuration   = "blame.file.duration.seconds"
	metricLookupsTotal   = "blame.identity.lookups.total"
	metricRequestsTotal  = "blame.requests.total"
	metricRequestLatency = "blame.request.duration.seconds"
	metricErrorsTotal    = "blame.errors.total"

	attrStatus  = "status"
	attrOutcome = "outcome"
	attrOp      = "op"

	statusError = "error"
)

// File statuses besides the failure kinds of the blame package.
const (
	FileStatusOK    = "ok"
	FileStatusEmpty = "empty"
)

// Lookup outcomes.
const (
	LookupHit         = "hit"
	LookupMiss        = "miss"
	LookupUnavailable = "unavailable"
)

// durationBucketBoundaries covers 1ms to 120s, the range of a single file blame.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// BlameMetrics holds the instruments of an aggregation run. All methods are
// no-ops on a nil receiver.
type BlameMetrics struct {
	filesTotal   metric.Int64Counter
	linesTotal   metric.Int64Counter
	fileDuration metric.Float64Histogram
	lookupsTotal metric.Int64Counter
}

// NewBlameMetrics creates blame instruments from the given meter.
func NewBlameMetrics(mt metric.Meter) (*BlameMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Files blamed, by status"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	lines, err := mt.Int64Counter(metricLinesTotal,
		metric.WithDescription("Lines attributed to a contributor"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLinesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricFileDuration,
		metric.WithDescription("Per-file blame duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFileDuration, err)
	}

	lookups, err := mt.Int64Counter(metricLookupsTotal,
		metric.WithDescription("External identity lookups, by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLookupsTotal, err)
	}

	return &BlameMetrics{
		filesTotal:   files,
		linesTotal:   lines,
		fileDuration: duration,
		lookupsTotal: lookups,
	}, nil
}

// RecordFile records one blamed file.
func (bm *BlameMetrics) RecordFile(ctx context.Context, status string, lines int, duration time.Duration) {
	if bm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	bm.filesTotal.Add(ctx, 1, attrs)
	bm.fileDuration.Record(ctx, duration.Seconds(), attrs)

	if lines > 0 {
		bm.linesTotal.Add(ctx, int64(lines))
	}
}

// RecordLookup records one external identity lookup.
func (bm *BlameMetrics) RecordLookup(ctx context.Context, outcome string) {
	if bm == nil {
		return
	}

	bm.lookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOutcome, outcome)))
}

// REDMetrics holds the Rate, Error, Duration instruments of served requests.
type REDMetrics struct {
	requestsTotal  metric.Int64Counter
	requestLatency metric.Float64Histogram
	errorsTotal    metric.Int64Counter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	reqTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	reqLatency, err := mt.Float64Histogram(metricRequestLatency,
		metric.WithDescription("Request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestLatency, err)
	}

	errTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of failed requests"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	return &REDMetrics{
		requestsTotal:  reqTotal,
		requestLatency: reqLatency,
		errorsTotal:    errTotal,
	}, nil
}

// RecordRequest records a completed request. Safe on a nil receiver.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	if rm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestLatency.Record(ctx, duration.Seconds(), attrs)

	if status == statusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}
