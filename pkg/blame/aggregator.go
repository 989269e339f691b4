package blame

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/blame/pkg/identity"
	"github.com/Sumatoshi-tech/blame/pkg/observability"
)

// DefaultTimeout bounds a single file's blame.
const DefaultTimeout = 30 * time.Second

// Config configures an Aggregator. Zero-value fields use defaults.
type Config struct {
	// Workers bounds the number of files blamed concurrently. Zero uses the CPU count.
	Workers int
	// Timeout bounds each file. Zero uses DefaultTimeout.
	Timeout time.Duration
	// Key maps raw identities to grouping keys. Nil uses identity.Normalize.
	Key KeyFunc
	// Logger receives per-file warnings. Nil uses slog.Default().
	Logger *slog.Logger
	// Tracer records aggregation spans. Nil disables tracing.
	Tracer trace.Tracer
	// Metrics records per-file outcomes. Nil disables metrics.
	Metrics *observability.BlameMetrics
}

// Result is the outcome of an aggregation run.
type Result struct {
	Ranking Ranking
	// Files counts the files that contributed at least one line.
	Files int
	// Empty lists tracked files without lines.
	Empty []string
	// Failures lists the files excluded from the ranking, in input order.
	Failures []*FileFailure
}

// Aggregator blames files concurrently and folds their records into a ranking.
type Aggregator struct {
	source  Source
	workers int
	timeout time.Duration
	key     KeyFunc
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.BlameMetrics
}

// NewAggregator creates an Aggregator reading from source.
func NewAggregator(source Source, cfg Config) *Aggregator {
	agg := &Aggregator{
		source:  source,
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		key:     cfg.Key,
		logger:  cfg.Logger,
		tracer:  cfg.Tracer,
		metrics: cfg.Metrics,
	}

	if agg.workers <= 0 {
		agg.workers = runtime.NumCPU()
	}

	if agg.timeout <= 0 {
		agg.timeout = DefaultTimeout
	}

	if agg.key == nil {
		agg.key = identity.Normalize
	}

	if agg.logger == nil {
		agg.logger = slog.Default()
	}

	if agg.tracer == nil {
		agg.tracer = nooptrace.NewTracerProvider().Tracer("blame")
	}

	return agg
}

// outcome is what one file contributes to a run.
type outcome struct {
	path    string
	table   *Table
	empty   bool
	failure *FileFailure
}

// Run blames every file and returns the merged ranking. Each file is folded
// into its own table on a bounded worker pool; tables of files that failed are
// dropped, the rest are merged in input order. Cancelling ctx aborts
// outstanding blames and Run returns the context error without a ranking.
func (a *Aggregator) Run(ctx context.Context, files []string) (Result, error) {
	ctx, span := a.tracer.Start(ctx, "blame.aggregate",
		trace.WithAttributes(attribute.Int("blame.files", len(files)), attribute.Int("blame.workers", a.workers)))
	defer span.End()

	outcomes := make([]outcome, len(files))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(a.workers)

	for i, path := range files {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			res, err := a.blameFile(groupCtx, path)
			if err != nil {
				return err
			}

			outcomes[i] = res

			return nil
		})
	}

	err := group.Wait()
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		span.SetStatus(codes.Error, "cancelled")

		return Result{}, fmt.Errorf("aggregate: %w", err)
	}

	result := collect(outcomes)

	span.SetAttributes(
		attribute.Int("blame.contributors", len(result.Ranking)),
		attribute.Int("blame.failures", len(result.Failures)),
	)

	return result, nil
}

// blameFile folds one file under its own timeout. It only returns an error
// when the run itself is cancelled; file problems become the outcome.
func (a *Aggregator) blameFile(ctx context.Context, path string) (outcome, error) {
	fileCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	fileCtx, span := a.tracer.Start(fileCtx, "blame.file", trace.WithAttributes(attribute.String("blame.path", path)))
	defer span.End()

	start := time.Now()
	res := foldStream(path, a.source.Blame(fileCtx, path), a.key)

	if ctx.Err() != nil {
		return outcome{}, ctx.Err()
	}

	if res.failure != nil && errors.Is(fileCtx.Err(), context.DeadlineExceeded) {
		res.failure.Err = fmt.Errorf("%w after %s", ErrTimeout, a.timeout)
	}

	a.observe(ctx, path, res, time.Since(start))

	if res.failure != nil {
		span.SetStatus(codes.Error, res.failure.Err.Error())
	}

	return res, nil
}

func (a *Aggregator) observe(ctx context.Context, path string, res outcome, elapsed time.Duration) {
	switch {
	case res.failure != nil:
		a.logger.WarnContext(ctx, "skipping file",
			"path", path, "kind", string(res.failure.Kind()), "error", res.failure.Err)
		a.metrics.RecordFile(ctx, string(res.failure.Kind()), 0, elapsed)
	case res.empty:
		a.logger.DebugContext(ctx, "empty file", "path", path)
		a.metrics.RecordFile(ctx, observability.FileStatusEmpty, 0, elapsed)
	default:
		a.logger.DebugContext(ctx, "blamed file", "path", path, "lines", res.table.Records(), "elapsed", elapsed)
		a.metrics.RecordFile(ctx, observability.FileStatusOK, res.table.Records(), elapsed)
	}
}

// foldStream folds a single file's records into a fresh table.
func foldStream(path string, records iter.Seq2[Record, error], key KeyFunc) outcome {
	table := NewTable()

	err := Fold(table, records, key)

	switch {
	case errors.Is(err, ErrEmptyFile):
		return outcome{path: path, empty: true}
	case err != nil:
		return outcome{path: path, failure: &FileFailure{Path: path, Err: err}}
	case table.Records() == 0:
		return outcome{path: path, empty: true}
	default:
		return outcome{path: path, table: table}
	}
}

func collect(outcomes []outcome) Result {
	merged := NewTable()

	var result Result

	for i := range outcomes {
		res := outcomes[i]

		switch {
		case res.failure != nil:
			result.Failures = append(result.Failures, res.failure)
		case res.empty:
			result.Empty = append(result.Empty, res.path)
		default:
			merged.Merge(res.table)
			result.Files++
		}
	}

	result.Ranking = merged.Rank()

	return result
}

// Aggregate sequentially folds (path, records) pairs into a ranking. It is
// the single-threaded form of Aggregator.Run over already opened streams.
func Aggregate(streams iter.Seq2[string, iter.Seq2[Record, error]], key KeyFunc) Result {
	if key == nil {
		key = identity.Normalize
	}

	var outcomes []outcome

	for path, records := range streams {
		outcomes = append(outcomes, foldStream(path, records, key))
	}

	return collect(outcomes)
}
