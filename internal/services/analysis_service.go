// Package services orchestrates the analysis pipeline and owns session
// state. Each pipeline run is a pure function of (raw input, options);
// all mutable state lives in the session store.
package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"trafficlens/internal/config"
	"trafficlens/internal/dataprocessing"
	"trafficlens/pkg/contracts/domain"
)

// AnalyzeOptions carries the per-run pipeline options.
type AnalyzeOptions struct {
	// AnonymizeIP enables IP pseudonymization during enrichment.
	AnonymizeIP bool
	// Start and End bound the inclusive calendar-date filter; zero
	// values leave the corresponding side open.
	Start time.Time
	End   time.Time
	// TopN overrides the configured breakdown size when positive.
	TopN int
	// Progress receives line counts while a large log is parsed.
	Progress dataprocessing.ProgressFunc
}

// AnalysisResult bundles the enriched table with its dashboard report.
type AnalysisResult struct {
	Table  *domain.RecordSet
	Report *domain.DashboardReport
}

// AnalysisService runs the parse, normalize, enrich and aggregate stages.
type AnalysisService struct {
	logger *slog.Logger
	tracer trace.Tracer
	cfg    config.PipelineConfig
	sem    *semaphore.Weighted

	uploadsTotal     metric.Int64Counter
	rowsDropped      metric.Int64Counter
	linesRead        metric.Int64Counter
	linesMatched     metric.Int64Counter
	pipelineDuration metric.Float64Histogram
}

// NewAnalysisService creates the service with its concurrency bound and
// instruments.
func NewAnalysisService(logger *slog.Logger, tracer trace.Tracer, meter metric.Meter, cfg config.PipelineConfig) (*AnalysisService, error) {
	uploads, err := meter.Int64Counter("trafficlens.uploads.total",
		metric.WithDescription("Number of analyzed uploads"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("trafficlens.rows.dropped",
		metric.WithDescription("Rows dropped during normalization"))
	if err != nil {
		return nil, err
	}
	read, err := meter.Int64Counter("trafficlens.lines.read",
		metric.WithDescription("Log lines consumed by the parser"))
	if err != nil {
		return nil, err
	}
	matched, err := meter.Int64Counter("trafficlens.lines.matched",
		metric.WithDescription("Log lines matching the access log grammar"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("trafficlens.pipeline.duration",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &AnalysisService{
		logger:           logger.With(slog.String("component", "analysis_service")),
		tracer:           tracer,
		cfg:              cfg,
		sem:              semaphore.NewWeighted(cfg.MaxConcurrentRuns),
		uploadsTotal:     uploads,
		rowsDropped:      dropped,
		linesRead:        read,
		linesMatched:     matched,
		pipelineDuration: duration,
	}, nil
}

// Analyze runs the full pipeline over one uploaded file. Concurrent runs
// are bounded; within a run the pipeline is single threaded and owns its
// data exclusively from parse to aggregation.
func (s *AnalysisService) Analyze(ctx context.Context, filename string, data []byte, opts AnalyzeOptions) (*AnalysisResult, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pipeline.analyze",
		trace.WithAttributes(
			attribute.String("upload.filename", filename),
			attribute.Int("upload.bytes", len(data)),
		))
	defer span.End()

	// The progress callback carries cumulative counts; record deltas so
	// the counters stay additive across runs.
	var prevRead, prevMatched int64
	parseOpts := &dataprocessing.ParseOptions{
		ChunkSize: s.cfg.ChunkSize,
		Logger:    s.logger,
		Progress: func(linesRead, linesMatched int64) {
			s.linesRead.Add(ctx, linesRead-prevRead)
			s.linesMatched.Add(ctx, linesMatched-prevMatched)
			prevRead, prevMatched = linesRead, linesMatched
			if opts.Progress != nil {
				opts.Progress(linesRead, linesMatched)
			}
		},
	}

	_, ingestSpan := s.tracer.Start(ctx, "pipeline.ingest")
	raw, err := dataprocessing.Ingest(filename, data, parseOpts)
	ingestSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	_, normSpan := s.tracer.Start(ctx, "pipeline.normalize")
	table, err := dataprocessing.Normalize(raw, s.logger)
	normSpan.End()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	droppedRows := int64(len(raw.Rows) - table.Len())
	// Release the raw table before enrichment; the refined representation
	// supersedes it.
	raw = nil

	_, enrichSpan := s.tracer.Start(ctx, "pipeline.enrich")
	dataprocessing.Enrich(table, dataprocessing.EnrichOptions{AnonymizeIP: opts.AnonymizeIP})
	enrichSpan.End()

	if !opts.Start.IsZero() || !opts.End.IsZero() {
		table = dataprocessing.FilterByDate(table, opts.Start, opts.End)
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = s.cfg.TopN
	}
	_, aggSpan := s.tracer.Start(ctx, "pipeline.aggregate")
	report := dataprocessing.BuildDashboard(table, topN)
	aggSpan.End()

	elapsed := time.Since(start)
	s.uploadsTotal.Add(ctx, 1)
	s.rowsDropped.Add(ctx, droppedRows)
	s.pipelineDuration.Record(ctx, elapsed.Seconds())

	s.logger.InfoContext(ctx, "analysis complete",
		slog.String("filename", filename),
		slog.String("kind", string(table.Kind)),
		slog.Int("rows", table.Len()),
		slog.Int64("rows_dropped", droppedRows),
		slog.Duration("duration", elapsed))

	return &AnalysisResult{Table: table, Report: report}, nil
}

// AnalyzeSample runs the pipeline over the built-in sample dataset.
func (s *AnalysisService) AnalyzeSample(ctx context.Context, opts AnalyzeOptions) (*AnalysisResult, error) {
	return s.Analyze(ctx, dataprocessing.SampleFilename, []byte(dataprocessing.SampleCSV), opts)
}

// Aggregate computes a single aggregate over an already analyzed table.
func (s *AnalysisService) Aggregate(ctx context.Context, table *domain.RecordSet, kind domain.AggregateKind, params domain.AggregateParams, start, end time.Time) (any, error) {
	if !start.IsZero() || !end.IsZero() {
		table = dataprocessing.FilterByDate(table, start, end)
	}
	return dataprocessing.Aggregate(table, kind, params)
}
