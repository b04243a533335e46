// Command analyzer runs the traffic analysis pipeline over a local log
// or CSV file and prints the dashboard report. Without -file it analyzes
// the built-in sample dataset.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"trafficlens/internal/config"
	"trafficlens/internal/exporter"
	"trafficlens/internal/infrastructure"
	"trafficlens/internal/services"
	"trafficlens/pkg/contracts/domain"
)

func main() {
	var (
		file      = flag.String("file", "", "log, csv or xlsx file to analyze (default: built-in sample)")
		anonymize = flag.Bool("anonymize", false, "pseudonymize IP addresses")
		start     = flag.String("start", "", "inclusive start date, YYYY-MM-DD")
		end       = flag.String("end", "", "inclusive end date, YYYY-MM-DD")
		top       = flag.Int("top", 5, "breakdown size for top-N sections")
		out       = flag.String("out", "", "write the processed table as CSV to this path")
		chunk     = flag.Int("chunk", 5000, "parser chunk size in lines")
		verbose   = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{Level: level, Output: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if err := run(logger, *file, *anonymize, *start, *end, *top, *out, *chunk); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, file string, anonymize bool, start, end string, top int, out string, chunk int) error {
	otelProviders, err := infrastructure.InitializeOTel(config.TelemetryConfig{}, logger)
	if err != nil {
		return err
	}

	svc, err := services.NewAnalysisService(logger, otelProviders.Tracer, otelProviders.Meter, config.PipelineConfig{
		ChunkSize:         chunk,
		MaxUploadBytes:    1 << 30,
		TopN:              top,
		MaxConcurrentRuns: 1,
	})
	if err != nil {
		return err
	}

	opts := services.AnalyzeOptions{AnonymizeIP: anonymize, TopN: top}
	if start != "" {
		if opts.Start, err = time.Parse("2006-01-02", start); err != nil {
			return fmt.Errorf("invalid -start: %w", err)
		}
	}
	if end != "" {
		if opts.End, err = time.Parse("2006-01-02", end); err != nil {
			return fmt.Errorf("invalid -end: %w", err)
		}
	}

	ctx := context.Background()
	var result *services.AnalysisResult
	if file == "" {
		fmt.Println("No file given, analyzing the built-in sample dataset.")
		result, err = svc.AnalyzeSample(ctx, opts)
	} else {
		var data []byte
		if data, err = os.ReadFile(file); err != nil {
			return err
		}
		result, err = svc.Analyze(ctx, file, data, opts)
	}
	if err != nil {
		return err
	}

	printReport(result.Report)

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w := exporter.NewCSVWriter(logger)
		if err := w.WriteRecordSet(f, result.Table, exporter.WriteOptions{BOMPrefix: true}); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		fmt.Printf("\nProcessed table written to %s (%d rows)\n", out, result.Table.Len())
	}
	return nil
}

func printReport(r *domain.DashboardReport) {
	fmt.Printf("\nDataset: %s, columns: %v\n", r.Kind, r.Columns)
	fmt.Printf("\nKey metrics\n")
	fmt.Printf("  total requests:  %d\n", r.Summary.TotalRequests)
	fmt.Printf("  unique visitors: %d\n", r.Summary.UniqueVisitors)
	fmt.Printf("  error rate:      %.2f%% (4xx %.2f%%, 5xx %.2f%%)\n",
		r.Summary.ErrorRateCombined, r.Summary.ErrorRate4xx, r.Summary.ErrorRate5xx)
	fmt.Printf("  data transferred: %.2f GB\n", float64(r.Summary.TotalDataSize)/(1<<30))

	fmt.Printf("\nTraffic by hour\n")
	for _, b := range r.Hourly {
		if b.Requests > 0 {
			fmt.Printf("  %02d:00  %d\n", b.Hour, b.Requests)
		}
	}

	printTop("Top pages", r.TopPages)
	printTop("Top 404 pages", r.Top404Pages)
	printTop("Top referrers", r.TopReferrers)
	printTop("Potential hotlinking referrers", r.HotlinkReferrers)

	if len(r.Daily) > 0 {
		fmt.Printf("\nDaily traffic\n")
		for _, d := range r.Daily {
			fmt.Printf("  %s  %d\n", d.Date, d.Requests)
		}
	}

	if r.Anomalies != nil && len(r.Anomalies.Flagged) > 0 {
		fmt.Printf("\nAnomalous hours (above mean+2σ threshold %.1f)\n", r.Anomalies.Threshold)
		for _, a := range r.Anomalies.Flagged {
			fmt.Printf("  %02d:00  %d\n", a.Hour, a.Requests)
		}
	}
}

func printTop(title string, entries []domain.TopEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	for _, e := range entries {
		fmt.Printf("  %-40s %d\n", e.Value, e.Requests)
	}
}
