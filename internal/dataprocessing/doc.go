// Package dataprocessing implements the traffic analysis pipeline, from
// raw uploaded bytes to the aggregate structures the presentation layer
// renders.
//
// # Architecture
//
// The package is organized into four stages:
//
// 1. Ingest: routes bytes by extension to the access log grammar parser,
// the CSV reader or the xlsx reader, producing a raw string table
// 2. Normalizer: reconciles heterogeneous input shapes into the canonical
// record set, parsing timestamps and coercing numeric columns
// 3. Features: derives hour_of_day, day_of_week, status_category and
// browser columns, with optional IP pseudonymization
// 4. Analytics: computes summaries, histograms, top-N breakdowns, the
// traffic heatmap and mean+2σ hourly anomaly flags
//
// # Data Flow
//
//	bytes → Ingest → RawTable → Normalize → RecordSet → Enrich → BuildDashboard
//
// # Error Handling
//
// Input rejection (binary content, no timestamp column, zero matching log
// lines) is terminal and surfaces as a sentinel error. Row-level defects
// are absorbed where they are detected: non-matching lines are skipped,
// rows without a parseable timestamp are dropped during normalization,
// and invalid status/size values coerce to zero. Per-row diagnostics are
// never emitted; only aggregate counts are logged.
//
// # Memory
//
// The log parser consumes its input line by line and flushes parsed rows
// in configurable chunks, so peak intermediate memory is proportional to
// the chunk size rather than the file size.
package dataprocessing
