package dataprocessing

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"trafficlens/pkg/contracts/domain"
)

// timestampLayouts are tried in order when parsing a timestamp string.
// The Apache layout comes first because the grammar parser is the main
// producer; the exporter layout keeps export-then-reparse lossless.
var timestampLayouts = []string{
	"02/Jan/2006 15:04:05 -0700",
	"2006-01-02 15:04:05 -0700",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize reconciles a raw table of arbitrary column presence into the
// canonical record set: the minute column is folded into timestamp and
// tags the set as pre-aggregated, timestamps are parsed into real points
// in time, status and size are coerced to integers and the referer
// sentinel is applied. Rows whose timestamp does not parse are dropped;
// this is the only stage allowed to shrink the row count.
func Normalize(raw *RawTable, logger *slog.Logger) (*domain.RecordSet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if !raw.Columns.Has(domain.ColumnTimestamp) && !raw.Columns.Has(domain.ColumnMinute) {
		return nil, ErrNoTimestampColumn
	}

	kind := domain.RawRequestLog
	columns := raw.Columns.Clone()
	if columns.Has(domain.ColumnMinute) {
		// Pre-aggregated shape: one row per minute bucket.
		delete(columns, domain.ColumnMinute)
		columns.Add(domain.ColumnTimestamp)
		kind = domain.AggregatedMinuteLog
	}

	rs := &domain.RecordSet{
		Kind:    kind,
		Columns: columns,
		Records: make([]domain.LogRecord, 0, len(raw.Rows)),
	}

	hasReferer := columns.Has(domain.ColumnReferer)
	hasCount := columns.Has(domain.ColumnCount)

	var dropped int64
	for _, row := range raw.Rows {
		ts, ok := parseTimestamp(row.Timestamp)
		if !ok {
			dropped++
			continue
		}

		rec := domain.LogRecord{
			IPAddress:   row.IPAddress,
			Timestamp:   ts,
			Method:      row.Method,
			PageVisited: row.PageVisited,
			StatusCode:  coerceStatus(row.StatusCode),
			DataSize:    coerceSize(row.DataSize),
			UserAgent:   row.UserAgent,
		}
		if hasReferer {
			rec.Referer = row.Referer
			if rec.Referer == "" {
				// Absent referer is the sentinel, never a null.
				rec.Referer = "-"
			}
		}
		if hasCount {
			rec.Count = coerceCount(row.Count)
		}
		rs.Records = append(rs.Records, rec)
	}

	logger.Info("table normalized",
		slog.String("kind", string(rs.Kind)),
		slog.Int("rows", rs.Len()),
		slog.Int64("rows_dropped", dropped))

	return rs, nil
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// coerceStatus parses a status code, coercing invalid or missing values
// to 0 and clamping to the [0, 599] range.
func coerceStatus(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 || v > 599 {
		return 0
	}
	return v
}

// coerceSize parses a byte count; "-" and anything unparseable or
// negative becomes 0.
func coerceSize(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func coerceCount(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
