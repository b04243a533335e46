// Package exporter serializes the canonical traffic table to delimited
// text. The byte format is a compatibility surface: downstream tooling
// re-ingests these files, so the timestamp layout must stay parseable by
// the normalizer.
package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"trafficlens/pkg/contracts/domain"
)

// timestampLayout is the export format for points in time. It round-trips
// through the normalizer's layout list.
const timestampLayout = "2006-01-02 15:04:05 -0700"

// WriteOptions configures CSV serialization.
type WriteOptions struct {
	// BOMPrefix emits a UTF-8 BOM so spreadsheet tools pick up the encoding.
	BOMPrefix bool
}

// CSVWriter serializes record sets as UTF-8 CSV with a header row.
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a CSV writer.
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteRecordSet streams the record set to w: one header row of the
// present canonical columns, then one line per record.
func (c *CSVWriter) WriteRecordSet(w io.Writer, rs *domain.RecordSet, opts WriteOptions) error {
	if opts.BOMPrefix {
		if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	columns := rs.ColumnNames()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(columns))
	for i := range rs.Records {
		rec := &rs.Records[i]
		for j, col := range columns {
			row[j] = fieldValue(rec, domain.Column(col))
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	c.logger.Debug("record set exported",
		slog.Int("rows", rs.Len()),
		slog.Int("columns", len(columns)))
	return nil
}

func fieldValue(rec *domain.LogRecord, col domain.Column) string {
	switch col {
	case domain.ColumnIPAddress:
		return rec.IPAddress
	case domain.ColumnTimestamp:
		return rec.Timestamp.Format(timestampLayout)
	case domain.ColumnMethod:
		return rec.Method
	case domain.ColumnPage:
		return rec.PageVisited
	case domain.ColumnStatus:
		return strconv.Itoa(rec.StatusCode)
	case domain.ColumnDataSize:
		return strconv.FormatInt(rec.DataSize, 10)
	case domain.ColumnReferer:
		return rec.Referer
	case domain.ColumnUserAgent:
		return rec.UserAgent
	case domain.ColumnCount:
		return strconv.FormatInt(rec.Count, 10)
	case domain.ColumnHourOfDay:
		return strconv.Itoa(rec.HourOfDay)
	case domain.ColumnDayOfWeek:
		return rec.DayOfWeek
	case domain.ColumnStatusCategory:
		return string(rec.StatusCategory)
	case domain.ColumnBrowser:
		return string(rec.Browser)
	default:
		return ""
	}
}
