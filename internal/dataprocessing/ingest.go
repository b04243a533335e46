package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"trafficlens/pkg/contracts/domain"
)

// binarySniffLen is how much of the input the binary-content guard inspects.
const binarySniffLen = 512

// RawRow holds the still-unparsed string fields of one input row. Empty
// strings stand for absent values until normalization applies coercions
// and sentinels.
type RawRow struct {
	IPAddress   string
	Timestamp   string
	Method      string
	PageVisited string
	StatusCode  string
	DataSize    string
	Referer     string
	UserAgent   string
	Count       string
}

// RawTable is the pre-normalization table: rows of raw string fields plus
// the set of source columns the input actually carried.
type RawTable struct {
	Columns domain.ColumnSet
	Rows    []RawRow
}

// Ingest routes raw file bytes to the right reader by extension:
// .log/.txt to the access log grammar, .csv to tabular parsing and .xlsx
// to spreadsheet parsing. For the text routes, a NUL byte in the leading
// bytes rejects the input as binary before any parsing is attempted.
func Ingest(filename string, data []byte, opts *ParseOptions) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".log", ".txt":
		if IsBinary(data) {
			return nil, ErrBinaryContent
		}
		return ParseAccessLog(bytes.NewReader(data), opts)
	case ".csv":
		if IsBinary(data) {
			return nil, ErrBinaryContent
		}
		return readCSV(bytes.NewReader(data), opts)
	case ".xlsx":
		return readWorkbook(bytes.NewReader(data), opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// IsBinary reports whether a fixed-size prefix of the input contains a
// NUL byte, the cheap tell for non-text content.
func IsBinary(data []byte) bool {
	prefix := data
	if len(prefix) > binarySniffLen {
		prefix = prefix[:binarySniffLen]
	}
	return bytes.IndexByte(prefix, 0x00) >= 0
}

// rawRowSetters maps recognized header names to field assignments.
// Unknown columns are ignored; the minute header is the pre-aggregated
// shape and is reconciled to timestamp during normalization.
var rawRowSetters = map[string]func(*RawRow, string){
	"ip_address":   func(r *RawRow, v string) { r.IPAddress = v },
	"timestamp":    func(r *RawRow, v string) { r.Timestamp = v },
	"minute":       func(r *RawRow, v string) { r.Timestamp = v },
	"method":       func(r *RawRow, v string) { r.Method = v },
	"page_visited": func(r *RawRow, v string) { r.PageVisited = v },
	"status_code":  func(r *RawRow, v string) { r.StatusCode = v },
	"data_size":    func(r *RawRow, v string) { r.DataSize = v },
	"referer":      func(r *RawRow, v string) { r.Referer = v },
	"user_agent":   func(r *RawRow, v string) { r.UserAgent = v },
	"count":        func(r *RawRow, v string) { r.Count = v },
}

// readCSV reads a delimited traffic table, first row as header.
func readCSV(r io.Reader, opts *ParseOptions) (*RawTable, error) {
	o := opts.withDefaults()

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	// Strip a UTF-8 BOM left by spreadsheet tooling.
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	table := newTableFromHeader(header)
	setters := headerSetters(header)

	var rows int64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row, skipped like a non-matching log line.
			continue
		}
		var row RawRow
		for i, set := range setters {
			if set != nil && i < len(record) {
				set(&row, strings.ToValidUTF8(record[i], "�"))
			}
		}
		table.Rows = append(table.Rows, row)
		rows++
	}

	if rows == 0 {
		return nil, ErrEmptyInput
	}

	o.Logger.Debug("csv ingested",
		slog.Int64("rows", rows),
		slog.Int("columns", len(table.Columns)))

	return table, nil
}

// readWorkbook reads the first sheet of an xlsx workbook like a CSV:
// first row header, the rest data.
func readWorkbook(r io.Reader, opts *ParseOptions) (*RawTable, error) {
	o := opts.withDefaults()

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) < 2 {
		return nil, ErrEmptyInput
	}

	table := newTableFromHeader(rows[0])
	setters := headerSetters(rows[0])

	for _, record := range rows[1:] {
		var row RawRow
		for i, set := range setters {
			if set != nil && i < len(record) {
				set(&row, record[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}

	o.Logger.Debug("workbook ingested",
		slog.String("sheet", sheets[0]),
		slog.Int("rows", len(table.Rows)))

	return table, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

func newTableFromHeader(header []string) *RawTable {
	cols := domain.NewColumnSet()
	for _, h := range header {
		name := normalizeHeader(h)
		if _, ok := rawRowSetters[name]; ok {
			cols.Add(domain.Column(name))
		}
	}
	return &RawTable{Columns: cols}
}

func headerSetters(header []string) []func(*RawRow, string) {
	setters := make([]func(*RawRow, string), len(header))
	for i, h := range header {
		setters[i] = rawRowSetters[normalizeHeader(h)]
	}
	return setters
}
