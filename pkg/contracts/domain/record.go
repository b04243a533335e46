package domain

import (
	"time"
)

// Column identifies a canonical column of the traffic table. Source columns
// come straight from the ingested file; derived columns are added by the
// feature derivation pass.
type Column string

const (
	// Source columns
	ColumnIPAddress Column = "ip_address"
	ColumnTimestamp Column = "timestamp"
	ColumnMinute    Column = "minute"
	ColumnMethod    Column = "method"
	ColumnPage      Column = "page_visited"
	ColumnStatus    Column = "status_code"
	ColumnDataSize  Column = "data_size"
	ColumnReferer   Column = "referer"
	ColumnUserAgent Column = "user_agent"
	ColumnCount     Column = "count"

	// Derived columns
	ColumnHourOfDay      Column = "hour_of_day"
	ColumnDayOfWeek      Column = "day_of_week"
	ColumnStatusCategory Column = "status_category"
	ColumnBrowser        Column = "browser"
)

// ColumnSet tracks which columns are materialized for a record set.
// Column presence drives which derived fields and aggregates are available.
type ColumnSet map[Column]struct{}

// NewColumnSet creates a set containing the given columns.
func NewColumnSet(cols ...Column) ColumnSet {
	s := make(ColumnSet, len(cols))
	for _, c := range cols {
		s.Add(c)
	}
	return s
}

// Has reports whether the column is present.
func (s ColumnSet) Has(c Column) bool {
	_, ok := s[c]
	return ok
}

// HasAll reports whether every given column is present.
func (s ColumnSet) HasAll(cols ...Column) bool {
	for _, c := range cols {
		if !s.Has(c) {
			return false
		}
	}
	return true
}

// Add marks the column as present.
func (s ColumnSet) Add(c Column) {
	s[c] = struct{}{}
}

// Clone returns an independent copy of the set.
func (s ColumnSet) Clone() ColumnSet {
	out := make(ColumnSet, len(s))
	for c := range s {
		out[c] = struct{}{}
	}
	return out
}

// DatasetKind tags the shape of the ingested data, resolved once at
// normalization and never re-derived per analysis.
type DatasetKind string

const (
	// RawRequestLog is one row per request.
	RawRequestLog DatasetKind = "raw_request_log"
	// AggregatedMinuteLog is one row per minute bucket carrying a request
	// count; aggregations sum the count column instead of counting rows.
	AggregatedMinuteLog DatasetKind = "aggregated_minute_log"
)

// StatusCategory buckets an HTTP status code.
type StatusCategory string

const (
	StatusSuccess     StatusCategory = "Success(2xx)"
	StatusRedirect    StatusCategory = "Redirect(3xx)"
	StatusClientError StatusCategory = "ClientError(4xx)"
	StatusServerError StatusCategory = "ServerError(5xx)"
	StatusOther       StatusCategory = "Other"
)

// Browser is the family classified from the user agent string.
type Browser string

const (
	BrowserChrome  Browser = "Chrome"
	BrowserFirefox Browser = "Firefox"
	BrowserSafari  Browser = "Safari"
	BrowserEdge    Browser = "Edge"
	BrowserBot     Browser = "Bot"
	BrowserOther   Browser = "Other"
)

// LogRecord is the canonical unit of the traffic table. Which fields carry
// meaning is governed by the owning RecordSet's column set; zero values in
// absent columns are not data.
type LogRecord struct {
	IPAddress   string    `json:"ip_address,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Method      string    `json:"method,omitempty"`
	PageVisited string    `json:"page_visited,omitempty"`
	StatusCode  int       `json:"status_code"`
	DataSize    int64     `json:"data_size"`
	Referer     string    `json:"referer,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	Count       int64     `json:"count,omitempty"`

	// Derived fields, computed once by the feature derivation pass.
	HourOfDay      int            `json:"hour_of_day"`
	DayOfWeek      string         `json:"day_of_week,omitempty"`
	StatusCategory StatusCategory `json:"status_category,omitempty"`
	Browser        Browser        `json:"browser,omitempty"`
}

// RecordSet is the canonical in-memory traffic table produced by the
// pipeline. It owns its records exclusively from parse to aggregation.
type RecordSet struct {
	Kind    DatasetKind `json:"kind"`
	Columns ColumnSet   `json:"-"`
	Records []LogRecord `json:"records"`
}

// Len returns the number of rows.
func (rs *RecordSet) Len() int {
	return len(rs.Records)
}

// RowWeight returns the aggregation weight of a record: the count column
// value for pre-aggregated datasets, 1 otherwise.
func (rs *RecordSet) RowWeight(r LogRecord) int64 {
	if rs.Columns.Has(ColumnCount) {
		return r.Count
	}
	return 1
}

// ColumnNames returns the present columns in canonical order, source
// columns first, suitable for headers and schema metadata.
func (rs *RecordSet) ColumnNames() []string {
	ordered := []Column{
		ColumnIPAddress, ColumnTimestamp, ColumnMethod, ColumnPage,
		ColumnStatus, ColumnDataSize, ColumnReferer, ColumnUserAgent,
		ColumnCount, ColumnHourOfDay, ColumnDayOfWeek,
		ColumnStatusCategory, ColumnBrowser,
	}
	names := make([]string, 0, len(rs.Columns))
	for _, c := range ordered {
		if rs.Columns.Has(c) {
			names = append(names, string(c))
		}
	}
	return names
}
