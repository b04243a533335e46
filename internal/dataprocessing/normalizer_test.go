package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/pkg/contracts/domain"
)

func TestNormalizeValidationGate(t *testing.T) {
	raw := &RawTable{
		Columns: domain.NewColumnSet(domain.ColumnPage, domain.ColumnStatus),
		Rows:    []RawRow{{PageVisited: "/home", StatusCode: "200"}},
	}
	_, err := Normalize(raw, nil)
	require.ErrorIs(t, err, ErrNoTimestampColumn)
}

func TestNormalizeTimestamps(t *testing.T) {
	raw := &RawTable{
		Columns: domain.NewColumnSet(domain.ColumnTimestamp, domain.ColumnStatus),
		Rows: []RawRow{
			{Timestamp: "10/Oct/2000 13:55:36 +0000", StatusCode: "200"},
			{Timestamp: "2023-10-26 08:00:01", StatusCode: "200"},
			{Timestamp: "not a timestamp", StatusCode: "500"},
			{Timestamp: "", StatusCode: "500"},
		},
	}
	rs, err := Normalize(raw, nil)
	require.NoError(t, err)

	// Only the unparseable rows are dropped.
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, domain.RawRequestLog, rs.Kind)

	// The rewritten Apache timestamp parses with its original components.
	first := rs.Records[0].Timestamp
	assert.Equal(t, 13, first.Hour())
	assert.Equal(t, 55, first.Minute())
	assert.Equal(t, 36, first.Second())
	assert.Equal(t, 2000, first.Year())
}

func TestNormalizeMinuteColumn(t *testing.T) {
	raw := &RawTable{
		Columns: domain.NewColumnSet(domain.ColumnMinute, domain.ColumnCount),
		Rows: []RawRow{
			{Timestamp: "2023-10-26 08:00", Count: "5"},
			{Timestamp: "2023-10-26 08:01", Count: "3"},
		},
	}
	rs, err := Normalize(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.AggregatedMinuteLog, rs.Kind)
	assert.True(t, rs.Columns.Has(domain.ColumnTimestamp))
	assert.False(t, rs.Columns.Has(domain.ColumnMinute))
	require.Equal(t, 2, rs.Len())
	assert.EqualValues(t, 5, rs.Records[0].Count)
}

func TestNormalizeCoercions(t *testing.T) {
	tests := []struct {
		name       string
		row        RawRow
		wantStatus int
		wantSize   int64
	}{
		{"valid values pass through", RawRow{Timestamp: "2023-10-26 08:00:01", StatusCode: "404", DataSize: "1234"}, 404, 1234},
		{"dash size coerces to zero", RawRow{Timestamp: "2023-10-26 08:00:01", StatusCode: "200", DataSize: "-"}, 200, 0},
		{"invalid status coerces to zero", RawRow{Timestamp: "2023-10-26 08:00:01", StatusCode: "abc", DataSize: "10"}, 0, 10},
		{"out of range status coerces to zero", RawRow{Timestamp: "2023-10-26 08:00:01", StatusCode: "999", DataSize: "10"}, 0, 10},
		{"negative size coerces to zero", RawRow{Timestamp: "2023-10-26 08:00:01", StatusCode: "200", DataSize: "-5"}, 200, 0},
		{"missing values coerce to zero", RawRow{Timestamp: "2023-10-26 08:00:01"}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &RawTable{
				Columns: domain.NewColumnSet(
					domain.ColumnTimestamp, domain.ColumnStatus, domain.ColumnDataSize),
				Rows: []RawRow{tt.row},
			}
			rs, err := Normalize(raw, nil)
			require.NoError(t, err)
			require.Equal(t, 1, rs.Len())
			assert.Equal(t, tt.wantStatus, rs.Records[0].StatusCode)
			assert.Equal(t, tt.wantSize, rs.Records[0].DataSize)
		})
	}
}

func TestNormalizeRefererSentinel(t *testing.T) {
	raw := &RawTable{
		Columns: domain.NewColumnSet(domain.ColumnTimestamp, domain.ColumnReferer),
		Rows: []RawRow{
			{Timestamp: "2023-10-26 08:00:01", Referer: ""},
			{Timestamp: "2023-10-26 08:00:02", Referer: "http://example.com"},
		},
	}
	rs, err := Normalize(raw, nil)
	require.NoError(t, err)

	// Absent referer becomes the sentinel so downstream filters can use
	// equality instead of null checks.
	assert.Equal(t, "-", rs.Records[0].Referer)
	assert.Equal(t, "http://example.com", rs.Records[1].Referer)
}
