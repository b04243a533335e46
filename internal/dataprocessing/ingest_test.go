package dataprocessing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"trafficlens/pkg/contracts/domain"
)

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"plain text", []byte("hello\nworld\n"), false},
		{"empty input", nil, false},
		{"nul in prefix", []byte("PNG\x00\x01\x02"), true},
		{"nul beyond sniff window", append(bytes.Repeat([]byte("a"), binarySniffLen), 0x00), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBinary(tt.data))
		})
	}
}

func TestIngestRouting(t *testing.T) {
	t.Run("binary content is rejected before parsing", func(t *testing.T) {
		_, err := Ingest("traffic.log", []byte("abc\x00def"), nil)
		require.ErrorIs(t, err, ErrBinaryContent)
	})

	t.Run("unknown extension is rejected", func(t *testing.T) {
		_, err := Ingest("traffic.parquet", []byte("data"), nil)
		require.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("log extension routes to the grammar parser", func(t *testing.T) {
		table, err := Ingest("access.log", []byte(commonLine+"\n"), nil)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("txt extension routes to the grammar parser", func(t *testing.T) {
		table, err := Ingest("access.txt", []byte(combinedLine+"\n"), nil)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})
}

func TestReadCSV(t *testing.T) {
	t.Run("maps known headers and ignores unknown ones", func(t *testing.T) {
		csvData := "timestamp,ip_address,page_visited,status_code,unknown_col\n" +
			"2023-10-26 08:00:01,192.168.1.1,/home,200,whatever\n"
		table, err := Ingest("traffic.csv", []byte(csvData), nil)
		require.NoError(t, err)
		require.Len(t, table.Rows, 1)
		assert.True(t, table.Columns.HasAll(
			domain.ColumnTimestamp, domain.ColumnIPAddress,
			domain.ColumnPage, domain.ColumnStatus))
		assert.False(t, table.Columns.Has(domain.ColumnUserAgent))
		assert.Equal(t, "/home", table.Rows[0].PageVisited)
	})

	t.Run("minute column is recognized for pre-aggregated data", func(t *testing.T) {
		csvData := "minute,count\n2023-10-26 08:00,5\n"
		table, err := Ingest("minutes.csv", []byte(csvData), nil)
		require.NoError(t, err)
		assert.True(t, table.Columns.Has(domain.ColumnMinute))
		assert.True(t, table.Columns.Has(domain.ColumnCount))
		assert.Equal(t, "2023-10-26 08:00", table.Rows[0].Timestamp)
		assert.Equal(t, "5", table.Rows[0].Count)
	})

	t.Run("leading BOM on the first header is stripped", func(t *testing.T) {
		csvData := "\xEF\xBB\xBFtimestamp,status_code\n2023-10-26 08:00:01,200\n"
		table, err := Ingest("traffic.csv", []byte(csvData), nil)
		require.NoError(t, err)
		assert.True(t, table.Columns.Has(domain.ColumnTimestamp))
	})

	t.Run("header only input is empty", func(t *testing.T) {
		_, err := Ingest("traffic.csv", []byte("timestamp,status_code\n"), nil)
		require.ErrorIs(t, err, ErrEmptyInput)
	})
}

func TestReadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]string{"timestamp", "page_visited", "status_code"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]string{"2023-10-26 08:00:01", "/home", "200"}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]string{"2023-10-26 09:00:01", "/about", "404"}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	table, err := Ingest("traffic.xlsx", buf.Bytes(), nil)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "/about", table.Rows[1].PageVisited)
	assert.True(t, table.Columns.Has(domain.ColumnStatus))
}
