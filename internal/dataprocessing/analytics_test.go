package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/pkg/contracts/domain"
)

func at(hour, min int) time.Time {
	return time.Date(2023, 10, 26, hour, min, 0, 0, time.UTC)
}

func rawSet(cols []domain.Column, recs ...domain.LogRecord) *domain.RecordSet {
	return &domain.RecordSet{
		Kind:    domain.RawRequestLog,
		Columns: domain.NewColumnSet(cols...),
		Records: recs,
	}
}

func TestFilterByDate(t *testing.T) {
	rs := rawSet([]domain.Column{domain.ColumnTimestamp},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 25, 23, 59, 0, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 26, 0, 0, 1, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 27, 23, 59, 59, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 28, 0, 0, 0, 0, time.UTC)},
	)

	t.Run("bounds are inclusive calendar days", func(t *testing.T) {
		start := time.Date(2023, 10, 26, 12, 0, 0, 0, time.UTC)
		end := time.Date(2023, 10, 27, 12, 0, 0, 0, time.UTC)
		got := FilterByDate(rs, start, end)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, 26, got.Records[0].Timestamp.Day())
		assert.Equal(t, 27, got.Records[1].Timestamp.Day())
	})

	t.Run("zero bounds leave that side open", func(t *testing.T) {
		got := FilterByDate(rs, time.Time{}, time.Date(2023, 10, 26, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, 2, got.Len())
		got = FilterByDate(rs, time.Time{}, time.Time{})
		assert.Equal(t, 4, got.Len())
	})

	t.Run("offset timestamps filter by their own calendar date", func(t *testing.T) {
		// Access log lines carry a zone offset; what counts is the date
		// the line was stamped with, not the instant projected to UTC.
		offsetSet := rawSet([]domain.Column{domain.ColumnTimestamp},
			domain.LogRecord{Timestamp: time.Date(2023, 10, 26, 3, 0, 0, 0, time.FixedZone("", 5*3600))},
			domain.LogRecord{Timestamp: time.Date(2023, 10, 26, 22, 0, 0, 0, time.FixedZone("", -5*3600))},
		)
		day := time.Date(2023, 10, 26, 0, 0, 0, 0, time.UTC)
		got := FilterByDate(offsetSet, day, day)
		assert.Equal(t, 2, got.Len())
	})
}

func TestSummarize(t *testing.T) {
	cols := []domain.Column{
		domain.ColumnTimestamp, domain.ColumnIPAddress,
		domain.ColumnStatus, domain.ColumnDataSize,
	}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), IPAddress: "1.1.1.1", StatusCode: 200, DataSize: 100},
		domain.LogRecord{Timestamp: at(8, 5), IPAddress: "1.1.1.1", StatusCode: 404, DataSize: 50},
		domain.LogRecord{Timestamp: at(9, 0), IPAddress: "2.2.2.2", StatusCode: 500, DataSize: 0},
		domain.LogRecord{Timestamp: at(9, 1), IPAddress: "3.3.3.3", StatusCode: 200, DataSize: 25},
	)

	s := Summarize(rs)
	assert.EqualValues(t, 4, s.TotalRequests)
	assert.EqualValues(t, 3, s.UniqueVisitors)
	assert.EqualValues(t, 175, s.TotalDataSize)
	assert.InDelta(t, 25.0, s.ErrorRate4xx, 1e-9)
	assert.InDelta(t, 25.0, s.ErrorRate5xx, 1e-9)
	assert.InDelta(t, 50.0, s.ErrorRateCombined, 1e-9)

	t.Run("empty set has zero rates, not NaN", func(t *testing.T) {
		s := Summarize(rawSet(cols))
		assert.Zero(t, s.TotalRequests)
		assert.Zero(t, s.ErrorRateCombined)
	})
}

func TestHourlyHistogramWeighted(t *testing.T) {
	// Pre-aggregated minute rows count by their weight, not by row.
	rs := &domain.RecordSet{
		Kind:    domain.AggregatedMinuteLog,
		Columns: domain.NewColumnSet(domain.ColumnTimestamp, domain.ColumnCount),
		Records: []domain.LogRecord{
			{Timestamp: at(8, 0), Count: 5},
			{Timestamp: at(8, 1), Count: 3},
			{Timestamp: at(9, 0), Count: 1},
		},
	}
	buckets := HourlyHistogram(rs)
	require.Len(t, buckets, 24)
	assert.EqualValues(t, 8, buckets[8].Requests)
	assert.EqualValues(t, 1, buckets[9].Requests)
	assert.EqualValues(t, 0, buckets[0].Requests)
}

func TestHourlyHistogramUsesDerivedHour(t *testing.T) {
	// Once derivation has run, the cached hour_of_day column is
	// authoritative; the timestamp is not re-bucketed per view.
	rs := rawSet(
		[]domain.Column{domain.ColumnTimestamp, domain.ColumnHourOfDay},
		domain.LogRecord{Timestamp: at(8, 0), HourOfDay: 9},
	)
	buckets := HourlyHistogram(rs)
	assert.EqualValues(t, 0, buckets[8].Requests)
	assert.EqualValues(t, 1, buckets[9].Requests)
}

func TestDailySeries(t *testing.T) {
	rs := rawSet([]domain.Column{domain.ColumnTimestamp},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 27, 1, 0, 0, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 26, 1, 0, 0, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 26, 2, 0, 0, 0, time.UTC)},
	)
	points := DailySeries(rs)
	require.Len(t, points, 2)
	assert.Equal(t, domain.DailyPoint{Date: "2023-10-26", Requests: 2}, points[0])
	assert.Equal(t, domain.DailyPoint{Date: "2023-10-27", Requests: 1}, points[1])
}

func TestTopN(t *testing.T) {
	cols := []domain.Column{domain.ColumnTimestamp, domain.ColumnPage}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), PageVisited: "/a"},
		domain.LogRecord{Timestamp: at(8, 1), PageVisited: "/b"},
		domain.LogRecord{Timestamp: at(8, 2), PageVisited: "/b"},
		domain.LogRecord{Timestamp: at(8, 3), PageVisited: "/c"},
	)

	t.Run("descending with first-encounter tie break", func(t *testing.T) {
		top := TopN(rs, domain.ColumnPage, 10)
		require.Len(t, top, 3)
		assert.Equal(t, domain.TopEntry{Value: "/b", Requests: 2}, top[0])
		// /a and /c both have one request; /a was seen first.
		assert.Equal(t, "/a", top[1].Value)
		assert.Equal(t, "/c", top[2].Value)
	})

	t.Run("n truncates", func(t *testing.T) {
		top := TopN(rs, domain.ColumnPage, 1)
		require.Len(t, top, 1)
		assert.Equal(t, "/b", top[0].Value)
	})

	t.Run("absent column yields nil", func(t *testing.T) {
		assert.Nil(t, TopN(rs, domain.ColumnUserAgent, 5))
	})
}

func TestTop404Pages(t *testing.T) {
	cols := []domain.Column{domain.ColumnTimestamp, domain.ColumnPage, domain.ColumnStatus}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), PageVisited: "/missing", StatusCode: 404},
		domain.LogRecord{Timestamp: at(8, 1), PageVisited: "/missing", StatusCode: 404},
		domain.LogRecord{Timestamp: at(8, 2), PageVisited: "/home", StatusCode: 200},
	)
	top := Top404Pages(rs, 10)
	require.Len(t, top, 1)
	assert.Equal(t, domain.TopEntry{Value: "/missing", Requests: 2}, top[0])
}

func TestTopReferrers(t *testing.T) {
	cols := []domain.Column{domain.ColumnTimestamp, domain.ColumnReferer}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), Referer: "-"},
		domain.LogRecord{Timestamp: at(8, 1), Referer: "http://a.example"},
		domain.LogRecord{Timestamp: at(8, 2), Referer: "http://a.example"},
	)
	top := TopReferrers(rs, 10)
	require.Len(t, top, 1)
	assert.Equal(t, "http://a.example", top[0].Value)
	assert.EqualValues(t, 2, top[0].Requests)
}

func TestHotlinkReferrers(t *testing.T) {
	cols := []domain.Column{domain.ColumnTimestamp, domain.ColumnPage, domain.ColumnReferer}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), PageVisited: "/img/logo.png", Referer: "http://thief.example"},
		domain.LogRecord{Timestamp: at(8, 1), PageVisited: "/img/photo.JPG?v=2", Referer: "http://thief.example"},
		domain.LogRecord{Timestamp: at(8, 2), PageVisited: "/img/banner.jpeg", Referer: "-"},
		domain.LogRecord{Timestamp: at(8, 3), PageVisited: "/page.html", Referer: "http://thief.example"},
		domain.LogRecord{Timestamp: at(8, 4), PageVisited: "/downloads/image.png.zip", Referer: "http://thief.example"},
	)
	top := HotlinkReferrers(rs, 10)
	require.Len(t, top, 1)
	// Direct traffic and non-image paths are excluded; the query-string
	// and uppercase variants still match.
	assert.Equal(t, domain.TopEntry{Value: "http://thief.example", Requests: 2}, top[0])
}

func TestTrafficHeatmap(t *testing.T) {
	rs := rawSet([]domain.Column{domain.ColumnTimestamp},
		// 2023-10-22 is a Sunday, 2023-10-23 a Monday.
		domain.LogRecord{Timestamp: time.Date(2023, 10, 22, 10, 0, 0, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 23, 4, 0, 0, 0, time.UTC)},
		domain.LogRecord{Timestamp: time.Date(2023, 10, 23, 4, 30, 0, 0, time.UTC)},
	)
	hm := TrafficHeatmap(rs)
	require.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}, hm.Days)
	require.Len(t, hm.Matrix, 7)
	assert.EqualValues(t, 2, hm.Matrix[0][4])  // Monday 04:00
	assert.EqualValues(t, 1, hm.Matrix[6][10]) // Sunday 10:00

	t.Run("cached derived columns are authoritative", func(t *testing.T) {
		enriched := rawSet(
			[]domain.Column{domain.ColumnTimestamp, domain.ColumnHourOfDay, domain.ColumnDayOfWeek},
			// Timestamp says Monday 04:00; the derived fields say Sunday 10:00.
			domain.LogRecord{
				Timestamp: time.Date(2023, 10, 23, 4, 0, 0, 0, time.UTC),
				HourOfDay: 10,
				DayOfWeek: "Sunday",
			},
		)
		hm := TrafficHeatmap(enriched)
		assert.EqualValues(t, 0, hm.Matrix[0][4])
		assert.EqualValues(t, 1, hm.Matrix[6][10])
	})
}

func TestHourlyAnomalies(t *testing.T) {
	// Five occupied hours with counts 10,10,10,10,100:
	// mean 28, population stddev 36, threshold 100.
	build := func(peak int64) *domain.RecordSet {
		return &domain.RecordSet{
			Kind:    domain.AggregatedMinuteLog,
			Columns: domain.NewColumnSet(domain.ColumnTimestamp, domain.ColumnCount),
			Records: []domain.LogRecord{
				{Timestamp: at(1, 0), Count: 10},
				{Timestamp: at(2, 0), Count: 10},
				{Timestamp: at(3, 0), Count: 10},
				{Timestamp: at(4, 0), Count: 10},
				{Timestamp: at(5, 0), Count: peak},
			},
		}
	}

	t.Run("value exactly at threshold is not flagged", func(t *testing.T) {
		report := HourlyAnomalies(build(100))
		assert.InDelta(t, 28.0, report.Mean, 1e-9)
		assert.InDelta(t, 36.0, report.StdDev, 1e-9)
		assert.InDelta(t, 100.0, report.Threshold, 1e-9)
		assert.Empty(t, report.Flagged)
	})

	t.Run("spike above threshold is flagged", func(t *testing.T) {
		// Nine baseline hours at 10 plus one spike at 200:
		// mean 29, population stddev 57, threshold 143.
		recs := make([]domain.LogRecord, 0, 10)
		for h := 1; h <= 9; h++ {
			recs = append(recs, domain.LogRecord{Timestamp: at(h, 0), Count: 10})
		}
		recs = append(recs, domain.LogRecord{Timestamp: at(10, 0), Count: 200})
		rs := &domain.RecordSet{
			Kind:    domain.AggregatedMinuteLog,
			Columns: domain.NewColumnSet(domain.ColumnTimestamp, domain.ColumnCount),
			Records: recs,
		}

		report := HourlyAnomalies(rs)
		assert.InDelta(t, 143.0, report.Threshold, 1e-9)
		require.Len(t, report.Flagged, 1)
		assert.Equal(t, 10, report.Flagged[0].Hour)
		assert.EqualValues(t, 200, report.Flagged[0].Requests)
	})

	t.Run("fewer than two occupied hours yields no flags", func(t *testing.T) {
		rs := rawSet([]domain.Column{domain.ColumnTimestamp},
			domain.LogRecord{Timestamp: at(8, 0)},
			domain.LogRecord{Timestamp: at(8, 30)},
		)
		report := HourlyAnomalies(rs)
		assert.Empty(t, report.Flagged)
		assert.Zero(t, report.Threshold)
	})

	t.Run("empty hours do not dilute the statistics", func(t *testing.T) {
		// Only occupied buckets enter mean and stddev; with 19 empty
		// hours included the mean would drop and flag the peak.
		report := HourlyAnomalies(build(100))
		assert.InDelta(t, 28.0, report.Mean, 1e-9)
	})
}

func TestAggregate(t *testing.T) {
	cols := []domain.Column{domain.ColumnTimestamp, domain.ColumnPage, domain.ColumnStatus}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), PageVisited: "/a", StatusCode: 200},
		domain.LogRecord{Timestamp: at(9, 0), PageVisited: "/b", StatusCode: 404},
	)

	t.Run("dispatches by kind", func(t *testing.T) {
		out, err := Aggregate(rs, domain.AggregateHourly, domain.AggregateParams{})
		require.NoError(t, err)
		assert.Len(t, out.([]domain.HourlyBucket), 24)

		out, err = Aggregate(rs, domain.AggregateTopN, domain.AggregateParams{Column: "page_visited", N: 5})
		require.NoError(t, err)
		assert.Len(t, out.([]domain.TopEntry), 2)
	})

	t.Run("top_n without a column is rejected", func(t *testing.T) {
		_, err := Aggregate(rs, domain.AggregateTopN, domain.AggregateParams{N: 5})
		require.Error(t, err)
	})

	t.Run("unvalidated column names are rejected", func(t *testing.T) {
		_, err := Aggregate(rs, domain.AggregateTopN, domain.AggregateParams{Column: "drop_table", N: 5})
		require.Error(t, err)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		_, err := Aggregate(rs, domain.AggregateKind("median"), domain.AggregateParams{})
		require.Error(t, err)
	})
}

func TestBuildDashboard(t *testing.T) {
	cols := []domain.Column{
		domain.ColumnTimestamp, domain.ColumnPage, domain.ColumnStatus,
	}
	rs := rawSet(cols,
		domain.LogRecord{Timestamp: at(8, 0), PageVisited: "/a", StatusCode: 200},
		domain.LogRecord{Timestamp: at(9, 0), PageVisited: "/b", StatusCode: 404},
	)
	report := BuildDashboard(rs, 0)

	assert.Equal(t, domain.RawRequestLog, report.Kind)
	assert.EqualValues(t, 2, report.Summary.TotalRequests)
	assert.NotNil(t, report.Heatmap)
	assert.NotNil(t, report.Anomalies)
	assert.Len(t, report.TopPages, 2)
	// Referer never existed in this set, so referrer sections are absent.
	assert.Nil(t, report.TopReferrers)
	assert.Nil(t, report.HotlinkReferrers)
}
