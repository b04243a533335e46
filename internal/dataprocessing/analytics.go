package dataprocessing

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"trafficlens/pkg/contracts/domain"
)

// imagePathPattern recognizes requests for image files, with or without a
// trailing query string.
var imagePathPattern = regexp.MustCompile(`(?i)\.(?:png|jpe?g|gif|svg|ico|webp)(?:\?|$)`)

// refererSentinel marks direct traffic after normalization.
const refererSentinel = "-"

// DefaultTopN bounds breakdown size when the caller does not ask for one.
const DefaultTopN = 10

var paramsValidator = validator.New()

// weekdayNames is the fixed Monday-first ordering used by the heatmap.
var weekdayNames = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var weekdayIndex = func() map[string]int {
	m := make(map[string]int, len(weekdayNames))
	for i, name := range weekdayNames {
		m[name] = i
	}
	return m
}()

// FilterByDate returns the records whose calendar date falls inside the
// inclusive [start, end] range. A zero bound leaves that side open. The
// returned set shares the column view but owns its record slice.
func FilterByDate(rs *domain.RecordSet, start, end time.Time) *domain.RecordSet {
	out := &domain.RecordSet{Kind: rs.Kind, Columns: rs.Columns.Clone()}
	startDay := dateOnly(start)
	endDay := dateOnly(end)
	for _, rec := range rs.Records {
		day := dateOnly(rec.Timestamp)
		if !start.IsZero() && day.Before(startDay) {
			continue
		}
		if !end.IsZero() && day.After(endDay) {
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// dateOnly projects the timestamp's calendar date, as read in its own
// zone, onto a common frame. Comparing these keeps the filter a pure
// date comparison regardless of the offsets the log lines carried.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Summarize computes the headline metrics. Rates are percentages of the
// weighted total and zero when the set is empty.
func Summarize(rs *domain.RecordSet) domain.Summary {
	s := domain.Summary{RowCount: rs.Len()}

	hasIP := rs.Columns.Has(domain.ColumnIPAddress)
	hasStatus := rs.Columns.Has(domain.ColumnStatus)
	hasSize := rs.Columns.Has(domain.ColumnDataSize)

	visitors := make(map[string]struct{})
	var err4xx, err5xx int64
	for _, rec := range rs.Records {
		w := rs.RowWeight(rec)
		s.TotalRequests += w
		if hasIP {
			visitors[rec.IPAddress] = struct{}{}
		}
		if hasStatus {
			switch {
			case rec.StatusCode >= 400 && rec.StatusCode <= 499:
				err4xx += w
			case rec.StatusCode >= 500 && rec.StatusCode <= 599:
				err5xx += w
			}
		}
		if hasSize {
			s.TotalDataSize += rec.DataSize
		}
	}
	s.UniqueVisitors = int64(len(visitors))
	if s.TotalRequests > 0 {
		s.ErrorRate4xx = float64(err4xx) / float64(s.TotalRequests) * 100
		s.ErrorRate5xx = float64(err5xx) / float64(s.TotalRequests) * 100
		s.ErrorRateCombined = float64(err4xx+err5xx) / float64(s.TotalRequests) * 100
	}
	return s
}

// HourlyHistogram returns all 24 hour buckets in hour order. The cached
// hour_of_day column is used when derivation ran; the timestamp is only
// consulted for sets that never passed through enrichment.
func HourlyHistogram(rs *domain.RecordSet) []domain.HourlyBucket {
	var counts [24]int64
	derived := rs.Columns.Has(domain.ColumnHourOfDay)
	for _, rec := range rs.Records {
		hour := rec.HourOfDay
		if !derived {
			hour = rec.Timestamp.Hour()
		}
		counts[hour] += rs.RowWeight(rec)
	}
	buckets := make([]domain.HourlyBucket, 24)
	for h := range counts {
		buckets[h] = domain.HourlyBucket{Hour: h, Requests: counts[h]}
	}
	return buckets
}

// DailySeries returns the per-calendar-day time series in date order.
func DailySeries(rs *domain.RecordSet) []domain.DailyPoint {
	counts := make(map[string]int64)
	for _, rec := range rs.Records {
		counts[rec.Timestamp.Format("2006-01-02")] += rs.RowWeight(rec)
	}
	points := make([]domain.DailyPoint, 0, len(counts))
	for date, n := range counts {
		points = append(points, domain.DailyPoint{Date: date, Requests: n})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points
}

// columnValue extracts the categorical value of a column from a record.
// Returns false for columns that are not categorical.
func columnValue(rec domain.LogRecord, col domain.Column) (string, bool) {
	switch col {
	case domain.ColumnIPAddress:
		return rec.IPAddress, true
	case domain.ColumnMethod:
		return rec.Method, true
	case domain.ColumnPage:
		return rec.PageVisited, true
	case domain.ColumnStatus:
		return strconv.Itoa(rec.StatusCode), true
	case domain.ColumnReferer:
		return rec.Referer, true
	case domain.ColumnUserAgent:
		return rec.UserAgent, true
	case domain.ColumnBrowser:
		return string(rec.Browser), true
	case domain.ColumnDayOfWeek:
		return rec.DayOfWeek, true
	default:
		return "", false
	}
}

// topCounter accumulates weighted counts while remembering first-encounter
// order, which breaks ties after the descending sort.
type topCounter struct {
	counts map[string]int64
	order  map[string]int
	next   int
}

func newTopCounter() *topCounter {
	return &topCounter{counts: make(map[string]int64), order: make(map[string]int)}
}

func (c *topCounter) add(value string, weight int64) {
	if _, seen := c.order[value]; !seen {
		c.order[value] = c.next
		c.next++
	}
	c.counts[value] += weight
}

func (c *topCounter) top(n int) []domain.TopEntry {
	entries := make([]domain.TopEntry, 0, len(c.counts))
	for v, cnt := range c.counts {
		entries = append(entries, domain.TopEntry{Value: v, Requests: cnt})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Requests != entries[j].Requests {
			return entries[i].Requests > entries[j].Requests
		}
		return c.order[entries[i].Value] < c.order[entries[j].Value]
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// TopN computes the top-n breakdown of a categorical column. Returns nil
// when the column is absent; a missing analysis is omitted, not an error.
func TopN(rs *domain.RecordSet, col domain.Column, n int) []domain.TopEntry {
	if !rs.Columns.Has(col) {
		return nil
	}
	if n <= 0 {
		n = DefaultTopN
	}
	counter := newTopCounter()
	for _, rec := range rs.Records {
		if v, ok := columnValue(rec, col); ok {
			counter.add(v, rs.RowWeight(rec))
		}
	}
	return counter.top(n)
}

// Top404Pages ranks the pages most requested with a 404 status.
func Top404Pages(rs *domain.RecordSet, n int) []domain.TopEntry {
	if !rs.Columns.HasAll(domain.ColumnStatus, domain.ColumnPage) {
		return nil
	}
	if n <= 0 {
		n = DefaultTopN
	}
	counter := newTopCounter()
	for _, rec := range rs.Records {
		if rec.StatusCode == 404 {
			counter.add(rec.PageVisited, rs.RowWeight(rec))
		}
	}
	return counter.top(n)
}

// TopReferrers ranks referrers excluding the direct-traffic sentinel.
func TopReferrers(rs *domain.RecordSet, n int) []domain.TopEntry {
	if !rs.Columns.Has(domain.ColumnReferer) {
		return nil
	}
	if n <= 0 {
		n = DefaultTopN
	}
	counter := newTopCounter()
	for _, rec := range rs.Records {
		if rec.Referer != refererSentinel {
			counter.add(rec.Referer, rs.RowWeight(rec))
		}
	}
	return counter.top(n)
}

// HotlinkReferrers ranks the non-direct referrers of image requests,
// the signature of third-party sites embedding images directly.
func HotlinkReferrers(rs *domain.RecordSet, n int) []domain.TopEntry {
	if !rs.Columns.HasAll(domain.ColumnReferer, domain.ColumnPage) {
		return nil
	}
	if n <= 0 {
		n = DefaultTopN
	}
	counter := newTopCounter()
	for _, rec := range rs.Records {
		if rec.Referer == refererSentinel {
			continue
		}
		if imagePathPattern.MatchString(rec.PageVisited) {
			counter.add(rec.Referer, rs.RowWeight(rec))
		}
	}
	return counter.top(n)
}

// StatusDistribution counts requests per status code, most frequent first.
func StatusDistribution(rs *domain.RecordSet) []domain.StatusCount {
	if !rs.Columns.Has(domain.ColumnStatus) {
		return nil
	}
	counts := make(map[int]int64)
	order := make(map[int]int)
	for _, rec := range rs.Records {
		if _, seen := order[rec.StatusCode]; !seen {
			order[rec.StatusCode] = len(order)
		}
		counts[rec.StatusCode] += rs.RowWeight(rec)
	}
	dist := make([]domain.StatusCount, 0, len(counts))
	for code, n := range counts {
		dist = append(dist, domain.StatusCount{StatusCode: code, Requests: n})
	}
	sort.SliceStable(dist, func(i, j int) bool {
		if dist[i].Requests != dist[j].Requests {
			return dist[i].Requests > dist[j].Requests
		}
		return order[dist[i].StatusCode] < order[dist[j].StatusCode]
	})
	return dist
}

// TrafficHeatmap cross-tabulates request weight by day of week and hour
// of day. Day ordering is fixed Monday through Sunday regardless of which
// day the data starts on.
func TrafficHeatmap(rs *domain.RecordSet) *domain.Heatmap {
	matrix := make([][]int64, len(weekdayNames))
	for d := range matrix {
		matrix[d] = make([]int64, 24)
	}
	derivedDay := rs.Columns.Has(domain.ColumnDayOfWeek)
	derivedHour := rs.Columns.Has(domain.ColumnHourOfDay)
	for _, rec := range rs.Records {
		day, known := weekdayIndex[rec.DayOfWeek]
		if !derivedDay || !known {
			// time.Weekday is Sunday-first; rotate to Monday-first.
			day = (int(rec.Timestamp.Weekday()) + 6) % 7
		}
		hour := rec.HourOfDay
		if !derivedHour {
			hour = rec.Timestamp.Hour()
		}
		matrix[day][hour] += rs.RowWeight(rec)
	}
	days := make([]string, len(weekdayNames))
	copy(days, weekdayNames)
	return &domain.Heatmap{Days: days, Matrix: matrix}
}

// HourlyAnomalies flags hours whose traffic is strictly above the
// mean+2σ threshold of the non-empty hourly buckets. Population σ; fewer
// than two buckets yield no flags rather than an error.
func HourlyAnomalies(rs *domain.RecordSet) *domain.AnomalyReport {
	report := &domain.AnomalyReport{Flagged: []domain.HourAnomaly{}}

	var occupied []domain.HourlyBucket
	for _, b := range HourlyHistogram(rs) {
		if b.Requests > 0 {
			occupied = append(occupied, b)
		}
	}
	if len(occupied) < 2 {
		return report
	}

	var sum float64
	for _, b := range occupied {
		sum += float64(b.Requests)
	}
	mean := sum / float64(len(occupied))

	var sq float64
	for _, b := range occupied {
		d := float64(b.Requests) - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(occupied)))

	report.Mean = mean
	report.StdDev = std
	report.Threshold = mean + 2*std
	for _, b := range occupied {
		if float64(b.Requests) > report.Threshold {
			report.Flagged = append(report.Flagged, domain.HourAnomaly{
				Hour:     b.Hour,
				Requests: b.Requests,
			})
		}
	}
	return report
}

// Aggregate dispatches one aggregate computation by kind. Parameters are
// validated before any work happens.
func Aggregate(rs *domain.RecordSet, kind domain.AggregateKind, params domain.AggregateParams) (any, error) {
	if err := paramsValidator.Struct(params); err != nil {
		return nil, fmt.Errorf("invalid aggregate params: %w", err)
	}

	switch kind {
	case domain.AggregateHourly:
		return HourlyHistogram(rs), nil
	case domain.AggregateDaily:
		return DailySeries(rs), nil
	case domain.AggregateTopN:
		if params.Column == "" {
			return nil, fmt.Errorf("top_n requires a column")
		}
		return TopN(rs, domain.Column(params.Column), params.N), nil
	case domain.AggregateStatusDistribution:
		return StatusDistribution(rs), nil
	case domain.AggregateHeatmap:
		return TrafficHeatmap(rs), nil
	case domain.AggregateAnomalies:
		return HourlyAnomalies(rs), nil
	default:
		return nil, fmt.Errorf("unknown aggregate kind %q", kind)
	}
}

// BuildDashboard assembles every aggregate the presentation layer needs
// for one upload. Sections whose required columns are absent stay nil.
func BuildDashboard(rs *domain.RecordSet, topN int) *domain.DashboardReport {
	if topN <= 0 {
		topN = DefaultTopN
	}
	report := &domain.DashboardReport{
		Kind:    rs.Kind,
		Columns: rs.ColumnNames(),
		Summary: Summarize(rs),
		Hourly:  HourlyHistogram(rs),
		Daily:   DailySeries(rs),
	}
	report.TopPages = TopN(rs, domain.ColumnPage, topN)
	report.Top404Pages = Top404Pages(rs, topN)
	report.TopReferrers = TopReferrers(rs, topN)
	report.HotlinkReferrers = HotlinkReferrers(rs, topN)
	report.StatusDistribution = StatusDistribution(rs)
	report.Heatmap = TrafficHeatmap(rs)
	report.Anomalies = HourlyAnomalies(rs)
	return report
}
