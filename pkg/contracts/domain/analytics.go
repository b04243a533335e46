package domain

// Summary holds the headline metrics for a record set.
type Summary struct {
	TotalRequests     int64   `json:"total_requests"`
	UniqueVisitors    int64   `json:"unique_visitors"`
	ErrorRate4xx      float64 `json:"error_rate_4xx"`
	ErrorRate5xx      float64 `json:"error_rate_5xx"`
	ErrorRateCombined float64 `json:"error_rate_combined"`
	TotalDataSize     int64   `json:"total_data_size"`
	RowCount          int     `json:"row_count"`
}

// HourlyBucket is one bucket of the 24-hour histogram.
type HourlyBucket struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

// DailyPoint is one calendar day of the daily time series.
type DailyPoint struct {
	Date     string `json:"date"`
	Requests int64  `json:"requests"`
}

// TopEntry is one row of a top-N breakdown over a categorical column.
type TopEntry struct {
	Value    string `json:"value"`
	Requests int64  `json:"requests"`
}

// StatusCount is one row of the status code distribution.
type StatusCount struct {
	StatusCode int   `json:"status_code"`
	Requests   int64 `json:"requests"`
}

// Heatmap is the day-of-week by hour-of-day cross tabulation.
// Days are fixed Monday through Sunday; Matrix[d][h] is the request
// weight for day Days[d] at hour h.
type Heatmap struct {
	Days   []string  `json:"days"`
	Matrix [][]int64 `json:"matrix"`
}

// HourAnomaly is one flagged hour of the hourly histogram.
type HourAnomaly struct {
	Hour     int   `json:"hour"`
	Requests int64 `json:"requests"`
}

// AnomalyReport holds the mean+2σ thresholding result over the hourly
// histogram. An empty Flagged slice is a normal outcome, not an error.
type AnomalyReport struct {
	Mean      float64       `json:"mean"`
	StdDev    float64       `json:"std_dev"`
	Threshold float64       `json:"threshold"`
	Flagged   []HourAnomaly `json:"flagged"`
}

// AggregateKind selects which aggregate the dispatcher computes.
type AggregateKind string

const (
	AggregateHourly             AggregateKind = "hourly"
	AggregateDaily              AggregateKind = "daily"
	AggregateTopN               AggregateKind = "top_n"
	AggregateStatusDistribution AggregateKind = "status_distribution"
	AggregateHeatmap            AggregateKind = "heatmap"
	AggregateAnomalies          AggregateKind = "anomalies"
)

// AggregateParams carries the per-kind parameters of an aggregate request.
type AggregateParams struct {
	// Column selects the categorical column for top_n breakdowns.
	Column string `json:"column,omitempty" validate:"omitempty,oneof=ip_address method page_visited status_code referer user_agent browser day_of_week"`
	// N bounds top_n result size.
	N int `json:"n,omitempty" validate:"omitempty,min=1,max=1000"`
}

// DashboardReport bundles every aggregate the presentation layer renders
// for one upload. Sections whose required columns are absent are nil and
// simply omitted from the JSON encoding.
type DashboardReport struct {
	Kind               DatasetKind    `json:"kind"`
	Columns            []string       `json:"columns"`
	Summary            Summary        `json:"summary"`
	Hourly             []HourlyBucket `json:"hourly,omitempty"`
	Daily              []DailyPoint   `json:"daily,omitempty"`
	TopPages           []TopEntry     `json:"top_pages,omitempty"`
	Top404Pages        []TopEntry     `json:"top_404_pages,omitempty"`
	TopReferrers       []TopEntry     `json:"top_referrers,omitempty"`
	HotlinkReferrers   []TopEntry     `json:"hotlink_referrers,omitempty"`
	StatusDistribution []StatusCount  `json:"status_distribution,omitempty"`
	Heatmap            *Heatmap       `json:"heatmap,omitempty"`
	Anomalies          *AnomalyReport `json:"anomalies,omitempty"`
}
