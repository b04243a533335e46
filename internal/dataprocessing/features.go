package dataprocessing

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"trafficlens/pkg/contracts/domain"
)

// pseudonymLen is the length of the hex token that replaces an IP address
// when anonymization is enabled.
const pseudonymLen = 16

// EnrichOptions configures the feature derivation pass.
type EnrichOptions struct {
	// AnonymizeIP replaces ip_address with a deterministic one-way token
	// so uniqueness counting stays valid after pseudonymization.
	AnonymizeIP bool
}

// derivationRule declares which source columns a derived column needs and
// how to compute it for one record. Rules whose requirements are not met
// by the record set simply do not fire; no rule may drop a row.
type derivationRule struct {
	requires []domain.Column
	derives  domain.Column
	apply    func(*domain.LogRecord)
}

var derivationRules = []derivationRule{
	{
		requires: []domain.Column{domain.ColumnTimestamp},
		derives:  domain.ColumnHourOfDay,
		apply: func(r *domain.LogRecord) {
			r.HourOfDay = r.Timestamp.Hour()
		},
	},
	{
		requires: []domain.Column{domain.ColumnTimestamp},
		derives:  domain.ColumnDayOfWeek,
		apply: func(r *domain.LogRecord) {
			r.DayOfWeek = r.Timestamp.Weekday().String()
		},
	},
	{
		requires: []domain.Column{domain.ColumnStatus},
		derives:  domain.ColumnStatusCategory,
		apply: func(r *domain.LogRecord) {
			r.StatusCategory = CategorizeStatus(r.StatusCode)
		},
	},
	{
		requires: []domain.Column{domain.ColumnUserAgent},
		derives:  domain.ColumnBrowser,
		apply: func(r *domain.LogRecord) {
			r.Browser = ClassifyBrowser(r.UserAgent)
		},
	},
}

// Enrich computes the derived columns for every record in a single pass.
// Derivations are pure and order independent; which ones run is a strict
// function of the columns the source carried.
func Enrich(rs *domain.RecordSet, opts EnrichOptions) {
	active := make([]derivationRule, 0, len(derivationRules))
	for _, rule := range derivationRules {
		if rs.Columns.HasAll(rule.requires...) {
			active = append(active, rule)
			rs.Columns.Add(rule.derives)
		}
	}

	anonymize := opts.AnonymizeIP && rs.Columns.Has(domain.ColumnIPAddress)

	for i := range rs.Records {
		rec := &rs.Records[i]
		for _, rule := range active {
			rule.apply(rec)
		}
		if anonymize {
			rec.IPAddress = PseudonymizeIP(rec.IPAddress)
		}
	}
}

// CategorizeStatus buckets a status code into the five categories. The
// function is total: anything outside the named 2xx-5xx ranges, including
// 1xx, lands in Other.
func CategorizeStatus(code int) domain.StatusCategory {
	switch {
	case code >= 200 && code <= 299:
		return domain.StatusSuccess
	case code >= 300 && code <= 399:
		return domain.StatusRedirect
	case code >= 400 && code <= 499:
		return domain.StatusClientError
	case code >= 500 && code <= 599:
		return domain.StatusServerError
	default:
		return domain.StatusOther
	}
}

// ClassifyBrowser maps a user agent string to a browser family by
// case-insensitive substring match. Precedence is fixed at
// Safari, Firefox, Chrome, Edge, then Bot; first match wins.
func ClassifyBrowser(userAgent string) domain.Browser {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "safari"):
		return domain.BrowserSafari
	case strings.Contains(ua, "firefox"):
		return domain.BrowserFirefox
	case strings.Contains(ua, "chrome"):
		return domain.BrowserChrome
	case strings.Contains(ua, "edge"):
		return domain.BrowserEdge
	case strings.Contains(ua, "bot"), strings.Contains(ua, "crawl"):
		return domain.BrowserBot
	default:
		return domain.BrowserOther
	}
}

// PseudonymizeIP replaces an IP address with a fixed-length prefix of its
// BLAKE2b-256 digest. Deterministic so distinct-visitor counting survives
// anonymization, and irreversible by construction.
func PseudonymizeIP(ip string) string {
	if ip == "" {
		return ip
	}
	sum := blake2b.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:pseudonymLen]
}
