package dataprocessing

import (
	"bufio"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"trafficlens/pkg/contracts/domain"
)

// Access log grammar. Two fixed patterns tried in order: the 8-field
// Combined Log Format first, then the 6-field Common Log Format, so CLF
// lines without the quoted referer/user-agent suffix still parse.
var (
	combinedLogPattern = regexp.MustCompile(
		`^(\S+) \S+ \S+ \[([^\]]*)\] "(\S+) (\S+) [^"]*" (\d{3}) (\S+) "([^"]*)" "([^"]*)"`)
	commonLogPattern = regexp.MustCompile(
		`^(\S+) \S+ \S+ \[([^\]]*)\] "(\S+) (\S+) [^"]*" (\d{3}) (\S+)`)
)

const defaultChunkSize = 5000

// ProgressFunc receives a monotonic count of lines consumed and lines
// matched while a large input is being parsed. Observability hook only.
type ProgressFunc func(linesRead, linesMatched int64)

// ParseOptions configures the streaming log parser.
type ParseOptions struct {
	// ChunkSize bounds how many parsed rows accumulate before they are
	// flushed to the result, keeping peak memory proportional to the
	// chunk, not the file.
	ChunkSize int
	// Progress, when set, is invoked once per flushed chunk.
	Progress ProgressFunc
	Logger   *slog.Logger
}

func (o *ParseOptions) withDefaults() ParseOptions {
	out := ParseOptions{ChunkSize: defaultChunkSize, Logger: slog.Default()}
	if o == nil {
		return out
	}
	if o.ChunkSize > 0 {
		out.ChunkSize = o.ChunkSize
	}
	out.Progress = o.Progress
	if o.Logger != nil {
		out.Logger = o.Logger
	}
	return out
}

// ParseAccessLog reads Apache/Nginx access log lines and produces a raw
// table of extracted fields. Lines that match neither pattern are skipped
// silently; only a fully non-matching input is an error.
func ParseAccessLog(r io.Reader, opts *ParseOptions) (*RawTable, error) {
	o := opts.withDefaults()

	table := &RawTable{
		Columns: domain.NewColumnSet(
			domain.ColumnIPAddress, domain.ColumnTimestamp,
			domain.ColumnMethod, domain.ColumnPage,
			domain.ColumnStatus, domain.ColumnDataSize,
		),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var linesRead, linesMatched int64
	chunk := make([]RawRow, 0, o.ChunkSize)
	flush := func() {
		if len(chunk) == 0 {
			return
		}
		table.Rows = append(table.Rows, chunk...)
		chunk = chunk[:0]
		if o.Progress != nil {
			o.Progress(linesRead, linesMatched)
		}
	}

	for scanner.Scan() {
		linesRead++
		line := strings.ToValidUTF8(scanner.Text(), "�")

		row, combined, ok := parseLogLine(line)
		if !ok {
			continue
		}
		linesMatched++
		if combined {
			table.Columns.Add(domain.ColumnReferer)
			table.Columns.Add(domain.ColumnUserAgent)
		}
		chunk = append(chunk, row)
		if len(chunk) >= o.ChunkSize {
			flush()
		}
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if linesMatched == 0 {
		return nil, ErrNoValidLogLines
	}

	o.Logger.Debug("access log parsed",
		slog.Int64("lines_read", linesRead),
		slog.Int64("lines_matched", linesMatched),
		slog.Int64("lines_skipped", linesRead-linesMatched))

	return table, nil
}

// parseLogLine matches one line against the grammar, Combined first.
// combined reports which pattern matched: a Combined line carries the
// referer/user_agent fields even when the quoted values are empty, so
// column presence follows the pattern, not the values.
func parseLogLine(line string) (row RawRow, combined, ok bool) {
	if m := combinedLogPattern.FindStringSubmatch(line); m != nil {
		return RawRow{
			IPAddress:   m[1],
			Timestamp:   rewriteApacheTimestamp(m[2]),
			Method:      m[3],
			PageVisited: m[4],
			StatusCode:  m[5],
			DataSize:    m[6],
			Referer:     m[7],
			UserAgent:   m[8],
		}, true, true
	}
	if m := commonLogPattern.FindStringSubmatch(line); m != nil {
		return RawRow{
			IPAddress:   m[1],
			Timestamp:   rewriteApacheTimestamp(m[2]),
			Method:      m[3],
			PageVisited: m[4],
			StatusCode:  m[5],
			DataSize:    m[6],
		}, false, true
	}
	return RawRow{}, false, false
}

// rewriteApacheTimestamp turns 10/Oct/2000:13:55:36 +0000 into
// 10/Oct/2000 13:55:36 +0000. Only the first colon separates the date
// from the time; the rest belong to hour/minute/second.
func rewriteApacheTimestamp(ts string) string {
	return strings.Replace(ts, ":", " ", 1)
}
