package dataprocessing

import "errors"

// Input-rejection errors are terminal for the run. Row-level defects
// (bad timestamps, non-matching lines, unparseable numbers) are absorbed
// at the stage that detects them and never surface individually.
var (
	// ErrBinaryContent is returned when the input looks like binary data
	// rather than a text log.
	ErrBinaryContent = errors.New("not a text log")

	// ErrNoValidLogLines is returned when no line of the input matches the
	// access log grammar.
	ErrNoValidLogLines = errors.New("no valid log lines")

	// ErrNoTimestampColumn is returned when the input has neither a
	// timestamp nor a minute column.
	ErrNoTimestampColumn = errors.New("input has neither a timestamp nor a minute column")

	// ErrUnsupportedFormat is returned for file extensions the ingest
	// router does not recognize.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyInput is returned when the input contains no data rows at all.
	ErrEmptyInput = errors.New("input contains no data")
)
