// internal/errors/errors.go
package errors

import "fmt"

// ErrInvalidConfig is returned when a configuration value is missing or malformed.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// ErrInvalidProjectRecord is returned when a row of the projects CSV cannot be parsed.
type ErrInvalidProjectRecord struct {
	Line   int
	Reason string
}

func (e *ErrInvalidProjectRecord) Error() string {
	return fmt.Sprintf("invalid project record at line %d: %s", e.Line, e.Reason)
}

// ErrInvalidRules is returned when the heuristics file is unreadable or malformed.
type ErrInvalidRules struct {
	Path   string
	Reason string
}

func (e *ErrInvalidRules) Error() string {
	return fmt.Sprintf("invalid heuristics file %q: %s", e.Path, e.Reason)
}

// ErrMalformedExport is returned when a commit-history export cannot be decoded.
type ErrMalformedExport struct {
	Project string
	Path    string
	Err     error
}

func (e *ErrMalformedExport) Error() string {
	return fmt.Sprintf("malformed export for %s (%s): %v", e.Project, e.Path, e.Err)
}

func (e *ErrMalformedExport) Unwrap() error { return e.Err }

// ErrSegmentMismatch is returned when the raw file-change segmentation of an
// export does not line up with its decoded commit records.
type ErrSegmentMismatch struct {
	Project  string
	Records  int
	Segments int
	Record   int // index of the first disagreeing record, -1 for a count mismatch
}

func (e *ErrSegmentMismatch) Error() string {
	if e.Record >= 0 {
		return fmt.Sprintf("segment mismatch for %s: record %d file list disagrees with its segment", e.Project, e.Record)
	}
	return fmt.Sprintf("segment mismatch for %s: %d records but %d file segments", e.Project, e.Records, e.Segments)
}
