package graph

import "fmt"

// FormatError reports a malformed graph file. Line is 1-based for text
// files and 0 for binary snapshots.
type FormatError struct {
	Format string // "text" or "binary"
	Line   int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.Line > 0 {
		return fmt.Sprintf("graph: %s line %d: %s", e.Format, e.Line, msg)
	}
	return fmt.Sprintf("graph: %s: %s", e.Format, msg)
}

func (e *FormatError) Unwrap() error { return e.Err }

// BoundsError reports an out-of-range node or edge index passed to an
// accessor. It signals a caller bug, not bad input data.
type BoundsError struct {
	What  string // "node" or "edge"
	Index uint32
	Limit uint32
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("graph: %s %d out of range [0, %d)", e.What, e.Index, e.Limit)
}

func textError(line int, format string, args ...any) *FormatError {
	return &FormatError{Format: "text", Line: line, Reason: fmt.Sprintf(format, args...)}
}

func binaryError(reason string, err error) *FormatError {
	return &FormatError{Format: "binary", Reason: reason, Err: err}
}
