package manifest

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedEntry  = errors.New("manifest: malformed entry")
	ErrMalformedHeader = errors.New("manifest: malformed count header")
	ErrCountMismatch   = errors.New("manifest: entry count mismatch")
)

// LineError locates a parse failure inside manifest text.
type LineError struct {
	Line int    // 1-based, the count header is line 1
	Text string // offending line
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
