package sorter

import (
	"errors"
	"fmt"
)

// ErrNameCollisionExhausted is returned when no free disambiguated name can
// be found even with the full digest as the fragment.
var ErrNameCollisionExhausted = errors.New("name collision: disambiguation exhausted")

// ArgumentError reports bad command-line input. It aborts the run before any
// file is touched.
type ArgumentError struct {
	Arg string
	Msg string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Arg, e.Msg)
}

// ReadError reports a source (or existing bucket entry) that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read %q: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a destination that could not be written.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %q: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// ErrorReporter records a non-fatal discovery problem for path at stage.
type ErrorReporter func(path, stage, errMsg string)

// failureReason classifies err into the short reason shown in the summary.
func failureReason(err error) string {
	var re *ReadError
	var we *WriteError
	switch {
	case errors.As(err, &re):
		return "read error"
	case errors.As(err, &we):
		return "write error"
	case errors.Is(err, ErrNameCollisionExhausted):
		return "name collision"
	default:
		return "error"
	}
}
