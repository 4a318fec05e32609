package dynmodel

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// SyntaxError wraps the standard xml.SyntaxError but exposes fields publicly
// and adds context if available.
type SyntaxError struct {
	Msg  string
	Line int
	Err  error // Original underlying error
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("xml error at line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("xml error: %s", e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// WrapBuildError adapts wrapError for callers parsing with xmlnode.Build
// (or xmlnode.BuildWithSpacePolicy) instead of MapXML, so a malformed
// document reports the same line-numbered SyntaxError regardless of which
// of the two parsers caught it -- both sit on top of encoding/xml.Decoder
// and surface the same *xml.SyntaxError on malformed input.
func WrapBuildError(err error) error {
	return wrapError(err)
}

// wrapError attempts to extract line info from standard XML errors
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	// If it's already our type, return
	if _, ok := err.(*SyntaxError); ok {
		return err
	}

	// encoding/xml.SyntaxError, possibly wrapped (xmlnode adds a prefix)
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &SyntaxError{
			Msg:  syntaxErr.Msg,
			Line: syntaxErr.Line,
			Err:  err,
		}
	}

	// Fallback
	return err
}
