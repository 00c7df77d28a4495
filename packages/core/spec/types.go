package spec

import (
	"errors"
	"fmt"
	"io/fs"
)

// DefaultFileName is the specification file looked up in every suite directory.
const DefaultFileName = "runtests.csv"

// Required field names.
const (
	FieldID       = "id"
	FieldArgs     = "args"
	FieldOutput   = "output"
	FieldExitCode = "exitcode"
)

// RequiredFields lists the fields every record must carry.
var RequiredFields = []string{FieldID, FieldArgs, FieldOutput, FieldExitCode}

// TestCase is one record of a specification file.
type TestCase struct {
	ID       string
	Args     []string
	Output   string
	ExitCode int
	// Fields holds every value of the record keyed by header name,
	// including the required ones.
	Fields map[string]string
	Line   int
}

// Flag returns the first argument, conventionally a flag.
func (tc *TestCase) Flag() string {
	if len(tc.Args) > 0 {
		return tc.Args[0]
	}
	return ""
}

// Filename returns the second argument, conventionally an input file.
func (tc *TestCase) Filename() string {
	if len(tc.Args) > 1 {
		return tc.Args[1]
	}
	return ""
}

// Field returns the raw value of a named field.
func (tc *TestCase) Field(name string) (string, bool) {
	v, ok := tc.Fields[name]
	return v, ok
}

// ParseError reports a specification file that could not be read.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("reading spec %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError reports a structurally malformed specification file.
type FormatError struct {
	File    string
	Line    int
	Message string
}

func (e *FormatError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// IsNotFound reports whether err means the specification file does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsFormatError reports whether err is or wraps a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
