package spec

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const maxLineSize = 1024 * 1024

// ParseFile reads and parses the specification file at path.
func ParseFile(path string) ([]*TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	defer f.Close()

	return Parse(f, path)
}

// ParseDir parses the specification file named name inside dir.
func ParseDir(dir, name string) ([]*TestCase, error) {
	if name == "" {
		name = DefaultFileName
	}
	return ParseFile(filepath.Join(dir, name))
}

// Parse reads a specification from r. The filename is only used in errors.
func Parse(r io.Reader, filename string) ([]*TestCase, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, &ParseError{File: filename, Err: err}
		}
		return nil, &FormatError{File: filename, Line: 1, Message: "empty header"}
	}

	header := strings.TrimPrefix(scanner.Text(), "\ufeff")
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, &FormatError{File: filename, Line: 1, Message: "empty header"}
	}

	names := strings.Split(header, ",")
	if err := checkHeader(names); err != nil {
		return nil, &FormatError{File: filename, Line: 1, Message: err.Error()}
	}

	var cases []*TestCase
	seen := make(map[string]int)
	lineNo := 1

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		tc, err := parseRecord(names, line, lineNo)
		if err != nil {
			return nil, &FormatError{File: filename, Line: lineNo, Message: err.Error()}
		}

		if prev, dup := seen[tc.ID]; dup {
			return nil, &FormatError{
				File:    filename,
				Line:    lineNo,
				Message: fmt.Sprintf("duplicate id %q (first defined on line %d)", tc.ID, prev),
			}
		}
		seen[tc.ID] = lineNo

		cases = append(cases, tc)
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{File: filename, Err: err}
	}

	return cases, nil
}

func checkHeader(names []string) error {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	var missing []string
	for _, req := range RequiredFields {
		if !present[req] {
			missing = append(missing, req)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("header is missing required field(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

// parseRecord zips one line against the header names. Values past the end
// of the header are dropped; fields past the end of the values are absent.
func parseRecord(names []string, line string, lineNo int) (*TestCase, error) {
	values := strings.Split(line, ",")

	n := min(len(names), len(values))
	fields := make(map[string]string, n)
	for i := 0; i < n; i++ {
		fields[names[i]] = values[i]
	}

	for _, req := range RequiredFields {
		if _, ok := fields[req]; !ok {
			return nil, fmt.Errorf("record has %d of %d fields, missing %q", len(values), len(names), req)
		}
	}

	exitCode, err := strconv.Atoi(strings.TrimSpace(fields[FieldExitCode]))
	if err != nil {
		return nil, fmt.Errorf("invalid exitcode %q", fields[FieldExitCode])
	}

	id := fields[FieldID]
	if id == "" {
		return nil, fmt.Errorf("empty id")
	}

	return &TestCase{
		ID:       id,
		Args:     strings.Fields(fields[FieldArgs]),
		Output:   fields[FieldOutput],
		ExitCode: exitCode,
		Fields:   fields,
		Line:     lineNo,
	}, nil
}
