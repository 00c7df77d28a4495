package runner

import (
	"fmt"
	"regexp"
	"strings"
)

// PatternList is a list of case id patterns. It implements pflag.Value so a
// flag can be repeated on the command line.
type PatternList []*regexp.Regexp

func (l PatternList) String() string {
	ss := make([]string, 0, len(l))
	for _, p := range l {
		ss = append(ss, `"`+p.String()+`"`)
	}
	return strings.Join(ss, " or ")
}

// Set is called by the command line parser
func (l *PatternList) Set(value string) error {
	rx, err := regexp.Compile(value)
	if err != nil {
		return fmt.Errorf("invalid regex: %w", err)
	}
	*l = append(*l, rx)
	return nil
}

func (l *PatternList) Type() string {
	return "regex"
}

func (l PatternList) IsDefined() bool {
	return len(l) != 0
}

func (l PatternList) AnyMatch(id string) bool {
	for _, p := range l {
		if p.MatchString(id) {
			return true
		}
	}
	return false
}

// ParsePatterns compiles each expression into a PatternList.
func ParsePatterns(exprs []string) (PatternList, error) {
	var l PatternList
	for _, e := range exprs {
		if err := l.Set(e); err != nil {
			return nil, fmt.Errorf("%q: %w", e, err)
		}
	}
	return l, nil
}

// RegexFilters selects cases by id. A case runs when it matches at least one
// MustMatch pattern (or none are defined) and no MustNotMatch pattern.
type RegexFilters struct {
	MustMatch    PatternList
	MustNotMatch PatternList
}

func (f RegexFilters) Match(id string) bool {
	return (!f.MustMatch.IsDefined() || f.MustMatch.AnyMatch(id)) &&
		!f.MustNotMatch.AnyMatch(id)
}

func (f RegexFilters) IsDefined() bool {
	return f.MustMatch.IsDefined() || f.MustNotMatch.IsDefined()
}

// Describe returns a human readable summary of the filters, or "" when none
// are set.
func (f RegexFilters) Describe() string {
	var parts []string
	if f.MustMatch.IsDefined() {
		parts = append(parts, "skip any not matching "+f.MustMatch.String())
	}
	if f.MustNotMatch.IsDefined() {
		parts = append(parts, "skip any matching "+f.MustNotMatch.String())
	}
	return strings.Join(parts, "; ")
}
