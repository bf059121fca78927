package indexdb

import (
	"regexp"
	"unicode"
)

// Pattern is a regular expression used to search dictionary entries, e.g.
// symbol names in a code browser.
//
// Patterns are smart-case: matching ignores case unless the expression
// contains an upper-case letter. Matching is unanchored.
type Pattern struct {
	expr string
	re   *regexp.Regexp
}

// NewPattern compiles expr.
func NewPattern(expr string) (*Pattern, error) {
	src := expr
	if !hasUpper(expr) {
		src = "(?i)" + expr
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	return &Pattern{expr: expr, re: re}, nil
}

// MustPattern is like NewPattern but panics if expr does not compile.
func MustPattern(expr string) *Pattern {
	p, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Pattern) String() string { return p.expr }

// Empty reports whether the pattern has no expression and therefore matches
// everything.
func (p *Pattern) Empty() bool { return p == nil || p.expr == "" }

// CaseSensitive reports whether matching distinguishes case.
func (p *Pattern) CaseSensitive() bool { return hasUpper(p.expr) }

// Match reports whether b contains a match.
func (p *Pattern) Match(b []byte) bool {
	if p.Empty() {
		return true
	}
	return p.re.Match(b)
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
