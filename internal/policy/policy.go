// Package policy compiles window rules into matchable patterns and classifies
// windows against them.
package policy

import (
	"regexp"
	"strings"
)

// Kind tags how a rule key is matched.
type Kind int

const (
	// KindRegex keys are RE2 expressions anchored at the start of the subject.
	KindRegex Kind = iota
	// KindLiteral keys failed to compile and match as a plain prefix.
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindRegex:
		return "regex"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Pattern is one compiled rule key.
type Pattern struct {
	Key  string
	Kind Kind
	re   *regexp.Regexp
}

// NewPattern compiles key as a regular expression, falling back to a literal
// prefix match when the key is not a valid expression. It never fails.
func NewPattern(key string) Pattern {
	if _, err := regexp.Compile(key); err != nil {
		return Pattern{Key: key, Kind: KindLiteral}
	}
	// Match from the first character but allow any suffix.
	return Pattern{Key: key, Kind: KindRegex, re: regexp.MustCompile(`\A(?:` + key + `)`)}
}

// Match reports whether subject starts with a match of the pattern.
func (p Pattern) Match(subject string) bool {
	switch p.Kind {
	case KindRegex:
		return p.re.MatchString(subject)
	case KindLiteral:
		return strings.HasPrefix(subject, p.Key)
	default:
		return false
	}
}
