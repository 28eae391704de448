package makefile

import (
	"fmt"
	"regexp"
	"strings"
)

// Expect is the number of matches a rule requires before it applies.
type Expect int

const (
	// ExactlyOnce requires a single match.
	ExactlyOnce Expect = iota
	// AtLeastOnce requires one or more matches; all are rewritten.
	AtLeastOnce
)

func (e Expect) String() string {
	switch e {
	case ExactlyOnce:
		return "exactly once"
	case AtLeastOnce:
		return "at least once"
	default:
		return fmt.Sprintf("Expect(%d)", int(e))
	}
}

func (e Expect) satisfied(n int) bool {
	if e == ExactlyOnce {
		return n == 1
	}
	return n >= 1
}

// Rule is one named edit of the build description. Exactly one of
// Literal or Pattern is set. Replacement is inserted verbatim; regexp
// expansion is not applied.
type Rule struct {
	Name        string
	Literal     string
	Pattern     *regexp.Regexp
	Replacement string
	Expect      Expect
}

// LiteralRule replaces every occurrence of old.
func LiteralRule(name, old, repl string, expect Expect) Rule {
	return Rule{Name: name, Literal: old, Replacement: repl, Expect: expect}
}

// PatternRule replaces every match of expr.
func PatternRule(name, expr, repl string, expect Expect) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(expr), Replacement: repl, Expect: expect}
}

// count returns how many times the rule matches text.
func (r Rule) count(text string) int {
	if r.Pattern != nil {
		return len(r.Pattern.FindAllStringIndex(text, -1))
	}
	return strings.Count(text, r.Literal)
}

// Apply checks the rule's precondition and rewrites text.
func (r Rule) Apply(text string) (string, error) {
	if r.Pattern == nil && r.Literal == "" {
		return "", fmt.Errorf("rule %s: no pattern", r.Name)
	}
	n := r.count(text)
	if !r.Expect.satisfied(n) {
		return "", &RuleError{Rule: r.Name, Matches: n, Expect: r.Expect}
	}
	if r.Pattern != nil {
		return r.Pattern.ReplaceAllLiteralString(text, r.Replacement), nil
	}
	return strings.ReplaceAll(text, r.Literal, r.Replacement), nil
}
