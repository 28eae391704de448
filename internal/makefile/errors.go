package makefile

import (
	"errors"
	"fmt"
)

// ErrAlreadyTransformed is returned for a build description that already
// carries the injected flag assignments. The transform applies once, to
// a freshly generated file.
var ErrAlreadyTransformed = errors.New("build description already transformed")

// ErrRulePrecondition is the kind wrapped by every RuleError.
var ErrRulePrecondition = errors.New("rule precondition not met")

// RuleError reports a rule whose pattern did not match the expected
// number of times. This usually means the upstream generator changed
// its output format.
type RuleError struct {
	Rule    string
	Matches int
	Expect  Expect
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("%s: rule %q matched %d times, want %s", ErrRulePrecondition, e.Rule, e.Matches, e.Expect)
}

func (e *RuleError) Unwrap() error { return ErrRulePrecondition }
