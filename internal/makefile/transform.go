// Package makefile rewrites a generated build description so it builds
// the fixed source list with the staged cross compiler.
//
// The rewrite is a fixed, ordered list of named rules over the file text.
// Every rule states how often its pattern must match; a rule that finds
// nothing fails the whole transform instead of silently doing nothing.
package makefile

import (
	"fmt"
	"regexp"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/flags"
	"github.com/agentic-research/tflmake/internal/fsutil"
)

const (
	cFlagsVar   = "CCFLAGS"
	cxxFlagsVar = "CXXFLAGS"
)

// Params are the run-specific inputs of the rule set.
type Params struct {
	// ToolchainBin is the absolute cross-compiler bin directory.
	ToolchainBin string
	Flags        flags.FlagSet
}

// Transformer applies Rules in order and prepends the flag assignments.
type Transformer struct {
	Rules  []Rule
	Header []string
}

// New builds the rule set for cfg.
func New(cfg *api.BuildConfig, p Params) *Transformer {
	mk := cfg.Makefile
	q := regexp.QuoteMeta

	rules := []Rule{
		PatternRule("toolchain-root",
			`TARGET_TOOLCHAIN_ROOT := \S*`,
			"TARGET_TOOLCHAIN_ROOT := "+strings.TrimSuffix(p.ToolchainBin, "/")+"/",
			ExactlyOnce),
		LiteralRule("library-objs",
			"LIBRARY_OBJS := $(filter-out "+mk.ExamplesDir+"/%, $(OBJS))",
			"LIBRARY_OBJS := $(OBJS)",
			ExactlyOnce),
		PatternRule("strip-examples", ` `+q(mk.ExamplesDir+"/")+`\S*`, "", AtLeastOnce),
		PatternRule("strip-model-data", ` `+q(mk.RuntimePrefix+"/"+cfg.Model.Data), "", AtLeastOnce),
		PatternRule("strip-schema-header", ` `+q(mk.SchemaHeader), "", AtLeastOnce),
	}
	for _, k := range mk.ExcludedKernels {
		rules = append(rules, PatternRule("strip-kernel-"+lastElem(k), ` `+q(k), "", AtLeastOnce))
	}
	rules = append(rules, LiteralRule("inject-sources",
		`SRCS := \`,
		"SRCS := "+strings.Join(cfg.Sources, " ")+` \`,
		ExactlyOnce))
	for _, w := range mk.RemovedWarnings {
		rules = append(rules, LiteralRule("drop-warning"+w, w+" ", " ", AtLeastOnce))
	}

	return &Transformer{
		Rules: rules,
		Header: []string{
			cFlagsVar + " = " + p.Flags.CFlags(),
			cxxFlagsVar + " = " + p.Flags.CXXFlags(),
		},
	}
}

// Apply transforms text. It fails if text was already transformed or if
// any rule's precondition is not met.
func (t *Transformer) Apply(text string) (string, error) {
	if Transformed(text) {
		return "", ErrAlreadyTransformed
	}
	for _, r := range t.Rules {
		var err error
		if text, err = r.Apply(text); err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for _, h := range t.Header {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString(text)
	return b.String(), nil
}

// TransformFile rewrites the build description at path in place. On
// error the file is left as it was.
func (t *Transformer) TransformFile(fs billy.Filesystem, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	out, err := t.Apply(string(data))
	if err != nil {
		return fmt.Errorf("transform %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(fs, path, []byte(out), info.Mode().Perm())
}

// Transformed reports whether text starts with the two injected flag assignments.
func Transformed(text string) bool {
	lines := strings.SplitN(text, "\n", 3)
	return len(lines) >= 2 &&
		strings.HasPrefix(lines[0], cFlagsVar+" = ") &&
		strings.HasPrefix(lines[1], cxxFlagsVar+" = ")
}

func lastElem(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
