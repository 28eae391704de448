// Package flags composes the compiler flag sets for a target.
package flags

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/agentic-research/tflmake/api"
)

// ErrUnknownTarget is returned for a target name the configuration does not define.
var ErrUnknownTarget = errors.New("unknown target")

// FlagSet holds the ordered C and C++ compiler flags for one target.
type FlagSet struct {
	Target string
	Arch   string
	C      []string
	CXX    []string
}

// CFlags returns the C flags as a single command-line string.
func (f FlagSet) CFlags() string { return strings.Join(f.C, " ") }

// CXXFlags returns the C++ flags as a single command-line string.
func (f FlagSet) CXXFlags() string { return strings.Join(f.CXX, " ") }

// Compose builds the flag sets for target. root is the absolute tool
// directory that tool include paths are resolved against.
//
// The C++ set is the C set followed by the one C++-only flag, so the C
// string is always a prefix of the C++ string.
func Compose(cfg *api.BuildConfig, target, root string) (FlagSet, error) {
	t, ok := cfg.Target(target)
	if !ok {
		return FlagSet{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	c := make([]string, 0, len(cfg.Flags.Common)+len(cfg.Flags.ToolIncludes)+len(cfg.Flags.ProjectIncludes)+len(t.Flags))
	c = append(c, cfg.Flags.Common...)
	for _, dir := range cfg.Flags.ToolIncludes {
		c = append(c, "-I"+filepath.Join(root, dir))
	}
	for _, dir := range cfg.Flags.ProjectIncludes {
		c = append(c, "-I./"+path.Clean(dir))
	}
	c = append(c, t.Flags...)

	cxx := make([]string, len(c), len(c)+1)
	copy(cxx, c)
	cxx = append(cxx, cfg.Flags.CXXExtra)

	return FlagSet{Target: t.Name, Arch: t.Arch, C: c, CXX: cxx}, nil
}

// ComposeAll composes every target in build order, failing on the first
// unknown name before anything else happens.
func ComposeAll(cfg *api.BuildConfig, root string) ([]FlagSet, error) {
	sets := make([]FlagSet, 0, len(cfg.BuildOrder))
	for _, name := range cfg.BuildOrder {
		fs, err := Compose(cfg, name, root)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fs)
	}
	return sets, nil
}
