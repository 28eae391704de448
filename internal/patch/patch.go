// Package patch neutralizes diagnostic calls in overlaid source trees.
//
// The substitution is purely textual: the token is replaced wherever it
// appears, including comments and string literals.
package patch

import (
	"bytes"
	"fmt"
	"os"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// Dir replaces every occurrence of token with replacement in every
// regular file below dir and returns the number of files rewritten.
// Files that do not contain the token are not touched.
func Dir(fs billy.Filesystem, dir, token, replacement string) (int, error) {
	if token == "" {
		return 0, fmt.Errorf("patch %s: empty token", dir)
	}
	old, repl := []byte(token), []byte(replacement)

	var rewritten int
	err := util.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		changed, err := File(fs, path, old, repl, info.Mode().Perm())
		if err != nil {
			return err
		}
		if changed {
			rewritten++
		}
		return nil
	})
	if err != nil {
		return rewritten, fmt.Errorf("patch %s: %w", dir, err)
	}
	return rewritten, nil
}

// File rewrites a single file in place. It reports whether the content changed.
func File(fs billy.Filesystem, path string, old, repl []byte, perm os.FileMode) (bool, error) {
	content, err := util.ReadFile(fs, path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if !bytes.Contains(content, old) {
		return false, nil
	}
	if err := util.WriteFile(fs, path, bytes.ReplaceAll(content, old, repl), perm); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}
