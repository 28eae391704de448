// Package stage assembles the self-contained project tree for one target.
package stage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/ternarybob/arbor"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/fsutil"
	"github.com/agentic-research/tflmake/internal/toolchain"
)

// Stager materializes per-target workspaces under the build directory.
// All paths handed to FS are relative to Root.
type Stager struct {
	Config    *api.BuildConfig
	FS        billy.Filesystem
	Root      string
	Toolchain *toolchain.Toolchain
	Logger    arbor.ILogger

	// SkipGeneration reuses an existing generated project instead of
	// running the generator. The caller vouches that it is current.
	SkipGeneration bool
}

// Workspace is a staged target. Close removes it.
type Workspace struct {
	Target api.Target
	// Dir is the workspace root, relative to the tool root.
	Dir string
	// ProjectDir is the make project inside Dir, relative to the tool root.
	ProjectDir string
	// AbsProjectDir is ProjectDir on the host, for external commands.
	AbsProjectDir string
	// PatchDirs are the overlay destinations that need the source patch.
	PatchDirs []string

	fs billy.Filesystem
}

// Path joins elem onto the project directory.
func (w *Workspace) Path(elem ...string) string {
	return path.Join(append([]string{w.ProjectDir}, elem...)...)
}

// Close removes the workspace directory.
func (w *Workspace) Close() error {
	return fsutil.RemoveAll(w.fs, w.Dir)
}

// GeneratedDir is where the generator leaves the project for arch.
func (s *Stager) GeneratedDir(arch string) string {
	return path.Join(s.Config.SDK.GenDir, strings.ReplaceAll(s.Config.SDK.GeneratedName, "{arch}", arch))
}

// Stage runs the generator if needed, copies the generated project into
// a fresh workspace, overlays the auxiliary trees, injects the fixed
// files, fetches the runtime tree and copies the glue sources. If any
// step fails the partial workspace is removed.
func (s *Stager) Stage(ctx context.Context, target api.Target) (*Workspace, error) {
	cfg := s.Config
	genDir := s.GeneratedDir(target.Arch)

	if s.SkipGeneration && fsutil.IsDir(s.FS, genDir) {
		s.Logger.Info().Str("target", target.Name).Str("dir", genDir).Msg("Reusing generated project")
	} else {
		s.Logger.Info().Str("target", target.Name).Str("arch", target.Arch).Msg("Generating project")
		if err := s.Toolchain.Generate(ctx, target.Arch, cfg.Project.Name); err != nil {
			return nil, fmt.Errorf("generate %s: %w", target.Name, err)
		}
	}

	ws := &Workspace{
		Target: target,
		Dir:    path.Join(cfg.BuildDir, target.Name),
		fs:     s.FS,
	}
	ws.ProjectDir = path.Join(ws.Dir, cfg.Project.Subdir)
	ws.AbsProjectDir = filepath.Join(s.Root, filepath.FromSlash(ws.ProjectDir))

	if err := fsutil.RemoveAll(s.FS, ws.Dir); err != nil {
		return nil, err
	}
	if err := fsutil.CopyTree(s.FS, genDir, s.FS, ws.Dir); err != nil {
		_ = ws.Close() // best-effort cleanup
		return nil, fmt.Errorf("copy generated project: %w", err)
	}

	if err := s.populate(ctx, ws); err != nil {
		_ = ws.Close() // best-effort cleanup
		return nil, err
	}
	return ws, nil
}

func (s *Stager) populate(ctx context.Context, ws *Workspace) error {
	cfg := s.Config

	for _, o := range cfg.Overlays {
		dst := ws.Path(o.Dst)
		if err := fsutil.CopyTree(s.FS, o.Src, s.FS, dst); err != nil {
			return fmt.Errorf("overlay %s: %w", o.Src, err)
		}
		if o.Patch {
			ws.PatchDirs = append(ws.PatchDirs, dst)
		}
	}

	for _, f := range cfg.Injects {
		if err := fsutil.CopyFile(s.FS, f.Src, s.FS, ws.Path(f.Dst)); err != nil {
			return fmt.Errorf("inject %s: %w", f.Src, err)
		}
	}

	s.Logger.Info().Str("target", ws.Target.Name).Str("repo", cfg.Project.RuntimeRepo).Msg("Fetching runtime tree")
	if err := s.Toolchain.Clone(ctx, ws.AbsProjectDir, cfg.Project.RuntimeRepo, cfg.Project.RuntimeDir); err != nil {
		return fmt.Errorf("fetch runtime: %w", err)
	}

	for _, g := range cfg.Project.GlueFiles {
		if err := fsutil.CopyFile(s.FS, g, s.FS, ws.Path(path.Base(g))); err != nil {
			return fmt.Errorf("copy glue %s: %w", g, err)
		}
	}
	return nil
}
