package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/agentic-research/tflmake/internal/flags"
	"github.com/agentic-research/tflmake/internal/fsutil"
	"github.com/agentic-research/tflmake/internal/makefile"
	"github.com/agentic-research/tflmake/internal/model"
	"github.com/agentic-research/tflmake/internal/patch"
	"github.com/agentic-research/tflmake/internal/stage"
)

type targetResult struct {
	entry    TargetEntry
	model    *ModelEntry
	duration time.Duration
}

// buildTarget stages, patches, transforms and compiles one target, then
// collects its archive. The workspace is removed on every exit path.
func (p *Pipeline) buildTarget(ctx context.Context, stager *stage.Stager, set flags.FlagSet, extractModel bool) (res targetResult, err error) {
	cfg := p.Config
	target, ok := cfg.Target(set.Target)
	if !ok {
		return res, fmt.Errorf("%w: %q", flags.ErrUnknownTarget, set.Target)
	}
	start := p.now()

	ws, err := stager.Stage(ctx, target)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("remove workspace: %w", cerr)
		}
	}()

	for _, dir := range ws.PatchDirs {
		n, err := patch.Dir(p.FS, dir, cfg.Patch.Token, cfg.Patch.Replacement)
		if err != nil {
			return res, fmt.Errorf("patch %s: %w", dir, err)
		}
		p.Logger.Debug().Str("target", target.Name).Str("dir", dir).Int("files", n).Msg("Patched sources")
	}

	tr := makefile.New(cfg, makefile.Params{
		ToolchainBin: filepath.Join(p.Root, filepath.FromSlash(cfg.SDK.ToolchainBin)),
		Flags:        set,
	})
	if err := tr.TransformFile(p.FS, ws.Path("Makefile")); err != nil {
		return res, err
	}

	p.Logger.Info().Str("target", target.Name).Int("jobs", p.Toolchain.Jobs).Msg("Compiling")
	if err := p.Toolchain.Compile(ctx, ws.AbsProjectDir); err != nil {
		return res, fmt.Errorf("compile: %w", err)
	}

	targetOut := path.Join(cfg.OutputDir, target.Name)
	if err := fsutil.Reset(p.FS, targetOut); err != nil {
		return res, err
	}
	archive := path.Join(targetOut, cfg.Output.Archive)
	if err := fsutil.CopyFile(p.FS, ws.Path(cfg.Project.Archive), p.FS, archive); err != nil {
		return res, fmt.Errorf("copy archive: %w", err)
	}
	size, sum, err := digest(p.FS, archive)
	if err != nil {
		return res, err
	}
	res.entry = TargetEntry{
		Name:     target.Name,
		Arch:     target.Arch,
		Archive:  path.Join(target.Name, cfg.Output.Archive),
		Size:     size,
		SHA256:   sum,
		CFlags:   set.CFlags(),
		CXXFlags: set.CXXFlags(),
	}
	p.Logger.Info().Str("target", target.Name).Str("archive", archive).Int64("bytes", size).Msg("Archive collected")

	if extractModel {
		rel := path.Join(modelsDir, cfg.Model.Name+".tflite")
		n, err := model.Convert(p.FS, ws.Path(cfg.Makefile.RuntimePrefix, cfg.Model.Data), path.Join(cfg.OutputDir, rel))
		if err != nil {
			return res, fmt.Errorf("extract model: %w", err)
		}
		_, msum, err := digest(p.FS, path.Join(cfg.OutputDir, rel))
		if err != nil {
			return res, err
		}
		res.model = &ModelEntry{
			Name:   cfg.Model.Name,
			File:   rel,
			Size:   int64(n),
			SHA256: msum,
			Labels: cfg.Model.Labels,
		}
		p.Logger.Info().Str("model", cfg.Model.Name).Int("bytes", n).Msg("Model extracted")
	}

	res.duration = p.now().Sub(start)
	return res, nil
}

func digest(fs billy.Filesystem, name string) (int64, string, error) {
	data, err := util.ReadFile(fs, name)
	if err != nil {
		return 0, "", fmt.Errorf("read %s: %w", name, err)
	}
	sum := sha256.Sum256(data)
	return int64(len(data)), hex.EncodeToString(sum[:]), nil
}
