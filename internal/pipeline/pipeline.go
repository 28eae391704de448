// Package pipeline sequences a full build: flag composition for every
// target, the shared downloads, the output directory skeleton and then
// one staged, patched, transformed and compiled workspace per target.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/flags"
	"github.com/agentic-research/tflmake/internal/fsutil"
	"github.com/agentic-research/tflmake/internal/ledger"
	"github.com/agentic-research/tflmake/internal/runlock"
	"github.com/agentic-research/tflmake/internal/stage"
	"github.com/agentic-research/tflmake/internal/toolchain"
)

const (
	lockName    = ".lock"
	historyName = "history.db"
	modelsDir   = "models"
	licenseName = "LICENSE"
	readmeName  = "README"
)

// Pipeline runs builds for one tool tree. FS must be rooted at Root.
type Pipeline struct {
	Config    *api.BuildConfig
	Root      string
	FS        billy.Filesystem
	Toolchain *toolchain.Toolchain
	Logger    arbor.ILogger

	SkipGeneration bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// HistoryPath is the ledger location for cfg in the tool tree at root.
func HistoryPath(cfg *api.BuildConfig, root string) string {
	return filepath.Join(root, filepath.FromSlash(cfg.BuildDir), historyName)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) lock() (*runlock.Lock, error) {
	return runlock.Acquire(filepath.Join(p.Root, filepath.FromSlash(p.Config.BuildDir), lockName))
}

// Clean runs the generator's clean goals. It touches nothing else.
func (p *Pipeline) Clean(ctx context.Context) error {
	lock, err := p.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }() // best-effort cleanup

	p.Logger.Info().Str("dir", p.Toolchain.SDKDir).Msg("Cleaning generator state")
	if err := p.Toolchain.Clean(ctx); err != nil {
		return fmt.Errorf("clean: %w", err)
	}
	return nil
}

// Run builds every target in build order and returns the run manifest.
// Every flag set is composed before any external command starts, so a
// bad target list fails without side effects.
func (p *Pipeline) Run(ctx context.Context) (*Manifest, error) {
	sets, err := flags.ComposeAll(p.Config, p.Root)
	if err != nil {
		return nil, err
	}

	lock, err := p.lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }() // best-effort cleanup

	history, err := ledger.Open(HistoryPath(p.Config, p.Root))
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer func() { _ = history.Close() }() // best-effort cleanup

	runID := uuid.New().String()
	started := p.now()
	if err := history.StartRun(runID, started); err != nil {
		return nil, err
	}
	p.Logger.Info().Str("run", runID).Int("targets", len(sets)).Msg("Build started")

	m, runErr := p.run(ctx, history, runID, started, sets)
	if err := history.FinishRun(runID, p.now(), runErr); err != nil {
		p.Logger.Warn().Err(err).Str("run", runID).Msg("Failed to record run status")
	}
	if runErr != nil {
		p.Logger.Error().Err(runErr).Str("run", runID).Msg("Build failed")
		return nil, runErr
	}
	p.Logger.Info().Str("run", runID).Str("output", p.Config.OutputDir).Msg("Build finished")
	return m, nil
}

func (p *Pipeline) run(ctx context.Context, history *ledger.Ledger, runID string, started time.Time, sets []flags.FlagSet) (*Manifest, error) {
	cfg := p.Config

	p.Logger.Info().Msg("Fetching third-party downloads")
	if err := p.Toolchain.ThirdPartyDownloads(ctx); err != nil {
		return nil, fmt.Errorf("third-party downloads: %w", err)
	}

	if err := p.prepareOutput(); err != nil {
		return nil, fmt.Errorf("prepare output: %w", err)
	}

	stager := &stage.Stager{
		Config:         cfg,
		FS:             p.FS,
		Root:           p.Root,
		Toolchain:      p.Toolchain,
		Logger:         p.Logger,
		SkipGeneration: p.SkipGeneration,
	}

	m := newManifest(runID, started, cfg)
	for i, set := range sets {
		res, err := p.buildTarget(ctx, stager, set, i == 0)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", set.Target, err)
		}
		if res.model != nil {
			m.Model = res.model
		}
		m.Targets = append(m.Targets, res.entry)

		if err := history.RecordTarget(ledger.TargetRecord{
			RunID:    runID,
			Target:   res.entry.Name,
			Arch:     res.entry.Arch,
			Archive:  path.Join(cfg.OutputDir, res.entry.Archive),
			SHA256:   res.entry.SHA256,
			Size:     res.entry.Size,
			Duration: res.duration,
		}); err != nil {
			return nil, err
		}
	}

	if m.Model == nil {
		return nil, errors.New("no target produced the model artifact")
	}
	if err := m.write(p.FS, cfg.OutputDir); err != nil {
		return nil, err
	}
	return m, nil
}

// prepareOutput recreates the output directory with its shared files.
func (p *Pipeline) prepareOutput() error {
	cfg := p.Config
	out := cfg.OutputDir

	if err := fsutil.Reset(p.FS, out); err != nil {
		return err
	}
	if err := p.FS.MkdirAll(path.Join(out, modelsDir), 0o755); err != nil {
		return fmt.Errorf("mkdir models: %w", err)
	}

	labels := strings.Join(cfg.Model.Labels, "\n") + "\n"
	if err := util.WriteFile(p.FS, path.Join(out, modelsDir, cfg.Model.Name+".txt"), []byte(labels), 0o644); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	if err := fsutil.CopyFile(p.FS, cfg.Output.Header, p.FS, path.Join(out, path.Base(cfg.Output.Header))); err != nil {
		return fmt.Errorf("copy header: %w", err)
	}
	if err := fsutil.CopyFile(p.FS, cfg.SDK.License, p.FS, path.Join(out, licenseName)); err != nil {
		return fmt.Errorf("copy license: %w", err)
	}
	if err := util.WriteFile(p.FS, path.Join(out, readmeName), []byte(cfg.Output.Readme), 0o644); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}
	return nil
}
