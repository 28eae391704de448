package toolchain

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/agentic-research/tflmake/api"
)

// Toolchain issues the make and git invocations of a build.
type Toolchain struct {
	Runner Runner

	// SDKDir is the absolute vendor tree; generator commands run there.
	SDKDir string
	// Makefile is the generator makefile, relative to SDKDir.
	Makefile string
	// Platform and OptimizedKernel are passed to the generator.
	Platform        string
	OptimizedKernel string
	// Jobs is passed to make as -j.
	Jobs int

	Make string
	Git  string
}

// New returns the toolchain described by cfg for the tool tree at root.
func New(cfg *api.BuildConfig, root string, r Runner, jobs int) *Toolchain {
	return &Toolchain{
		Runner:          r,
		SDKDir:          filepath.Join(root, filepath.FromSlash(cfg.SDK.Dir)),
		Makefile:        cfg.SDK.Makefile,
		Platform:        cfg.SDK.Platform,
		OptimizedKernel: cfg.SDK.OptimizedKernel,
		Jobs:            jobs,
	}
}

func (t *Toolchain) makeBin() string {
	if t.Make == "" {
		return "make"
	}
	return t.Make
}

func (t *Toolchain) gitBin() string {
	if t.Git == "" {
		return "git"
	}
	return t.Git
}

func (t *Toolchain) jobs() string {
	if t.Jobs < 1 {
		return "-j1"
	}
	return "-j" + strconv.Itoa(t.Jobs)
}

func (t *Toolchain) sdkMake(args ...string) Command {
	return Command{
		Dir:  t.SDKDir,
		Name: t.makeBin(),
		Args: append([]string{"-f", t.Makefile}, args...),
	}
}

// ThirdPartyDownloads fetches the shared vendor downloads.
func (t *Toolchain) ThirdPartyDownloads(ctx context.Context) error {
	return t.run(ctx, t.sdkMake("third_party_downloads"))
}

// Generate produces the make project for arch under the vendor gen directory.
func (t *Toolchain) Generate(ctx context.Context, arch, project string) error {
	args := []string{
		t.jobs(),
		"TARGET=" + t.Platform,
		"TARGET_ARCH=" + arch,
	}
	if t.OptimizedKernel != "" {
		args = append(args, "OPTIMIZED_KERNEL_DIR="+t.OptimizedKernel)
	}
	args = append(args, "generate_"+project+"_make_project")
	return t.run(ctx, t.sdkMake(args...))
}

// Clean runs the generator's clean and clean_downloads goals.
func (t *Toolchain) Clean(ctx context.Context) error {
	if err := t.run(ctx, t.sdkMake("clean")); err != nil {
		return err
	}
	return t.run(ctx, t.sdkMake("clean_downloads"))
}

// Clone fetches repo into dest, relative to dir.
func (t *Toolchain) Clone(ctx context.Context, dir, repo, dest string) error {
	return t.run(ctx, Command{Dir: dir, Name: t.gitBin(), Args: []string{"clone", repo, dest}})
}

// Compile builds the static library goal of the project in dir.
func (t *Toolchain) Compile(ctx context.Context, dir string) error {
	return t.run(ctx, Command{Dir: dir, Name: t.makeBin(), Args: []string{t.jobs(), "lib"}})
}

func (t *Toolchain) run(ctx context.Context, c Command) error {
	if t.Runner == nil {
		return fmt.Errorf("toolchain: no runner configured for %s", c)
	}
	if !filepath.IsAbs(c.Dir) {
		return fmt.Errorf("toolchain: %s: working directory %q is not absolute", c, c.Dir)
	}
	return t.Runner.Run(ctx, c)
}
