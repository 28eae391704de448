package api

// ConfigVersion is the only BuildConfig version this tool understands.
const ConfigVersion = 1

// BuildConfig is the versioned description of everything a run needs:
// the fixed target list, the flag blocks, the source list and the
// layout of the vendor tree. It is compiled into the binary and can be
// replaced wholesale for tests.
type BuildConfig struct {
	// Version of the configuration schema.
	Version int `hcl:"version" toml:"version" validate:"eq=1"`

	// BuildDir holds per-target workspaces, the run lock and the history database.
	BuildDir string `hcl:"build_dir" toml:"build_dir" validate:"required"`
	// OutputDir is recreated on every run and receives the final artifacts.
	OutputDir string `hcl:"output_dir" toml:"output_dir" validate:"required"`

	// BuildOrder lists target names in the order they are built.
	BuildOrder []string `hcl:"build_order" toml:"build_order" validate:"required,min=1,dive,required"`

	SDK      SDK      `hcl:"sdk,block" toml:"sdk"`
	Project  Project  `hcl:"project,block" toml:"project"`
	Flags    Flags    `hcl:"flags,block" toml:"flags"`
	Makefile Makefile `hcl:"makefile,block" toml:"makefile"`
	Model    Model    `hcl:"model,block" toml:"model"`
	Patch    Patch    `hcl:"patch,block" toml:"patch"`
	Output   Output   `hcl:"output,block" toml:"output"`

	Targets  []Target   `hcl:"target,block" toml:"target" validate:"required,min=1,dive"`
	Overlays []Overlay  `hcl:"overlay,block" toml:"overlay" validate:"dive"`
	Injects  []FileCopy `hcl:"inject,block" toml:"inject" validate:"dive"`

	// Sources replaces the generated source list verbatim, in order.
	Sources []string `hcl:"sources" toml:"sources" validate:"required,min=1,dive,required"`
}

// SDK locates the vendor tree and its generator.
type SDK struct {
	// Dir is the vendor tree, relative to the tool root.
	Dir string `hcl:"dir" toml:"dir" validate:"required"`
	// Makefile is the generator makefile, relative to Dir.
	Makefile string `hcl:"makefile" toml:"makefile" validate:"required"`
	// GenDir is where generated projects land, relative to the tool root.
	GenDir string `hcl:"gen_dir" toml:"gen_dir" validate:"required"`
	// GeneratedName is the generated directory name; {arch} is substituted.
	GeneratedName string `hcl:"generated_name" toml:"generated_name" validate:"required"`
	// Platform is passed as TARGET= to the generator.
	Platform string `hcl:"platform" toml:"platform" validate:"required"`
	// OptimizedKernel is passed as OPTIMIZED_KERNEL_DIR= to the generator.
	OptimizedKernel string `hcl:"optimized_kernel" toml:"optimized_kernel"`
	// ToolchainBin is the staged cross-compiler bin directory, relative to the tool root.
	ToolchainBin string `hcl:"toolchain_bin" toml:"toolchain_bin" validate:"required"`
	// License is the license file copied into the output, relative to the tool root.
	License string `hcl:"license" toml:"license" validate:"required"`
}

// Project describes the generated make project inside a workspace.
type Project struct {
	// Name selects generate_<Name>_make_project.
	Name string `hcl:"name" toml:"name" validate:"required"`
	// Subdir is the make project directory inside the generated tree.
	Subdir string `hcl:"subdir" toml:"subdir" validate:"required"`
	// RuntimeRepo is cloned into RuntimeDir inside Subdir.
	RuntimeRepo string `hcl:"runtime_repo" toml:"runtime_repo" validate:"required"`
	RuntimeDir  string `hcl:"runtime_dir" toml:"runtime_dir" validate:"required"`
	// GlueFiles are copied from the tool root into Subdir.
	GlueFiles []string `hcl:"glue_files" toml:"glue_files" validate:"dive,required"`
	// Archive is the static library make produces inside Subdir.
	Archive string `hcl:"archive" toml:"archive" validate:"required"`
}

// Flags holds the compiler flag blocks shared by every target.
type Flags struct {
	Common []string `hcl:"common" toml:"common" validate:"required,min=1"`
	// ToolIncludes are resolved against the tool root.
	ToolIncludes []string `hcl:"tool_includes" toml:"tool_includes"`
	// ProjectIncludes are resolved against the project directory ("./").
	ProjectIncludes []string `hcl:"project_includes" toml:"project_includes"`
	// CXXExtra is the single flag that only the C++ compiler receives.
	CXXExtra string `hcl:"cxx_extra" toml:"cxx_extra" validate:"required"`
}

// Makefile parameterizes the build description rewrite.
type Makefile struct {
	// ExamplesDir entries are stripped from the generated source list.
	ExamplesDir string `hcl:"examples_dir" toml:"examples_dir" validate:"required"`
	// RuntimePrefix is the prefix of runtime entries in the source list.
	RuntimePrefix string `hcl:"runtime_prefix" toml:"runtime_prefix" validate:"required"`
	// SchemaHeader is stripped from the source list.
	SchemaHeader string `hcl:"schema_header" toml:"schema_header" validate:"required"`
	// ExcludedKernels are kernel sources unsupported by this build profile.
	ExcludedKernels []string `hcl:"excluded_kernels" toml:"excluded_kernels"`
	// RemovedWarnings are deleted from the generated flag lines.
	RemovedWarnings []string `hcl:"removed_warnings" toml:"removed_warnings"`
}

// Model describes the model artifact shipped next to the libraries.
type Model struct {
	Name string `hcl:"name" toml:"name" validate:"required"`
	// Data is the generated C array source, relative to the runtime prefix.
	Data   string   `hcl:"data" toml:"data" validate:"required"`
	Labels []string `hcl:"labels" toml:"labels" validate:"required,min=1"`
}

// Patch is the textual substitution applied to overlays marked for patching.
type Patch struct {
	Token       string `hcl:"token" toml:"token" validate:"required"`
	Replacement string `hcl:"replacement" toml:"replacement"`
}

// Output names the files placed in OutputDir.
type Output struct {
	// Archive is the per-target library file name.
	Archive string `hcl:"archive" toml:"archive" validate:"required"`
	// Header is copied from the tool root into OutputDir.
	Header string `hcl:"header" toml:"header"`
	Readme string `hcl:"readme" toml:"readme"`
}

// Target is one Cortex-M variant.
type Target struct {
	Name  string   `hcl:"name,label" toml:"name" validate:"required"`
	Arch  string   `hcl:"arch" toml:"arch" validate:"required"`
	Flags []string `hcl:"flags" toml:"flags" validate:"required,min=1"`
}

// Overlay copies an auxiliary tree into the project directory.
type Overlay struct {
	// Src is relative to the tool root.
	Src string `hcl:"src" toml:"src" validate:"required"`
	// Dst is relative to the project directory and must not exist yet.
	Dst string `hcl:"dst" toml:"dst" validate:"required"`
	// Patch marks the overlay for the source patcher.
	Patch bool `hcl:"patch,optional" toml:"patch"`
}

// FileCopy copies a single file from the tool root into the project directory.
type FileCopy struct {
	Src string `hcl:"src" toml:"src" validate:"required"`
	Dst string `hcl:"dst" toml:"dst" validate:"required"`
}

// Target returns the target with the given name.
func (c *BuildConfig) Target(name string) (Target, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}
