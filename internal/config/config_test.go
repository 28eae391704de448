package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, []string{"cortex-m0plus", "cortex-m4", "cortex-m7", "cortex-m55"}, cfg.BuildOrder)
	require.Len(t, cfg.Targets, 4)

	m4, ok := cfg.Target("cortex-m4")
	require.True(t, ok)
	assert.Equal(t, "cortex-m4+fp", m4.Arch)
	assert.Contains(t, m4.Flags, "-mfpu=fpv4-sp-d16")

	assert.Len(t, cfg.Sources, 41)
	assert.Equal(t, "libtf.cc", cfg.Sources[0])
	assert.Len(t, cfg.Makefile.RemovedWarnings, 6)
	assert.Len(t, cfg.Makefile.ExcludedKernels, 2)
	assert.Equal(t, []string{"person", "no_person"}, cfg.Model.Labels)

	var patched int
	for _, o := range cfg.Overlays {
		if o.Patch {
			patched++
		}
	}
	assert.Equal(t, 3, patched)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "small.toml")
	require.NoError(t, os.WriteFile(path, []byte(smallTOML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cortex-m4"}, cfg.BuildOrder)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "cortex-m4+fp", cfg.Targets[0].Arch)
	require.Len(t, cfg.Overlays, 1)
	assert.True(t, cfg.Overlays[0].Patch)
}

func TestParse_UndefinedTargetInOrder(t *testing.T) {
	src := strings.Replace(smallTOML, `build_order = ["cortex-m4"]`, `build_order = ["cortex-m4", "cortex-m3"]`, 1)

	_, err := Parse("bad.toml", []byte(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "cortex-m3")
}

func TestParse_WrongVersion(t *testing.T) {
	src := strings.Replace(smallTOML, "version = 1", "version = 2", 1)

	_, err := Parse("v2.toml", []byte(src))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestParse_DuplicateTarget(t *testing.T) {
	src := smallTOML + `
[[target]]
name = "cortex-m4"
arch = "cortex-m4"
flags = ["-mcpu=cortex-m4"]
`
	_, err := Parse("dup.toml", []byte(src))
	require.Error(t, err)
}

func TestParse_UnknownExtension(t *testing.T) {
	_, err := Parse("build.yaml", []byte("version: 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestParse_BadHCL(t *testing.T) {
	_, err := Parse("broken.hcl", []byte("version = \n"))
	require.Error(t, err)
}

const smallTOML = `version = 1
build_order = ["cortex-m4"]
build_dir = "build"
output_dir = "out"
sources = ["libtf.cc"]

[sdk]
dir = "sdk"
makefile = "Makefile"
gen_dir = "sdk/gen"
generated_name = "gen_{arch}"
platform = "cortex_m_generic"
optimized_kernel = "cmsis_nn"
toolchain_bin = "sdk/gcc/bin"
license = "sdk/LICENSE"

[project]
name = "demo"
subdir = "prj"
runtime_repo = "https://example.invalid/runtime.git"
runtime_dir = "runtime"
glue_files = ["libtf.cc"]
archive = "libdemo.a"

[flags]
common = ["-O3"]
cxx_extra = "-fno-use-cxa-atexit"

[makefile]
examples_dir = "examples"
runtime_prefix = "rt"
schema_header = "schema.h"

[model]
name = "demo"
data = "model.cc"
labels = ["yes"]

[patch]
token = "fprintf"
replacement = "(void)"

[output]
archive = "libtf.a"

[[target]]
name = "cortex-m4"
arch = "cortex-m4+fp"
flags = ["-mcpu=cortex-m4"]

[[overlay]]
src = "kissfft"
dst = "kissfft"
patch = true
`
