package makefile

import (
	"os"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tflmake/api"
	"github.com/agentic-research/tflmake/internal/config"
	"github.com/agentic-research/tflmake/internal/flags"
)

func fixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/Makefile.gen")
	require.NoError(t, err)
	return string(data)
}

func newTestTransformer(t *testing.T) (*Transformer, *api.BuildConfig, flags.FlagSet) {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	fs, err := flags.Compose(cfg, "cortex-m4", "/opt/tflmake")
	require.NoError(t, err)
	return New(cfg, Params{ToolchainBin: "/opt/tflmake/gcc/bin", Flags: fs}), cfg, fs
}

func TestApply_Fixture(t *testing.T) {
	tr, cfg, fs := newTestTransformer(t)

	out, err := tr.Apply(fixture(t))
	require.NoError(t, err)

	t.Run("no examples references", func(t *testing.T) {
		assert.NotContains(t, out, "tensorflow/lite/micro/examples/person_detection")
		assert.NotContains(t, out, "$(filter-out")
		assert.Contains(t, out, "LIBRARY_OBJS := $(OBJS)\n")
	})

	t.Run("full source list", func(t *testing.T) {
		assert.Contains(t, out, "SRCS := "+strings.Join(cfg.Sources, " ")+" \\\n")
		for _, src := range cfg.Sources {
			assert.Contains(t, out, src)
		}
		// generated entries that survive the strip rules follow the injected list
		assert.Contains(t, out, "tensorflow/lite/micro/micro_interpreter.cc")
	})

	t.Run("stripped entries", func(t *testing.T) {
		assert.NotContains(t, out, "person_detect_model_data.cc")
		assert.NotContains(t, out, "schema_generated.h")
		assert.NotContains(t, out, "ethosu.cc")
		assert.NotContains(t, out, "tflite_detection_postprocess.cc")
		assert.Contains(t, out, "tensorflow/lite/micro/kernels/conv.cc")
	})

	t.Run("warnings removed", func(t *testing.T) {
		for _, w := range cfg.Makefile.RemovedWarnings {
			assert.NotContains(t, out, w+" ", "flag %s still present", w)
		}
		assert.Contains(t, out, "-Werror")
		assert.Contains(t, out, "-Wno-double-promotion", "composed flags must keep their -Wno- forms")
	})

	t.Run("toolchain root", func(t *testing.T) {
		assert.Contains(t, out, "TARGET_TOOLCHAIN_ROOT := /opt/tflmake/gcc/bin/\n")
		assert.NotContains(t, out, "/usr/local/gcc_embedded")
	})

	t.Run("header", func(t *testing.T) {
		lines := strings.SplitN(out, "\n", 4)
		require.Len(t, lines, 4)
		assert.Equal(t, "CCFLAGS = "+fs.CFlags(), lines[0])
		assert.Equal(t, "CXXFLAGS = "+fs.CXXFlags(), lines[1])
		assert.True(t, strings.HasPrefix(lines[2], "TARGET_TOOLCHAIN_ROOT"))
	})
}

func TestApply_Twice(t *testing.T) {
	tr, _, _ := newTestTransformer(t)

	once, err := tr.Apply(fixture(t))
	require.NoError(t, err)

	_, err = tr.Apply(once)
	assert.ErrorIs(t, err, ErrAlreadyTransformed)
}

func TestApply_TransformedBodyWithoutHeader(t *testing.T) {
	tr, _, _ := newTestTransformer(t)

	once, err := tr.Apply(fixture(t))
	require.NoError(t, err)
	body := strings.SplitN(once, "\n", 3)[2]

	// Even without the header, the exactly-once rules no longer match.
	_, err = tr.Apply(body)
	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "library-objs", re.Rule)
	assert.Equal(t, 0, re.Matches)
	assert.ErrorIs(t, err, ErrRulePrecondition)
}

func TestApply_MissingPattern(t *testing.T) {
	tr, _, _ := newTestTransformer(t)

	text := strings.Replace(fixture(t), "-Wstrict-aliasing ", "", -1)
	_, err := tr.Apply(text)

	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "drop-warning-Wstrict-aliasing", re.Rule)
}

func TestApply_DuplicateSourceAnchor(t *testing.T) {
	tr, _, _ := newTestTransformer(t)

	text := fixture(t) + "\nSRCS := \\\nextra.cc\n"
	_, err := tr.Apply(text)

	var re *RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "inject-sources", re.Rule)
	assert.Equal(t, 2, re.Matches)
}

func TestRule_ReplacementIsLiteral(t *testing.T) {
	r := PatternRule("dollar", `ROOT := \S*`, "ROOT := $(HOME)/$1", ExactlyOnce)
	out, err := r.Apply("ROOT := /x\n")
	require.NoError(t, err)
	assert.Equal(t, "ROOT := $(HOME)/$1\n", out)
}

func TestTransformFile(t *testing.T) {
	tr, _, _ := newTestTransformer(t)
	mem := memfs.New()
	require.NoError(t, util.WriteFile(mem, "prj/make/Makefile", []byte(fixture(t)), 0o644))

	require.NoError(t, tr.TransformFile(mem, "prj/make/Makefile"))
	got, err := util.ReadFile(mem, "prj/make/Makefile")
	require.NoError(t, err)
	assert.True(t, Transformed(string(got)))

	// second application is rejected and leaves the file untouched
	err = tr.TransformFile(mem, "prj/make/Makefile")
	assert.ErrorIs(t, err, ErrAlreadyTransformed)
	again, err := util.ReadFile(mem, "prj/make/Makefile")
	require.NoError(t, err)
	assert.Equal(t, got, again)
}
