package flags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tflmake/internal/config"
)

func TestCompose_AllTargets(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	for _, name := range cfg.BuildOrder {
		t.Run(name, func(t *testing.T) {
			fs, err := Compose(cfg, name, "/opt/tflmake")
			require.NoError(t, err)

			c, cxx := fs.CFlags(), fs.CXXFlags()
			assert.NotEmpty(t, c)
			assert.NotEmpty(t, cxx)

			// C++ is the C string plus exactly one flag.
			require.True(t, strings.HasPrefix(cxx, c))
			extra := strings.Fields(strings.TrimPrefix(cxx, c))
			assert.Equal(t, []string{"-fno-use-cxa-atexit"}, extra)
			assert.Len(t, fs.CXX, len(fs.C)+1)
		})
	}
}

func TestCompose_Order(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	fs, err := Compose(cfg, "cortex-m7", "/opt/tflmake")
	require.NoError(t, err)
	assert.Equal(t, "cortex-m7+fp", fs.Arch)

	// common block first, architecture block last
	assert.Equal(t, "-Wno-double-promotion", fs.C[0])
	assert.Equal(t, "-mtune=cortex-m7", fs.C[len(fs.C)-1])
	assert.Contains(t, fs.C, "-I/opt/tflmake")
	assert.Contains(t, fs.C, "-I/opt/tflmake/edge-impulse-sdk")
	assert.Contains(t, fs.C, "-I./tensorflow/lite/micro/tools/make/downloads/kissfft")
	assert.Contains(t, fs.C, "-mfpu=fpv5-sp-d16")
}

func TestCompose_SoftFloatHasNoFPU(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	fs, err := Compose(cfg, "cortex-m0plus", "/opt/tflmake")
	require.NoError(t, err)
	assert.Contains(t, fs.C, "-mfloat-abi=soft")
	for _, f := range fs.C {
		assert.False(t, strings.HasPrefix(f, "-mfpu="), "unexpected %s", f)
	}
}

func TestCompose_UnknownTarget(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)

	_, err = Compose(cfg, "cortex-m3", "/opt/tflmake")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTarget)
	assert.Contains(t, err.Error(), "cortex-m3")
}

func TestComposeAll_FailsFast(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.BuildOrder = []string{"cortex-m4", "riscv", "cortex-m7"}

	_, err = ComposeAll(cfg, "/opt/tflmake")
	assert.ErrorIs(t, err, ErrUnknownTarget)
}
