package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyTree(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "src/a.c", []byte("int a;\n"), 0o644))
	require.NoError(t, util.WriteFile(fs, "src/tools/b.c", []byte("int b;\n"), 0o644))

	require.NoError(t, CopyTree(fs, "src", fs, "dst/nested"))

	got, err := util.ReadFile(fs, "dst/nested/a.c")
	require.NoError(t, err)
	assert.Equal(t, "int a;\n", string(got))

	got, err = util.ReadFile(fs, "dst/nested/tools/b.c")
	require.NoError(t, err)
	assert.Equal(t, "int b;\n", string(got))
}

func TestCopyTree_DestinationExists(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "src/a.c", []byte("x"), 0o644))
	require.NoError(t, fs.MkdirAll("dst", 0o755))

	err := CopyTree(fs, "src", fs, "dst")
	assert.ErrorIs(t, err, ErrDestinationExists)
}

func TestCopyTree_MissingSource(t *testing.T) {
	fs := memfs.New()
	err := CopyTree(fs, "nope", fs, "dst")
	assert.Error(t, err)
}

func TestCopyTree_AcrossFilesystems(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "libm"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "libm", "exp.c"), []byte("double exp;"), 0o600))

	host := osfs.New(root)
	mem := memfs.New()
	require.NoError(t, CopyTree(host, "libm", mem, "ws/libm"))

	got, err := util.ReadFile(mem, "ws/libm/exp.c")
	require.NoError(t, err)
	assert.Equal(t, "double exp;", string(got))
}

func TestCopyFile_Overwrites(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "a.h", []byte("new"), 0o644))
	require.NoError(t, util.WriteFile(fs, "deep/dir/a.h", []byte("old"), 0o644))

	require.NoError(t, CopyFile(fs, "a.h", fs, "deep/dir/a.h"))
	got, err := util.ReadFile(fs, "deep/dir/a.h")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestReset(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "out/stale.a", []byte("x"), 0o644))

	require.NoError(t, Reset(fs, "out"))
	ok, err := Exists(fs, "out/stale.a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, IsDir(fs, "out"))
}

func TestWriteFileAtomic(t *testing.T) {
	root := t.TempDir()
	fs := osfs.New(root)

	require.NoError(t, WriteFileAtomic(fs, "models/m.bin", []byte{1, 2, 3}, 0o644))
	require.NoError(t, WriteFileAtomic(fs, "models/m.bin", []byte{4}, 0o644))

	got, err := os.ReadFile(filepath.Join(root, "models", "m.bin"))
	require.NoError(t, err)
	assert.Equal(t, []byte{4}, got)

	entries, err := os.ReadDir(filepath.Join(root, "models"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}
