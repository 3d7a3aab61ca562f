package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListFiles_SkipsDirectoriesAndSorts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.tif"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.tif"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	files, err := ListFiles(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"a.tif", "b.tif"}, files)
}

func TestListFiles_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := ListFiles(filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestEnsureWritableDir_CreatesMissingParents(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "scratch", "deep")
	require.NoError(t, EnsureWritableDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// No probe file may survive the writability check.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestEnsureWritableDir_ReadOnly(t *testing.T) {
	t.Parallel()
	if os.Getuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	require.Error(t, EnsureWritableDir(dir))
}

func TestGlob(t *testing.T) {
	t.Parallel()

	ok, err := Glob("*_WTR.tif", "OPERA_L3_DSWx_WTR.tif")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = Glob("*_BWTR.tif", "OPERA_L3_DSWx_WTR.tif")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = Glob("[", "anything")
	require.Error(t, err)
}
