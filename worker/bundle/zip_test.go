package bundle

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = string(data)
	}
	return entries
}

func TestZip(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	b := writeFile(t, filepath.Join(dir, "b.srt"), "beta")

	dst := filepath.Join(dir, "out.zip")
	require.NoError(t, Zip(dst, []string{a, b}))

	entries := readArchive(t, dst)
	require.Equal(t, map[string]string{
		"a.txt": "alpha",
		"b.srt": "beta",
	}, entries)
}

func TestZip_DuplicateBaseNames(t *testing.T) {
	dir := t.TempDir()
	sub1 := filepath.Join(dir, "one")
	sub2 := filepath.Join(dir, "two")
	require.NoError(t, os.MkdirAll(sub1, 0o755))
	require.NoError(t, os.MkdirAll(sub2, 0o755))

	a := writeFile(t, filepath.Join(sub1, "result.txt"), "first")
	b := writeFile(t, filepath.Join(sub2, "result.txt"), "second")

	dst := filepath.Join(dir, "out.zip")
	require.NoError(t, Zip(dst, []string{a, b}))

	entries := readArchive(t, dst)
	require.Equal(t, map[string]string{
		"result.txt":   "first",
		"result_1.txt": "second",
	}, entries)
}

func TestZip_NoFiles(t *testing.T) {
	err := Zip(filepath.Join(t.TempDir(), "out.zip"), nil)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestZip_MissingMember(t *testing.T) {
	dir := t.TempDir()
	err := Zip(filepath.Join(dir, "out.zip"), []string{filepath.Join(dir, "gone.txt")})
	require.Error(t, err)
}
