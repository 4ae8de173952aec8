package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrNoFiles = errors.New("nothing to bundle")

// Zip writes the given files into a fresh archive at dst. Entries keep
// only their base names; duplicates get a numeric suffix.
func Zip(dst string, files []string) error {
	if len(files) == 0 {
		return ErrNoFiles
	}

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	seen := map[string]int{}

	for _, file := range files {
		name := filepath.Base(file)
		if n := seen[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", name[:len(name)-len(ext)], n, ext)
		}
		seen[filepath.Base(file)]++

		if err := addEntry(zw, file, name); err != nil {
			zw.Close()
			return fmt.Errorf("add %s: %w", file, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entry, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}
