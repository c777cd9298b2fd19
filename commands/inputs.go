package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/samber/lo"
)

var errNoPaths = errors.New("no files matched")

// stdinPath names standard input in output and match reports.
const stdinPath = "-"

// expandPaths resolves every doublestar pattern to the files it matches, in
// pattern order, without duplicates.
func expandPaths(patterns []string) ([]string, error) {
	var paths []string

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("could not expand %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			return nil, fmt.Errorf("%w: %q", errNoPaths, pattern)
		}

		paths = append(paths, matches...)
	}

	return lo.Uniq(paths), nil
}

func isZstd(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zst")
}

// readInput returns the contents of path, decompressing .zst files.
func readInput(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	var reader io.Reader = file

	if isZstd(path) {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("could not create zstd reader: %w", err)
		}
		defer decoder.Close()

		reader = decoder
	}

	contents, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("could not read %q: %w", path, err)
	}

	return string(contents), nil
}

// writeOutput replaces path with contents, compressing .zst files. The file
// keeps its permissions and is swapped in with a rename.
func writeOutput(path string, contents string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("could not stat %q: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var writer io.WriteCloser = tmp

	if isZstd(path) {
		encoder, err := zstd.NewWriter(tmp)
		if err != nil {
			_ = tmp.Close()

			return fmt.Errorf("could not create zstd writer: %w", err)
		}

		writer = encoder
	}

	_, err = io.WriteString(writer, contents)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not write %q: %w", path, err)
	}

	if writer != tmp {
		err = writer.Close()
		if err != nil {
			_ = tmp.Close()

			return fmt.Errorf("could not flush zstd stream: %w", err)
		}
	}

	err = tmp.Chmod(info.Mode().Perm())
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("could not set permissions: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("could not close temp file: %w", err)
	}

	err = os.Rename(tmp.Name(), path)
	if err != nil {
		return fmt.Errorf("could not replace %q: %w", path, err)
	}

	return nil
}
