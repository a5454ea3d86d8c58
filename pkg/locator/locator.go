package locator

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/getgauge/common"
)

// ErrNoInput is returned when a path resolves to no html report
var ErrNoInput = errors.New("no input files found")

// Locate resolves path to the report files it names: a file is returned
// as-is, a directory is searched recursively for *.html files, sorted.
func Locate(path string) ([]string, error) {
	switch {
	case common.DirExists(path):
		return scanDir(path)
	case common.FileExists(path):
		return []string{path}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoInput, path)
	}
}

func scanDir(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".html") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .html files under %s", ErrNoInput, root)
	}

	sort.Strings(files)
	return files, nil
}
