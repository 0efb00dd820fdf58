package patcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// PatchFileSuffix is the file name suffix of patch files in a patch directory.
const PatchFileSuffix = ".patch.toml"

// Source is one configuration document to load.
type Source interface {
	Name() string
	ReadAll() ([]byte, error)
}

// FileSource reads a patch file from disk.
type FileSource string

// Name returns the file path.
func (s FileSource) Name() string { return string(s) }

// ReadAll reads the whole file.
func (s FileSource) ReadAll() ([]byte, error) { return os.ReadFile(string(s)) }

type bytesSource struct {
	name string
	data []byte
}

// BytesSource returns a Source serving data under name.
func BytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string             { return s.name }
func (s bytesSource) ReadAll() ([]byte, error) { return s.data, nil }

// IsPatchFile reports whether name looks like a patch file.
func IsPatchFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(base, PatchFileSuffix) && !strings.HasPrefix(base, ".")
}

// Discover lists the patch files directly inside dir, sorted by name.
// A missing directory yields no sources.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading patch directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsPatchFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, n := range names {
		sources = append(sources, FileSource(filepath.Join(dir, n)))
	}
	return sources, nil
}
