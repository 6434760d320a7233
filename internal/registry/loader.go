// Package registry locates the model weights the server loads at startup.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chatstream/internal/common/fsutil"
)

// ErrNoModel is returned when the configured path holds no usable weights.
var ErrNoModel = errors.New("no .gguf model found")

// Model describes a resolved weights file.
type Model struct {
	Name string // file name without extension
	Path string // absolute path
	Size int64
}

// Resolve accepts either a .gguf file or a directory and returns the model to
// load. For a directory the lexically first *.gguf entry wins.
func Resolve(path string) (Model, error) {
	if strings.TrimSpace(path) == "" {
		return Model{}, fmt.Errorf("model path: %w", ErrNoModel)
	}
	abs, err := fsutil.Abs(path)
	if err != nil {
		return Model{}, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return Model{}, fmt.Errorf("model path %s: %w", abs, err)
	}
	if !fi.IsDir() {
		if !isGGUF(fi.Name()) {
			return Model{}, fmt.Errorf("model path %s: not a .gguf file", abs)
		}
		return newModel(abs, fi), nil
	}
	models, err := LoadDir(abs)
	if err != nil {
		return Model{}, err
	}
	if len(models) == 0 {
		return Model{}, fmt.Errorf("%s: %w", abs, ErrNoModel)
	}
	return models[0], nil
}

// LoadDir scans a directory for *.gguf files, sorted by file name.
func LoadDir(dir string) ([]Model, error) {
	abs, err := fsutil.Abs(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []Model
	for _, e := range entries {
		if e.IsDir() || !isGGUF(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		models = append(models, newModel(filepath.Join(abs, e.Name()), fi))
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Path < models[j].Path })
	return models, nil
}

func isGGUF(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".gguf")
}

func newModel(path string, fi os.FileInfo) Model {
	name := fi.Name()
	return Model{
		Name: strings.TrimSuffix(name, filepath.Ext(name)),
		Path: path,
		Size: fi.Size(),
	}
}
