// Package registry discovers base model files available for fine-tuning.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gemmaft/internal/engine"
	"gemmaft/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path. Quant and Family are best-effort hints parsed from the
// filename.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:     name,
			Name:   name,
			Path:   filepath.Join(abs, name),
			Quant:  parseQuant(name),
			Family: parseFamily(name),
		})
	}
	return models, nil
}

// Resolve returns the model with the given id, or the sole model when id is
// empty and exactly one candidate exists.
func Resolve(models []types.Model, id string) (types.Model, error) {
	if id == "" {
		if len(models) == 1 {
			return models[0], nil
		}
		return types.Model{}, fmt.Errorf("model id required (found %d models)", len(models))
	}
	for _, m := range models {
		if m.ID == id || m.Name == id {
			return m, nil
		}
	}
	return types.Model{}, engine.ErrModelNotFound(id)
}

var quantRe = regexp.MustCompile(`(?i)\b(I?Q[0-9]+(?:_[A-Z0-9]+)*|F16|F32|BF16)\b`)

// parseQuant extracts a quantization variant like Q4_K_M from a filename.
func parseQuant(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.NewReplacer(".", " ", "-", " ").Replace(base)
	if m := quantRe.FindString(base); m != "" {
		return strings.ToUpper(m)
	}
	return ""
}

// parseFamily extracts a known model family from a filename.
func parseFamily(name string) string {
	lower := strings.ToLower(name)
	for _, fam := range []string{"gemma", "llama", "mistral", "phi", "qwen"} {
		if strings.Contains(lower, fam) {
			return fam
		}
	}
	return ""
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
