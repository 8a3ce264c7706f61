// Package config defines the runtime parameters for a fine-tuning run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DataFiles maps each split to its CSV filename inside the data directory.
type DataFiles struct {
	Train string `json:"train" yaml:"train" toml:"train"`
	Valid string `json:"valid" yaml:"valid" toml:"valid"`
	Test  string `json:"test" yaml:"test" toml:"test"`
}

// Config holds runtime parameters for one pipeline run.
// Zero values mean "unspecified" and are replaced by defaults.
type Config struct {
	DataDir   string    `json:"data_dir" yaml:"data_dir" toml:"data_dir"`
	DataFiles DataFiles `json:"data_files" yaml:"data_files" toml:"data_files"`

	WithOldComment  bool `json:"with_ocomment" yaml:"with_ocomment" toml:"with_ocomment"`
	WithInstruction bool `json:"with_inst" yaml:"with_inst" toml:"with_inst"`
	MaxNewTokens    int  `json:"max_new_tokens" yaml:"max_new_tokens" toml:"max_new_tokens"`

	ModelsDir   string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Model       string `json:"model" yaml:"model" toml:"model"`
	FinetuneBin string `json:"finetune_bin" yaml:"finetune_bin" toml:"finetune_bin"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	CtxSize     int    `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Seed        int    `json:"seed" yaml:"seed" toml:"seed"`

	OutputDir string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the configuration matching the original training setup:
// all three splits read the same CSV, 128 new tokens, checkpoints under
// ./gemma-7b-it-ft.
func Default() Config {
	return Config{
		DataFiles: DataFiles{
			Train: "dummy_train.csv",
			Valid: "dummy_train.csv",
			Test:  "dummy_train.csv",
		},
		MaxNewTokens: 128,
		ModelsDir:    "~/models/llm",
		CtxSize:      2048,
		OutputDir:    "./gemma-7b-it-ft",
		LogLevel:     "info",
	}
}

// Load reads a configuration file based on its extension and overlays it on
// the defaults. Supports: .yaml/.yml, .json, .toml.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// Validate checks the fields no run can proceed without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("max_new_tokens must be positive, got %d", c.MaxNewTokens)
	}
	return nil
}
