package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DataFiles.Train != "dummy_train.csv" || cfg.DataFiles.Valid != "dummy_train.csv" || cfg.DataFiles.Test != "dummy_train.csv" {
		t.Fatalf("default data files should share one CSV: %+v", cfg.DataFiles)
	}
	if cfg.MaxNewTokens != 128 {
		t.Fatalf("max_new_tokens default = %d", cfg.MaxNewTokens)
	}
	if cfg.OutputDir != "./gemma-7b-it-ft" {
		t.Fatalf("output dir default = %s", cfg.OutputDir)
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	p := writeTemp(t, "cfg.yaml", "data_dir: ./data\nwith_ocomment: true\nmax_new_tokens: 64\nmodel: gemma.Q4_K_M.gguf\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || !cfg.WithOldComment || cfg.MaxNewTokens != 64 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	// Unset fields keep defaults.
	if cfg.DataFiles.Train != "dummy_train.csv" {
		t.Fatalf("defaults not preserved: %+v", cfg.DataFiles)
	}
}

func TestLoadTOML(t *testing.T) {
	p := writeTemp(t, "cfg.toml", "data_dir = \"./data\"\nmax_new_tokens = 32\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.MaxNewTokens != 32 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeTemp(t, "cfg.json", `{"data_dir":"./data","with_inst":true}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || !cfg.WithInstruction {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	p := writeTemp(t, "cfg.ini", "data_dir=./data\n")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error without data_dir")
	}
	cfg.DataDir = "./data"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cfg.MaxNewTokens = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero max_new_tokens")
	}
}
