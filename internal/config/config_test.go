package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "./test.db"
retrieval:
  chunk_size: 500
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Retrieval.ChunkSize != 500 {
		t.Errorf("chunk_size = %d", cfg.Retrieval.ChunkSize)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set")
	}
	if cfg.Retrieval.ChunkSize != 1000 || cfg.Retrieval.ChunkOverlap != 200 {
		t.Errorf("chunking defaults wrong: %+v", cfg.Retrieval)
	}
	if cfg.Commentary.NeutralScore != 0.7 || cfg.Commentary.RegenThreshold != 0.4 || cfg.Commentary.MinRatings != 3 {
		t.Errorf("commentary defaults wrong: %+v", cfg.Commentary)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" || cfg.Ollama.DefaultModel != "llama2:7b" {
		t.Errorf("ollama defaults wrong: %+v", cfg.Ollama)
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("watch extensions should default")
	}
}

func TestLoad_ExpandPathRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/lectio.db"
sources:
  - id: augustine
    directory: "./corpus/augustine"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "data/lectio.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if cfg.Sources[0].Directory != filepath.Join(dir, "corpus/augustine") {
		t.Errorf("source directory = %q", cfg.Sources[0].Directory)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file should error")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("LECTIO_OLLAMA_URL", "http://ollama.internal:11434/")
	t.Setenv("LECTIO_OLLAMA_MODEL", "llama2:13b")
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	if cfg.Ollama.BaseURL != "http://ollama.internal:11434" {
		t.Errorf("base url = %q, trailing slash should be trimmed", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.DefaultModel != "llama2:13b" {
		t.Errorf("model = %q", cfg.Ollama.DefaultModel)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.Port = 9999
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9999 {
		t.Errorf("port = %d after round trip", loaded.Server.Port)
	}
}
