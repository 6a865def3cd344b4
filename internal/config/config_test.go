package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config must validate: %v", err)
	}
	if cfg.BatchSize != 1_000_000 {
		t.Errorf("Expected default batch size 1000000, got %d", cfg.BatchSize)
	}
	if cfg.DBMS != DBMSNeo4j {
		t.Errorf("Expected default dbms neo4j, got %s", cfg.DBMS)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphbulk.yaml")
	content := []byte(`
dbms: postgres
output_dir: /tmp/out
delimiter: "\t"
batch_size: 500
strict: true
skip_duplicate_nodes: true
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBMS != DBMSPostgres {
		t.Errorf("Expected dbms postgres, got %s", cfg.DBMS)
	}
	if cfg.Delimiter != "\t" {
		t.Errorf("Expected tab delimiter, got %q", cfg.Delimiter)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("Expected batch size 500, got %d", cfg.BatchSize)
	}
	if !cfg.Strict || !cfg.SkipDuplicateNodes {
		t.Error("Expected strict and skip_duplicate_nodes to be set")
	}
	// Unset keys keep their defaults.
	if cfg.ArrayDelimiter != "|" {
		t.Errorf("Expected default array delimiter, got %q", cfg.ArrayDelimiter)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown dbms", func(c *Config) { c.DBMS = "oracle" }},
		{"delimiter equals quote", func(c *Config) { c.Quote = ";" }},
		{"delimiter equals array delimiter", func(c *Config) { c.ArrayDelimiter = ";" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }},
		{"empty quote", func(c *Config) { c.Quote = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
