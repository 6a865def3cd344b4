// Package config holds the immutable export configuration. A Config
// is constructed once at writer-creation time and never mutated
// afterwards.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported dbms selectors.
const (
	DBMSNeo4j    = "neo4j"
	DBMSArango   = "arangodb"
	DBMSPostgres = "postgres"
	DBMSRDF      = "rdf"
)

// DefaultBatchSize is the per-type bin threshold before a flush.
const DefaultBatchSize = 1_000_000

// Config is the full export configuration surface.
type Config struct {
	DBMS           string `yaml:"dbms"`
	OutputDir      string `yaml:"output_dir"`
	Delimiter      string `yaml:"delimiter"`
	ArrayDelimiter string `yaml:"array_delimiter"`
	Quote          string `yaml:"quote"`
	BatchSize      int    `yaml:"batch_size"`

	// Strict adds source, version and licence columns to every
	// declared type schema.
	Strict bool `yaml:"strict"`
	// Force skips ancestor-chain resolution and labels every node
	// with its bare type only.
	Force bool `yaml:"force"`
	// Wipe clears previously written artifacts from the output
	// directory before the first write.
	Wipe bool `yaml:"wipe"`

	SkipBadRelationships bool `yaml:"skip_bad_relationships"`
	SkipDuplicateNodes   bool `yaml:"skip_duplicate_nodes"`

	DatabaseName string `yaml:"database_name"`
	// ImportCallBinPrefix prefixes the bulk-load binary in the
	// generated script, e.g. "bin/".
	ImportCallBinPrefix string `yaml:"import_call_bin_prefix"`
	// RDFNamespace is the IRI prefix for resources in RDF output.
	RDFNamespace string `yaml:"rdf_namespace"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		DBMS:           DBMSNeo4j,
		OutputDir:      "graphbulk-out",
		Delimiter:      ";",
		ArrayDelimiter: "|",
		Quote:          "'",
		BatchSize:      DefaultBatchSize,
		DatabaseName:   "neo4j",
		RDFNamespace:   "https://graphbulk.org/",
	}
}

// Load reads a YAML config file over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the serializers cannot work with.
func (c Config) Validate() error {
	switch c.DBMS {
	case DBMSNeo4j, DBMSArango, DBMSPostgres, DBMSRDF:
	default:
		return fmt.Errorf("unknown dbms %q", c.DBMS)
	}
	if c.Delimiter == "" || c.ArrayDelimiter == "" || c.Quote == "" {
		return fmt.Errorf("delimiter, array_delimiter and quote must be non-empty")
	}
	if c.Delimiter == c.Quote {
		return fmt.Errorf("delimiter and quote must differ")
	}
	if c.Delimiter == c.ArrayDelimiter {
		return fmt.Errorf("delimiter and array_delimiter must differ")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must be set")
	}
	return nil
}

// Credentials hold connection settings for the online loaders, read
// from the environment.
type Credentials struct {
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	PostgresDSN   string
}

// LoadCredentials reads loader credentials from environment variables.
func LoadCredentials() Credentials {
	return Credentials{
		Neo4jURI:      os.Getenv("NEO4J_URI"),
		Neo4jUser:     os.Getenv("NEO4J_USER"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
	}
}

// LoadEnv loads environment variables from a .env file, searching up
// the directory tree.
func LoadEnv() error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}

	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// Found it
			return godotenv.Load(envPath)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root
		}
		dir = parent
	}

	// Not found is fine
	return nil
}
