package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphbulk/internal/config"
	"graphbulk/internal/ontology"
	"graphbulk/internal/storage"
)

var (
	cfgPath string
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "graphbulk",
	Short:         "Schema-driven bulk export of typed graph entities",
	Long:          "graphbulk partitions typed node and edge streams into per-type batched files with headers and a bulk-load script, or pushes them straight into a running database.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(); err != nil {
			return fmt.Errorf("failed to load environment: %w", err)
		}
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func loadConfig() (config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.Load(cfgPath)
}

// loadOntology reads the schema file, or builds an empty ontology so
// every type falls back to inferred schemas and bare labels.
func loadOntology(path string) (*ontology.Tree, error) {
	if path == "" {
		return ontology.Parse(nil)
	}
	return ontology.Load(path)
}

func openNodeReader(path string) (*storage.NodeReader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open node file: %w", err)
	}
	return storage.NewNodeReader(f), func() { f.Close() }, nil
}

func openEdgeReader(path string) (*storage.EdgeReader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open edge file: %w", err)
	}
	return storage.NewEdgeReader(f), func() { f.Close() }, nil
}
