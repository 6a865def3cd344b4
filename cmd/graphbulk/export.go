package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"graphbulk/internal/batch"
	"graphbulk/internal/dedup"
)

var exportFlags struct {
	schema    string
	nodes     string
	edges     string
	dbms      string
	outDir    string
	batchSize int
	dbName    string
	strict    bool
	force     bool
	wipe      bool
	skipBad   bool
	skipDup   bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export JSONL entity streams into bulk-loader files",
	RunE:  runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.schema, "schema", "", "ontology schema YAML (optional; schemas are inferred without it)")
	f.StringVar(&exportFlags.nodes, "nodes", "", "node JSONL file")
	f.StringVar(&exportFlags.edges, "edges", "", "edge JSONL file")
	f.StringVar(&exportFlags.dbms, "dbms", "", "target backend: neo4j, arangodb, postgres or rdf")
	f.StringVar(&exportFlags.outDir, "out", "", "output directory")
	f.IntVar(&exportFlags.batchSize, "batch-size", 0, "entities per part file")
	f.StringVar(&exportFlags.dbName, "db-name", "", "target database name in the import call")
	f.BoolVar(&exportFlags.strict, "strict", false, "add source/version/licence columns to declared schemas")
	f.BoolVar(&exportFlags.force, "force", false, "skip ancestor-label expansion")
	f.BoolVar(&exportFlags.wipe, "wipe", false, "clear previous artifacts from the output directory")
	f.BoolVar(&exportFlags.skipBad, "skip-bad-relationships", false, "pass --skip-bad-relationships to the import call")
	f.BoolVar(&exportFlags.skipDup, "skip-duplicate-nodes", false, "pass --skip-duplicate-nodes to the import call")
	_ = exportCmd.MarkFlagRequired("nodes")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("dbms") {
		cfg.DBMS = exportFlags.dbms
	}
	if flags.Changed("out") {
		cfg.OutputDir = exportFlags.outDir
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = exportFlags.batchSize
	}
	if flags.Changed("db-name") {
		cfg.DatabaseName = exportFlags.dbName
	}
	if flags.Changed("strict") {
		cfg.Strict = exportFlags.strict
	}
	if flags.Changed("force") {
		cfg.Force = exportFlags.force
	}
	if flags.Changed("wipe") {
		cfg.Wipe = exportFlags.wipe
	}
	if flags.Changed("skip-bad-relationships") {
		cfg.SkipBadRelationships = exportFlags.skipBad
	}
	if flags.Changed("skip-duplicate-nodes") {
		cfg.SkipDuplicateNodes = exportFlags.skipDup
	}

	ont, err := loadOntology(exportFlags.schema)
	if err != nil {
		return err
	}
	fmtr, err := batch.New(cfg)
	if err != nil {
		return err
	}
	seen := dedup.NewSeenSet()
	writer, err := batch.NewWriter(cfg, fmtr, ont, seen, logger)
	if err != nil {
		return err
	}

	nodes, closeNodes, err := openNodeReader(exportFlags.nodes)
	if err != nil {
		return err
	}
	defer closeNodes()
	if err := writer.WriteNodes(nodes); err != nil {
		return err
	}
	if err := nodes.Err(); err != nil {
		return err
	}

	wroteEdges := false
	if exportFlags.edges != "" {
		edges, closeEdges, err := openEdgeReader(exportFlags.edges)
		if err != nil {
			return err
		}
		defer closeEdges()
		if err := writer.WriteEdges(edges); err != nil {
			return err
		}
		if err := edges.Err(); err != nil {
			return err
		}
		wroteEdges = true
	}

	// Headers come after both streams: rel-as-node composites in the
	// edge stream register node types of their own.
	if err := writer.WriteNodeHeaders(); err != nil {
		return err
	}
	if wroteEdges {
		if err := writer.WriteEdgeHeaders(); err != nil {
			return err
		}
	}

	script, err := writer.WriteImportCall()
	if err != nil {
		return err
	}

	for label, count := range seen.DuplicateNodes() {
		logger.Info("Duplicate nodes dropped", zap.String("label", label), zap.Int("count", count))
	}
	for label, count := range seen.DuplicateEdges() {
		logger.Info("Duplicate edges dropped", zap.String("label", label), zap.Int("count", count))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Export complete. Import call: %s\n", script)
	return nil
}
