package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graphbulk/internal/dedup"
	"graphbulk/internal/inmem"
	"graphbulk/internal/storage"
)

var validateFlags struct {
	schema    string
	nodes     string
	edges     string
	strict    bool
	force     bool
	dumpNodes string
	dumpEdges string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Dry-run entity streams against their schemas",
	Long:  "validate builds the in-memory table representation without writing any files, surfacing schema divergence and reporting per-type row counts.",
	RunE:  runValidate,
}

func init() {
	f := validateCmd.Flags()
	f.StringVar(&validateFlags.schema, "schema", "", "ontology schema YAML (optional)")
	f.StringVar(&validateFlags.nodes, "nodes", "", "node JSONL file")
	f.StringVar(&validateFlags.edges, "edges", "", "edge JSONL file")
	f.BoolVar(&validateFlags.strict, "strict", false, "add source/version/licence columns to declared schemas")
	f.BoolVar(&validateFlags.force, "force", false, "skip ancestor-label expansion")
	f.StringVar(&validateFlags.dumpNodes, "dump-nodes", "", "write the validated, deduplicated nodes back out as JSONL")
	f.StringVar(&validateFlags.dumpEdges, "dump-edges", "", "write the validated, deduplicated edges back out as JSONL")
	_ = validateCmd.MarkFlagRequired("nodes")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Strict = validateFlags.strict
	cfg.Force = validateFlags.force

	ont, err := loadOntology(validateFlags.schema)
	if err != nil {
		return err
	}
	store := inmem.NewStore(cfg, ont, dedup.NewSeenSet(), logger)

	nodes, closeNodes, err := openNodeReader(validateFlags.nodes)
	if err != nil {
		return err
	}
	defer closeNodes()
	if err := store.AddNodes(nodes); err != nil {
		return err
	}
	if err := nodes.Err(); err != nil {
		return err
	}

	if validateFlags.edges != "" {
		edges, closeEdges, err := openEdgeReader(validateFlags.edges)
		if err != nil {
			return err
		}
		defer closeEdges()
		if err := store.AddEdges(edges); err != nil {
			return err
		}
		if err := edges.Err(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, label := range store.NodeLabels() {
		tbl, _ := store.NodeTable(label)
		fmt.Fprintf(out, "node %s: %d rows, columns %v\n", label, len(tbl.Rows), tbl.Columns)
	}
	for _, label := range store.EdgeLabels() {
		tbl, _ := store.EdgeTable(label)
		fmt.Fprintf(out, "edge %s: %d rows, columns %v\n", label, len(tbl.Rows), tbl.Columns)
	}
	droppedNodes, droppedEdges := store.Dropped()
	fmt.Fprintf(out, "total: %d nodes, %d edges (%d/%d dropped)\n",
		store.NodeCount(), store.EdgeCount(), droppedNodes, droppedEdges)

	if validateFlags.dumpNodes != "" {
		if err := dumpJSONL(validateFlags.dumpNodes, func(em *storage.JSONLEmitter) error {
			return store.EachNode(em.EmitNode)
		}); err != nil {
			return err
		}
	}
	if validateFlags.dumpEdges != "" {
		if err := dumpJSONL(validateFlags.dumpEdges, func(em *storage.JSONLEmitter) error {
			return store.EachEdge(em.EmitEdge)
		}); err != nil {
			return err
		}
	}
	return nil
}

func dumpJSONL(path string, emit func(*storage.JSONLEmitter) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	if err := emit(storage.NewJSONLEmitter(f)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
