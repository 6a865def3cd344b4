package batch

import (
	"fmt"
	"path/filepath"
	"strings"

	"graphbulk/internal/config"
	"graphbulk/internal/graph"
)

// neo4jFormatter renders the CSV dialect neo4j-admin import expects:
// per-type part files, header files with :ID/:LABEL/:TYPE markers and
// type-annotated columns, and a single admin-import command.
type neo4jFormatter struct {
	delimited
}

func newNeo4jFormatter(cfg config.Config) *neo4jFormatter {
	return &neo4jFormatter{delimited{cfg: cfg}}
}

func (f *neo4jFormatter) Name() string { return config.DBMSNeo4j }

func (f *neo4jFormatter) PartFileExt() string { return ".csv" }

func (f *neo4jFormatter) HeaderFileName(typeName string) string {
	return typeName + "-header.csv"
}

func (f *neo4jFormatter) RenderArray(vals []any) string {
	return f.renderArray(vals, "str[]")
}

func (f *neo4jFormatter) RenderNodeRow(n *graph.Node, ref *PropertyRef, labels string) string {
	fields := make([]string, 0, ref.Len()+2)
	fields = append(fields, n.ID)
	for _, name := range ref.Names() {
		fields = append(fields, f.renderValue(ref.Value(n.Properties, name), ref.Type(name)))
	}
	fields = append(fields, labels)
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *neo4jFormatter) RenderEdgeRow(e *graph.Edge, ref *PropertyRef, relType string, useID bool) string {
	fields := make([]string, 0, ref.Len()+4)
	fields = append(fields, e.SourceID)
	if useID {
		fields = append(fields, e.ID)
	}
	for _, name := range ref.Names() {
		fields = append(fields, f.renderValue(ref.Value(e.Properties, name), ref.Type(name)))
	}
	fields = append(fields, e.TargetID, relType)
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *neo4jFormatter) RenderNodeHeader(typeName string, ref *PropertyRef) string {
	cols := make([]string, 0, ref.Len()+2)
	cols = append(cols, ":ID")
	for _, name := range ref.Names() {
		cols = append(cols, headerColumn(name, ref.Type(name)))
	}
	cols = append(cols, ":LABEL")
	return strings.Join(cols, f.cfg.Delimiter) + "\n"
}

func (f *neo4jFormatter) RenderEdgeHeader(typeName string, ref *PropertyRef, useID bool) string {
	cols := make([]string, 0, ref.Len()+4)
	cols = append(cols, ":START_ID")
	if useID {
		cols = append(cols, "id")
	}
	for _, name := range ref.Names() {
		cols = append(cols, headerColumn(name, ref.Type(name)))
	}
	cols = append(cols, ":END_ID", ":TYPE")
	return strings.Join(cols, f.cfg.Delimiter) + "\n"
}

// headerColumn annotates a column with its admin-import type. Plain
// strings carry no annotation.
func headerColumn(name, tag string) string {
	t := neo4jType(tag)
	if t == "" {
		return name
	}
	return name + ":" + t
}

func neo4jType(tag string) string {
	base := strings.ToLower(strings.TrimSuffix(tag, "[]"))
	var t string
	switch base {
	case "int", "integer", "long":
		t = "long"
	case "float", "double", "dbl":
		t = "double"
	case "bool", "boolean":
		t = "boolean"
	case "str", "string":
		if arrayTag(tag) {
			t = "string"
		}
	}
	if t != "" && arrayTag(tag) {
		t += "[]"
	}
	return t
}

func (f *neo4jFormatter) RequiresNodesFirst() bool { return true }

func (f *neo4jFormatter) ImportScriptName() string { return "neo4j-import-call.sh" }

func (f *neo4jFormatter) ImportCall(reg *Registry) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "%sneo4j-admin import --database=%s \\\n", f.cfg.ImportCallBinPrefix, f.cfg.DatabaseName)
	fmt.Fprintf(&b, "  --delimiter=%q --array-delimiter=%q --quote=%q \\\n",
		f.cfg.Delimiter, f.cfg.ArrayDelimiter, f.cfg.Quote)
	if f.cfg.Wipe {
		b.WriteString("  --force=true \\\n")
	}
	if f.cfg.SkipBadRelationships {
		b.WriteString("  --skip-bad-relationships=true \\\n")
	}
	if f.cfg.SkipDuplicateNodes {
		b.WriteString("  --skip-duplicate-nodes=true \\\n")
	}
	// Part files are referenced by pattern so the command stays short
	// no matter how many parts a type produced.
	for _, t := range reg.NodeTypes() {
		pattern := filepath.Join(reg.OutDir(), t+"-part.*")
		fmt.Fprintf(&b, "  --nodes=%q \\\n", reg.NodeHeader(t)+","+pattern)
	}
	for _, t := range reg.EdgeTypes() {
		pattern := filepath.Join(reg.OutDir(), t+"-part.*")
		fmt.Fprintf(&b, "  --relationships=%q \\\n", reg.EdgeHeader(t)+","+pattern)
	}
	script := strings.TrimSuffix(b.String(), " \\\n")
	return script + "\n"
}
