package batch

import (
	"fmt"
	"strings"

	"graphbulk/internal/config"
	"graphbulk/internal/graph"
)

// arangoFormatter renders CSV for arangoimport: _key/_from/_to system
// columns, one document or edge collection per type, and an import
// script with one arangoimport invocation per part file (the tool
// takes no file patterns). Collections carry the type, so no label
// column is emitted.
type arangoFormatter struct {
	delimited
}

func newArangoFormatter(cfg config.Config) *arangoFormatter {
	return &arangoFormatter{delimited{cfg: cfg}}
}

func (f *arangoFormatter) Name() string { return config.DBMSArango }

func (f *arangoFormatter) PartFileExt() string { return ".csv" }

func (f *arangoFormatter) HeaderFileName(typeName string) string {
	return typeName + "-header.csv"
}

func (f *arangoFormatter) RenderArray(vals []any) string {
	return f.renderArray(vals, "str[]")
}

func (f *arangoFormatter) RenderNodeRow(n *graph.Node, ref *PropertyRef, labels string) string {
	fields := make([]string, 0, ref.Len()+1)
	fields = append(fields, n.ID)
	for _, name := range ref.Names() {
		fields = append(fields, f.renderValue(ref.Value(n.Properties, name), ref.Type(name)))
	}
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *arangoFormatter) RenderEdgeRow(e *graph.Edge, ref *PropertyRef, relType string, useID bool) string {
	fields := make([]string, 0, ref.Len()+3)
	fields = append(fields, e.SourceID)
	if useID {
		fields = append(fields, e.ID)
	}
	for _, name := range ref.Names() {
		fields = append(fields, f.renderValue(ref.Value(e.Properties, name), ref.Type(name)))
	}
	fields = append(fields, e.TargetID)
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *arangoFormatter) RenderNodeHeader(typeName string, ref *PropertyRef) string {
	cols := append([]string{"_key"}, ref.Names()...)
	return strings.Join(cols, f.cfg.Delimiter) + "\n"
}

func (f *arangoFormatter) RenderEdgeHeader(typeName string, ref *PropertyRef, useID bool) string {
	cols := []string{"_from"}
	if useID {
		cols = append(cols, "id")
	}
	cols = append(cols, ref.Names()...)
	cols = append(cols, "_to")
	return strings.Join(cols, f.cfg.Delimiter) + "\n"
}

// Edge documents reference nodes lazily in ArangoDB, so load order is
// not constrained.
func (f *arangoFormatter) RequiresNodesFirst() bool { return false }

func (f *arangoFormatter) ImportScriptName() string { return "arangodb-import-call.sh" }

func (f *arangoFormatter) ImportCall(reg *Registry) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	for _, t := range reg.NodeTypes() {
		for _, part := range reg.NodeParts(t) {
			f.importLine(&b, reg, t, part, false)
		}
	}
	for _, t := range reg.EdgeTypes() {
		for _, part := range reg.EdgeParts(t) {
			f.importLine(&b, reg, t, part, true)
		}
	}
	return b.String()
}

func (f *arangoFormatter) importLine(b *strings.Builder, reg *Registry, typeName, part string, edge bool) {
	fmt.Fprintf(b, "%sarangoimport --type csv --collection %q --create-collection true",
		f.cfg.ImportCallBinPrefix, reg.Collection(typeName))
	if edge {
		b.WriteString(" --create-collection-type edge")
	}
	header := reg.NodeHeader(typeName)
	if edge {
		header = reg.EdgeHeader(typeName)
	}
	fmt.Fprintf(b, " --headers-file %q --file %q --separator %q --quote %q\n",
		header, part, f.cfg.Delimiter, f.cfg.Quote)
}
