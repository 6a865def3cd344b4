package batch

import (
	"fmt"
	"strings"

	"graphbulk/internal/config"
	"graphbulk/internal/graph"
)

// postgresFormatter renders COPY-ready delimited rows, CREATE TABLE
// header artifacts, and a psql script that replays the DDL and \copy
// calls. Downstream COPY requires strictly rectangular rows, which the
// writer's divergence validation guarantees.
type postgresFormatter struct {
	delimited
}

func newPostgresFormatter(cfg config.Config) *postgresFormatter {
	return &postgresFormatter{delimited{cfg: cfg}}
}

func (f *postgresFormatter) Name() string { return config.DBMSPostgres }

func (f *postgresFormatter) PartFileExt() string { return ".csv" }

func (f *postgresFormatter) HeaderFileName(typeName string) string {
	return typeName + "-header.sql"
}

// RenderArray renders a Postgres array literal.
func (f *postgresFormatter) RenderArray(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (f *postgresFormatter) renderPGValue(v any, tag string) string {
	if v == nil {
		return ""
	}
	if vals, ok := asSlice(v); ok {
		return f.quoteField(f.RenderArray(vals))
	}
	s := fmt.Sprint(v)
	if numericTag(tag) {
		return s
	}
	return f.quoteField(s)
}

func (f *postgresFormatter) RenderNodeRow(n *graph.Node, ref *PropertyRef, labels string) string {
	fields := make([]string, 0, ref.Len()+2)
	fields = append(fields, n.ID)
	for _, name := range ref.Names() {
		fields = append(fields, f.renderPGValue(ref.Value(n.Properties, name), ref.Type(name)))
	}
	labelArr := strings.Split(labels, f.cfg.ArrayDelimiter)
	fields = append(fields, f.quoteField("{"+strings.Join(labelArr, ",")+"}"))
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *postgresFormatter) RenderEdgeRow(e *graph.Edge, ref *PropertyRef, relType string, useID bool) string {
	fields := make([]string, 0, ref.Len()+4)
	fields = append(fields, e.SourceID)
	if useID {
		fields = append(fields, e.ID)
	}
	for _, name := range ref.Names() {
		fields = append(fields, f.renderPGValue(ref.Value(e.Properties, name), ref.Type(name)))
	}
	fields = append(fields, e.TargetID, f.quoteField(relType))
	return strings.Join(fields, f.cfg.Delimiter)
}

func (f *postgresFormatter) RenderNodeHeader(typeName string, ref *PropertyRef) string {
	return NodeTableDDL(typeName, ref)
}

func (f *postgresFormatter) RenderEdgeHeader(typeName string, ref *PropertyRef, useID bool) string {
	return EdgeTableDDL(typeName, ref, useID)
}

func (f *postgresFormatter) RequiresNodesFirst() bool { return true }

func (f *postgresFormatter) ImportScriptName() string { return "postgres-import-call.sh" }

func (f *postgresFormatter) ImportCall(reg *Registry) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	psql := f.cfg.ImportCallBinPrefix + "psql"
	for _, t := range reg.NodeTypes() {
		fmt.Fprintf(&b, "%s -d %s -f %q\n", psql, f.cfg.DatabaseName, reg.NodeHeader(t))
		for _, part := range reg.NodeParts(t) {
			f.copyLine(&b, psql, t, part)
		}
	}
	for _, t := range reg.EdgeTypes() {
		fmt.Fprintf(&b, "%s -d %s -f %q\n", psql, f.cfg.DatabaseName, reg.EdgeHeader(t))
		for _, part := range reg.EdgeParts(t) {
			f.copyLine(&b, psql, t, part)
		}
	}
	return b.String()
}

func (f *postgresFormatter) copyLine(b *strings.Builder, psql, table, part string) {
	fmt.Fprintf(b, "%s -d %s -c \"\\copy %s FROM '%s' DELIMITER '%s' QUOTE '%s' NULL '' CSV;\"\n",
		psql, f.cfg.DatabaseName, pgIdent(table), part, f.cfg.Delimiter, f.cfg.Quote)
}

// NodeTableDDL builds the CREATE TABLE statement for a node type. The
// online Postgres loader uses the same definition, so offline and live
// loads land in identical tables.
func NodeTableDDL(table string, ref *PropertyRef) string {
	cols := []string{"id VARCHAR"}
	for _, name := range ref.Names() {
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(name), postgresType(ref.Type(name))))
	}
	cols = append(cols, "labels VARCHAR[]")
	return createTable(table, cols)
}

// EdgeTableDDL builds the CREATE TABLE statement for an edge type.
func EdgeTableDDL(table string, ref *PropertyRef, useID bool) string {
	cols := []string{"source_id VARCHAR"}
	if useID {
		cols = append(cols, "id VARCHAR")
	}
	for _, name := range ref.Names() {
		cols = append(cols, fmt.Sprintf("%s %s", pgIdent(name), postgresType(ref.Type(name))))
	}
	cols = append(cols, "target_id VARCHAR", "label VARCHAR")
	return createTable(table, cols)
}

func createTable(table string, cols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", pgIdent(table))
	for i, col := range cols {
		b.WriteString("    " + col)
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");\n")
	return b.String()
}

func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, ``) + `"`
}

func postgresType(tag string) string {
	base := strings.ToLower(strings.TrimSuffix(tag, "[]"))
	var t string
	switch base {
	case "int", "integer":
		t = "INTEGER"
	case "long":
		t = "BIGINT"
	case "float", "double", "dbl":
		t = "NUMERIC"
	case "bool", "boolean":
		t = "BOOLEAN"
	default:
		t = "VARCHAR"
	}
	if arrayTag(tag) {
		t += "[]"
	}
	return t
}
