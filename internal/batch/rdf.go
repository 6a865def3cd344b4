package batch

import (
	"fmt"
	"strings"

	"graphbulk/internal/config"
	"graphbulk/internal/graph"
)

// Well-known vocabulary IRIs.
const (
	rdfType       = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"
	rdfStatement  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#Statement"
	rdfSubject    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#subject"
	rdfPredicate  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#predicate"
	rdfObject     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#object"
	rdfsSubClass  = "http://www.w3.org/2000/01/rdf-schema#subClassOf"
	rdfsDomain    = "http://www.w3.org/2000/01/rdf-schema#domain"
	owlClass      = "http://www.w3.org/2002/07/owl#Class"
	xsdNS         = "http://www.w3.org/2001/XMLSchema#"
	rdfsLabelPred = "http://www.w3.org/2000/01/rdf-schema#label"
)

// rdfFormatter renders N-Triples. Every node row becomes a set of
// triples (rdf:type per ancestor label plus one triple per property);
// header artifacts declare the class hierarchy and property domains.
// No RDF library appears in the dependency surface because a triple is
// just three escaped terms and a period.
type rdfFormatter struct {
	cfg config.Config
}

func newRDFFormatter(cfg config.Config) *rdfFormatter {
	return &rdfFormatter{cfg: cfg}
}

func (f *rdfFormatter) Name() string { return config.DBMSRDF }

func (f *rdfFormatter) PartFileExt() string { return ".nt" }

func (f *rdfFormatter) HeaderFileName(typeName string) string {
	return typeName + "-header.nt"
}

// RenderArray joins values with the configured array delimiter; the
// result is embedded in a single literal.
func (f *rdfFormatter) RenderArray(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, f.cfg.ArrayDelimiter)
}

func (f *rdfFormatter) RenderNodeRow(n *graph.Node, ref *PropertyRef, labels string) string {
	var b strings.Builder
	subj := f.iri(n.ID)
	for _, label := range strings.Split(labels, f.cfg.ArrayDelimiter) {
		if label == "" {
			continue
		}
		triple(&b, subj, rdfType, f.iri(label))
	}
	for _, name := range ref.Names() {
		v := ref.Value(n.Properties, name)
		if v == nil {
			continue
		}
		var lit string
		if vals, isArr := asSlice(v); isArr {
			lit = literal(f.RenderArray(vals), "")
		} else {
			lit = literal(fmt.Sprint(v), xsdDatatype(ref.Type(name)))
		}
		tripleRaw(&b, subj, f.iri(name), lit)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (f *rdfFormatter) RenderEdgeRow(e *graph.Edge, ref *PropertyRef, relType string, useID bool) string {
	var b strings.Builder
	pred := f.iri(relType)
	triple(&b, f.iri(e.SourceID), pred, f.iri(e.TargetID))

	type propLit struct{ name, lit string }
	var props []propLit
	for _, name := range ref.Names() {
		v := ref.Value(e.Properties, name)
		if v == nil {
			continue
		}
		props = append(props, propLit{name, literal(fmt.Sprint(v), xsdDatatype(ref.Type(name)))})
	}
	switch {
	case len(props) == 0:
	case useID && e.ID != "":
		// Properties hang off the edge IRI when the edge has an
		// identity of its own.
		subj := f.iri(e.ID)
		for _, p := range props {
			tripleRaw(&b, subj, f.iri(p.name), p.lit)
		}
	default:
		// Anonymous edges reify the statement on a blank node so
		// their properties still land in the output.
		bn := blankNode(e.SourceID + "_" + relType + "_" + e.TargetID)
		blankTriple(&b, bn, rdfType, rdfStatement)
		blankTriple(&b, bn, rdfSubject, f.iri(e.SourceID))
		blankTriple(&b, bn, rdfPredicate, pred)
		blankTriple(&b, bn, rdfObject, f.iri(e.TargetID))
		for _, p := range props {
			blankTripleRaw(&b, bn, f.iri(p.name), p.lit)
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (f *rdfFormatter) RenderNodeHeader(typeName string, ref *PropertyRef) string {
	var b strings.Builder
	class := f.iri(typeName)
	triple(&b, class, rdfType, owlClass)
	tripleRaw(&b, class, rdfsLabelPred, literal(typeName, ""))
	for _, name := range ref.Names() {
		triple(&b, f.iri(name), rdfsDomain, class)
	}
	return b.String()
}

func (f *rdfFormatter) RenderEdgeHeader(typeName string, ref *PropertyRef, useID bool) string {
	var b strings.Builder
	pred := f.iri(typeName)
	triple(&b, pred, rdfType, "http://www.w3.org/2002/07/owl#ObjectProperty")
	for _, name := range ref.Names() {
		triple(&b, f.iri(name), rdfsDomain, pred)
	}
	return b.String()
}

// Triples are self-contained; load order carries no constraint.
func (f *rdfFormatter) RequiresNodesFirst() bool { return false }

func (f *rdfFormatter) ImportScriptName() string { return "rdf-import-call.sh" }

func (f *rdfFormatter) ImportCall(reg *Registry) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	out := reg.OutDir() + "/" + f.cfg.DatabaseName + ".nt"
	files := make([]string, 0)
	for _, t := range reg.NodeTypes() {
		files = append(files, reg.NodeHeader(t))
		files = append(files, reg.NodeParts(t)...)
	}
	for _, t := range reg.EdgeTypes() {
		files = append(files, reg.EdgeHeader(t))
		files = append(files, reg.EdgeParts(t)...)
	}
	for i, file := range files {
		op := ">>"
		if i == 0 {
			op = ">"
		}
		fmt.Fprintf(&b, "cat %q %s %q\n", file, op, out)
	}
	return b.String()
}

func (f *rdfFormatter) iri(local string) string {
	escaped := strings.NewReplacer(" ", "%20", "<", "%3C", ">", "%3E", `"`, "%22").Replace(local)
	return f.cfg.RDFNamespace + escaped
}

func triple(b *strings.Builder, s, p, o string) {
	fmt.Fprintf(b, "<%s> <%s> <%s> .\n", s, p, o)
}

func tripleRaw(b *strings.Builder, s, p, oLiteral string) {
	fmt.Fprintf(b, "<%s> <%s> %s .\n", s, p, oLiteral)
}

func blankTriple(b *strings.Builder, bn, p, o string) {
	fmt.Fprintf(b, "%s <%s> <%s> .\n", bn, p, o)
}

func blankTripleRaw(b *strings.Builder, bn, p, oLiteral string) {
	fmt.Fprintf(b, "%s <%s> %s .\n", bn, p, oLiteral)
}

// blankNode derives a deterministic blank node label from the
// statement's endpoints, restricted to the characters N-Triples allows
// in blank node labels.
func blankNode(seed string) string {
	out := make([]byte, 0, len(seed)+2)
	out = append(out, '_', ':')
	for i := 0; i < len(seed); i++ {
		c := seed[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func literal(value, datatype string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`).Replace(value)
	if datatype == "" {
		return `"` + escaped + `"`
	}
	return `"` + escaped + `"^^<` + datatype + `>`
}

func xsdDatatype(tag string) string {
	switch strings.ToLower(strings.TrimSuffix(tag, "[]")) {
	case "int", "integer":
		return xsdNS + "integer"
	case "long":
		return xsdNS + "long"
	case "float":
		return xsdNS + "float"
	case "double", "dbl":
		return xsdNS + "double"
	case "bool", "boolean":
		return xsdNS + "boolean"
	default:
		return ""
	}
}
