package codeindex

import (
	"strings"

	"github.com/memctx/memctx/internal/storage"
)

// ExtractEntities walks a parsed tree and returns every code entity it
// finds, plus one synthetic "file" entity (entity_type=file) carrying the
// file's import list, per the spec's entity_type enum and its
// "extract entities and file-level imports" step.
func ExtractEntities(tree *Tree, projectPath, filePath string, cfg *LanguageConfig) []*storage.CodeEntity {
	var entities []*storage.CodeEntity
	var imports []string

	walk(tree.Root, func(n *Node) {
		if importTypeMatch(n.Type, cfg.ImportTypes) {
			text := strings.TrimSpace(n.Content(tree.Source))
			if text == "" {
				return
			}
			imports = append(imports, text)
			qname := modulePath(filePath) + "." + text
			entities = append(entities, &storage.CodeEntity{
				ID:            StableID(projectPath, filePath, qname, storage.EntityImport),
				ProjectPath:   projectPath,
				FilePath:      filePath,
				EntityType:    storage.EntityImport,
				Name:          text,
				QualifiedName: qname,
				LineStart:     int(n.StartPoint.Row) + 1,
				LineEnd:       int(n.EndPoint.Row) + 1,
			})
			return
		}
		entityType, ok := cfg.entityTypeFor(n.Type)
		if !ok {
			return
		}
		name := nameOf(n, cfg, tree.Source)
		if name == "" {
			return
		}
		qname := qualifiedName(n, name, filePath, cfg, tree.Source)
		entities = append(entities, &storage.CodeEntity{
			ID:            StableID(projectPath, filePath, qname, entityType),
			ProjectPath:   projectPath,
			FilePath:      filePath,
			EntityType:    entityType,
			Name:          name,
			QualifiedName: qname,
			LineStart:     int(n.StartPoint.Row) + 1,
			LineEnd:       int(n.EndPoint.Row) + 1,
			Signature:     signatureOf(n, tree.Source),
			Docstring:     docstringOf(n, tree.Source),
		})
	})

	fileQName := modulePath(filePath)
	entities = append(entities, &storage.CodeEntity{
		ID:            StableID(projectPath, filePath, fileQName, storage.EntityFile),
		ProjectPath:   projectPath,
		FilePath:      filePath,
		EntityType:    storage.EntityFile,
		Name:          filePath,
		QualifiedName: fileQName,
		LineStart:     1,
		LineEnd:       int(tree.Root.EndPoint.Row) + 1,
		Imports:       imports,
	})

	return entities
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}

func importTypeMatch(nodeType string, importTypes []string) bool {
	for _, t := range importTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}

// signatureOf returns the entity's first source line, trimmed, standing in
// for a full signature extraction (the declaration header is always on the
// first line for every grammar this package registers).
func signatureOf(n *Node, source []byte) string {
	content := n.Content(source)
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(content)
}

// docstringOf returns the immediately preceding sibling's text if it looks
// like a comment node, the closest a grammar-agnostic walk can get to a
// real docstring/doc-comment extraction.
func docstringOf(n *Node, source []byte) string {
	if n.Parent == nil {
		return ""
	}
	siblings := n.Parent.Children
	for i, s := range siblings {
		if s != n {
			continue
		}
		if i == 0 {
			return ""
		}
		prev := siblings[i-1]
		if strings.Contains(prev.Type, "comment") {
			return strings.TrimSpace(prev.Content(source))
		}
		return ""
	}
	return ""
}
