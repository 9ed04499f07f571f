package codeindex

import (
	"strings"
)

// modulePath derives the dotted module prefix from a project-relative file
// path: slashes become dots, the extension is dropped, and a trailing
// "__init__" package-marker segment is dropped too (Python convention:
// pkg/__init__.py is addressed as just "pkg").
func modulePath(filePath string) string {
	p := filePath
	if i := strings.LastIndex(p, "."); i >= 0 {
		p = p[:i]
	}
	p = strings.ReplaceAll(p, "/", ".")
	p = strings.TrimSuffix(p, ".__init__")
	return p
}

// nameOf finds the identifier child of n using the language's candidate
// name-field node types, tried in order, at n's direct children first and
// then one level deeper (Go's type_declaration wraps its type_identifier
// inside an intermediate type_spec node; other grammars have similar
// single-level wrapper nodes around const/var specs).
func nameOf(n *Node, cfg *LanguageConfig, source []byte) string {
	for _, fieldType := range cfg.NameFields {
		if child := n.ChildByType(fieldType); child != nil {
			return child.Content(source)
		}
	}
	for _, wrapper := range n.Children {
		for _, fieldType := range cfg.NameFields {
			if grandchild := wrapper.ChildByType(fieldType); grandchild != nil {
				return grandchild.Content(source)
			}
		}
	}
	return ""
}

// qualifiedName walks the parent chain from an entity node, collecting the
// names of enclosing scope nodes (class/interface/impl/module), and
// prepends the file's module path. Returns "module.Outer.Inner.entity" or
// "module.entity" when there is no enclosing scope.
func qualifiedName(entity *Node, entityName, filePath string, cfg *LanguageConfig, source []byte) string {
	var scopes []string
	for p := entity.Parent; p != nil; p = p.Parent {
		if !isScopeType(p.Type, cfg.ScopeTypes) {
			continue
		}
		if name := nameOf(p, cfg, source); name != "" {
			scopes = append(scopes, name)
		}
	}
	// scopes was collected innermost-first; reverse to outermost-first.
	for i, j := 0, len(scopes)-1; i < j; i, j = i+1, j-1 {
		scopes[i], scopes[j] = scopes[j], scopes[i]
	}

	parts := []string{modulePath(filePath)}
	parts = append(parts, scopes...)
	parts = append(parts, entityName)
	return strings.Join(parts, ".")
}

func isScopeType(nodeType string, scopeTypes []string) bool {
	for _, t := range scopeTypes {
		if t == nodeType {
			return true
		}
	}
	return false
}
