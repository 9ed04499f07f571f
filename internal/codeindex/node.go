package codeindex

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Point is a row/column position in source, 0-indexed like tree-sitter's own.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is our own copy of a tree-sitter node, flattened into a plain tree
// with parent pointers so qualify.go can walk upward from an entity to its
// enclosing scopes without re-querying tree-sitter.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	Parent     *Node
	Children   []*Node
}

// Tree is a parsed file, kept alongside its source for content slicing.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Content returns the source text spanned by n.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// ChildByType returns the first direct child with the given type.
func (n *Node) ChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// AllByType recursively collects every descendant (including n) of nodeType.
func (n *Node) AllByType(nodeType string) []*Node {
	var out []*Node
	if n.Type == nodeType {
		out = append(out, n)
	}
	for _, c := range n.Children {
		out = append(out, c.AllByType(nodeType)...)
	}
	return out
}

// convertNode recursively mirrors a tree-sitter node into our own Node tree,
// wiring Parent as it goes down.
func convertNode(tsNode *sitter.Node, parent *Node) *Node {
	if tsNode == nil {
		return nil
	}
	n := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Parent:   parent,
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}
	for i := 0; i < int(tsNode.ChildCount()); i++ {
		child := tsNode.Child(i)
		if child == nil {
			continue
		}
		n.Children = append(n.Children, convertNode(child, n))
	}
	return n
}
