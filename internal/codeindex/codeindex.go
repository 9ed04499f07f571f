// Package codeindex is the code indexer (C8): a multi-language tree-sitter
// parser that extracts AST entities (functions, methods, classes/structs,
// files) and their imports, computes deterministic qualified names and
// stable ids, and exposes find_entity/analyze_impact for C6's auto-linking
// and impact-analysis operations. Grounded on the teacher's
// internal/chunk package's tree-sitter wrapper, expanded from 4 languages
// to the full 11 the spec names, and adding parent-chain qualified-name
// computation the teacher's flattened chunker never needed.
package codeindex
