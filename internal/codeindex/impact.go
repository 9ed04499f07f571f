package codeindex

import (
	"context"

	"github.com/memctx/memctx/internal/storage"
)

// ImpactResult is analyze_impact's return value: the entity itself, every
// memory linked to it, and its called_by list when populated.
type ImpactResult struct {
	Entity   *storage.CodeEntity
	Refs     []*storage.MemoryCodeRef
	CalledBy []string
}

// AnalyzeImpact resolves entityName to an entity in project, then gathers
// every memory linked to it plus its recorded called_by list.
func (idx *Indexer) AnalyzeImpact(ctx context.Context, entityName, projectPath string) (*ImpactResult, error) {
	entity, err := idx.FindEntity(ctx, projectPath, entityName)
	if err != nil {
		return nil, err
	}

	refs, err := idx.Store.ListRefsForEntity(ctx, entity.ID)
	if err != nil {
		return nil, err
	}

	return &ImpactResult{Entity: entity, Refs: refs, CalledBy: entity.CalledBy}, nil
}
