package codeindex

import (
	"context"

	memerrors "github.com/memctx/memctx/internal/errors"
	"github.com/memctx/memctx/internal/storage"
)

// FindEntity resolves a name to a code entity, matching on qualified_name
// suffix first then exact name, with ambiguity broken by shorter qualified
// name (storage.FindEntitiesByName already returns results in that order).
// This is the concrete implementation of memory.EntityResolver, letting C6
// auto-link backtick-delimited symbols without importing this package.
func (idx *Indexer) FindEntity(ctx context.Context, projectPath, name string) (*storage.CodeEntity, error) {
	entities, err := idx.Store.FindEntitiesByName(ctx, projectPath, name)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, memerrors.NotFoundf("codeindex.FindEntity", "no entity named %q in %s", name, projectPath)
	}
	return entities[0], nil
}
