package codeindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/memctx/memctx/internal/storage"
)

// StableID computes the spec's deterministic entity identifier: a function
// of project, file, qualified (or bare) name, and entity type only. Line
// numbers never participate, so an edit that only shifts line ranges keeps
// the same id.
func StableID(projectPath, filePath, qualifiedOrName string, entityType storage.EntityType) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%s", projectPath, filePath, qualifiedOrName, entityType)))
	return hex.EncodeToString(sum[:])[:16]
}
