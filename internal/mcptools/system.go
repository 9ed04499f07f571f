package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memctx/memctx/pkg/version"
)

// timeFormat is the wire format for every timestamp this package emits.
const timeFormat = time.RFC3339Nano

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// staleAfter is the index-stale threshold health() reports against.
const staleAfter = 24 * time.Hour

// HealthInput is health's tool input.
type HealthInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
}

// HealthOutput is health's tool output, per the spec's status/health
// contract: engine version, project path, per-category memory counts,
// rules count, entity counts by type, last-indexed timestamp, a
// more-than-24h-stale flag, parse-cache stats, active-context count, and
// config warnings.
type HealthOutput struct {
	Version           string         `json:"version"`
	ProjectPath       string         `json:"project_path"`
	MemoriesByCategory map[string]int `json:"memories_by_category"`
	RuleCount         int            `json:"rule_count"`
	EntitiesByType    map[string]int `json:"entities_by_type"`
	LastIndexedAt     string         `json:"last_indexed_at,omitempty"`
	IndexStale        bool           `json:"index_stale"`
	ParseCacheHits    int64          `json:"parse_cache_hits"`
	ParseCacheMisses  int64          `json:"parse_cache_misses"`
	ParseCacheSize    int            `json:"parse_cache_size"`
	ActiveContexts    int            `json:"active_contexts"`
	ConfigWarnings    []string       `json:"config_warnings,omitempty"`
}

func (s *Server) health(ctx context.Context, _ *mcp.CallToolRequest, in HealthInput) (*mcp.CallToolResult, HealthOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, HealthOutput{}, mapError(err)
	}

	memCounts, err := pc.Storage.CountMemoriesByCategory(ctx)
	if err != nil {
		return nil, HealthOutput{}, mapError(err)
	}

	rules, err := pc.Rules.ListRules(ctx, false)
	if err != nil {
		return nil, HealthOutput{}, mapError(err)
	}

	entityCounts, err := pc.Storage.CountEntitiesByType(ctx, pc.ProjectPath)
	if err != nil {
		return nil, HealthOutput{}, mapError(err)
	}

	lastIndexed, err := pc.Storage.MaxEntityIndexedAt(ctx, pc.ProjectPath)
	if err != nil {
		return nil, HealthOutput{}, mapError(err)
	}

	out := HealthOutput{
		Version:            version.Version,
		ProjectPath:        pc.ProjectPath,
		MemoriesByCategory: memCounts,
		RuleCount:          len(rules),
		EntitiesByType:     entityCounts,
		ActiveContexts:     s.manager.Len(),
		ConfigWarnings:     s.configWarnings(),
	}
	if !lastIndexed.IsZero() {
		out.LastIndexedAt = lastIndexed.Format(timeFormat)
		out.IndexStale = time.Since(lastIndexed) > staleAfter
	} else {
		out.IndexStale = true
	}

	stats := pc.CodeIndex.Cache.Stats()
	out.ParseCacheHits = stats.Hits
	out.ParseCacheMisses = stats.Misses
	out.ParseCacheSize = stats.Size

	return nil, out, nil
}

// configWarnings flags configuration combinations that silently degrade
// retrieval quality, the way the spec's health() example calls out
// hybrid_vector_weight=0.0.
func (s *Server) configWarnings() []string {
	var warnings []string
	w := s.cfg.Search.HybridVectorWeight
	switch {
	case w == 0:
		warnings = append(warnings, "hybrid_vector_weight=0.0: lexical only, dense vectors are never consulted")
	case w == 1:
		warnings = append(warnings, "hybrid_vector_weight=1.0: vector only, lexical matches are never consulted")
	}
	if s.cfg.Embedding.Provider == "static" {
		warnings = append(warnings, fmt.Sprintf("embedding.provider=%q: semantic search degraded to a deterministic stand-in", s.cfg.Embedding.Provider))
	}
	return warnings
}
