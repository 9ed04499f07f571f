package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memctx/memctx/internal/hybrid"
	"github.com/memctx/memctx/internal/memory"
	"github.com/memctx/memctx/internal/storage"
)

// MemoryOutput is the tool-facing projection of a storage.Memory; callers
// never see the row's internal vector_embedding_ref handle.
type MemoryOutput struct {
	ID               int64             `json:"id"`
	Category         string            `json:"category"`
	Content          string            `json:"content"`
	Rationale        string            `json:"rationale,omitempty"`
	Context          map[string]string `json:"context,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	FilePathAbsolute string            `json:"file_path_absolute,omitempty"`
	FilePathRelative string            `json:"file_path_relative,omitempty"`
	IsPermanent      bool              `json:"is_permanent"`
	Pinned           bool              `json:"pinned"`
	Archived         bool              `json:"archived"`
	Outcome          string            `json:"outcome,omitempty"`
	Worked           *bool             `json:"worked,omitempty"`
	HasEmbedding     bool              `json:"has_embedding"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

func toMemoryOutput(m *storage.Memory) MemoryOutput {
	return MemoryOutput{
		ID:               m.ID,
		Category:         string(m.Category),
		Content:          m.Content,
		Rationale:        m.Rationale,
		Context:          m.Context,
		Tags:             m.Tags,
		FilePathAbsolute: m.FilePathAbsolute,
		FilePathRelative: m.FilePathRelative,
		IsPermanent:      m.IsPermanent,
		Pinned:           m.Pinned,
		Archived:         m.Archived,
		Outcome:          m.Outcome,
		Worked:           m.Worked,
		HasEmbedding:     m.HasEmbedding(),
		CreatedAt:        m.CreatedAt.Format(timeFormat),
		UpdatedAt:        m.UpdatedAt.Format(timeFormat),
	}
}

// RememberInput is remember's tool input.
type RememberInput struct {
	ProjectPath string            `json:"project_path" jsonschema:"absolute path to the project root"`
	Category    string            `json:"category" jsonschema:"decision, pattern, warning, or learning"`
	Content     string            `json:"content" jsonschema:"the memory text, 1-50000 bytes"`
	Rationale   string            `json:"rationale,omitempty" jsonschema:"why this decision/pattern/warning/learning holds"`
	Tags        []string          `json:"tags,omitempty" jsonschema:"short free-form tags"`
	FilePath    string            `json:"file_path,omitempty" jsonschema:"file this memory concerns, absolute or project-relative"`
	Context     map[string]string `json:"context,omitempty" jsonschema:"opaque structured context"`
}

// RememberOutput is remember's tool output.
type RememberOutput struct {
	Memory       MemoryOutput `json:"memory"`
	LinkedCode   []string     `json:"linked_code,omitempty" jsonschema:"names of code entities auto-linked from backtick-delimited symbols"`
}

func (s *Server) remember(ctx context.Context, _ *mcp.CallToolRequest, in RememberInput) (*mcp.CallToolResult, RememberOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, RememberOutput{}, mapError(err)
	}

	result, err := pc.Memory.Remember(ctx, memory.RememberInput{
		Category:  storage.Category(in.Category),
		Content:   in.Content,
		Rationale: in.Rationale,
		Tags:      in.Tags,
		FilePath:  in.FilePath,
		Context:   in.Context,
	})
	if err != nil {
		return nil, RememberOutput{}, mapError(err)
	}

	out := RememberOutput{Memory: toMemoryOutput(result.Memory)}
	for _, ref := range result.Refs {
		out.LinkedCode = append(out.LinkedCode, ref.EntityName)
	}
	return nil, out, nil
}

// RecallInput is recall's tool input.
type RecallInput struct {
	ProjectPath     string   `json:"project_path" jsonschema:"absolute path to the project root"`
	Topic           string   `json:"topic" jsonschema:"free-text query"`
	Categories      []string `json:"categories,omitempty" jsonschema:"restrict to these categories"`
	Tags            []string `json:"tags,omitempty" jsonschema:"match any of these tags"`
	FilePath        string   `json:"file_path,omitempty" jsonschema:"restrict to memories about this file"`
	Since           string   `json:"since,omitempty" jsonschema:"RFC3339 lower bound on created_at"`
	Until           string   `json:"until,omitempty" jsonschema:"RFC3339 upper bound on created_at"`
	Offset          int      `json:"offset,omitempty"`
	Limit           int      `json:"limit,omitempty" jsonschema:"default from config.search_default_limit"`
	IncludeArchived bool     `json:"include_archived,omitempty"`
}

// RecallOutput is recall's tool output: a scored, paginated bundle.
type RecallOutput struct {
	Results []ScoredMemory `json:"results"`
	Total   int            `json:"total"`
	HasMore bool           `json:"has_more"`
}

// ScoredMemory pairs a memory with its fused hybrid score.
type ScoredMemory struct {
	Memory MemoryOutput `json:"memory"`
	Score  float64      `json:"score"`
}

func (s *Server) recall(ctx context.Context, _ *mcp.CallToolRequest, in RecallInput) (*mcp.CallToolResult, RecallOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, RecallOutput{}, mapError(err)
	}
	if err := pc.EnsureMemoryFresh(ctx); err != nil {
		return nil, RecallOutput{}, mapError(err)
	}

	f := hybrid.Filter{
		TagsAny:         in.Tags,
		FilePath:        in.FilePath,
		IncludeArchived: in.IncludeArchived,
		Offset:          in.Offset,
		Limit:           in.Limit,
	}
	for _, c := range in.Categories {
		f.Categories = append(f.Categories, storage.Category(c))
	}
	if in.Since != "" {
		if t, perr := parseTime(in.Since); perr == nil {
			f.Since = &t
		}
	}
	if in.Until != "" {
		if t, perr := parseTime(in.Until); perr == nil {
			f.Until = &t
		}
	}

	bundle, err := pc.Memory.Recall(ctx, in.Topic, f)
	if err != nil {
		return nil, RecallOutput{}, mapError(err)
	}

	out := RecallOutput{Total: bundle.Total, HasMore: bundle.HasMore}
	for _, r := range bundle.Results {
		out.Results = append(out.Results, ScoredMemory{Memory: toMemoryOutput(r.Memory), Score: r.Score})
	}
	return nil, out, nil
}

// SearchInput is search's tool input: recall without decay/diversity.
type SearchInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	Query       string `json:"query" jsonschema:"free-text query"`
	Limit       int    `json:"limit,omitempty"`
}

// SearchOutput is search's tool output.
type SearchOutput struct {
	Results []ScoredMemory `json:"results"`
}

func (s *Server) search(ctx context.Context, _ *mcp.CallToolRequest, in SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	if err := pc.EnsureMemoryFresh(ctx); err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	results, err := pc.Memory.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}

	out := SearchOutput{}
	for _, r := range results {
		out.Results = append(out.Results, ScoredMemory{Memory: toMemoryOutput(r.Memory), Score: r.Score})
	}
	return nil, out, nil
}

// RecordOutcomeInput is record_outcome's tool input.
type RecordOutcomeInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	ID          int64  `json:"id" jsonschema:"memory id"`
	Outcome     string `json:"outcome" jsonschema:"free-text outcome description"`
	Worked      bool   `json:"worked"`
}

// RecordOutcomeOutput wraps the updated memory.
type RecordOutcomeOutput struct {
	Memory MemoryOutput `json:"memory"`
}

func (s *Server) recordOutcome(ctx context.Context, _ *mcp.CallToolRequest, in RecordOutcomeInput) (*mcp.CallToolResult, RecordOutcomeOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, RecordOutcomeOutput{}, mapError(err)
	}
	mem, err := pc.Memory.RecordOutcome(ctx, in.ID, in.Outcome, in.Worked)
	if err != nil {
		return nil, RecordOutcomeOutput{}, mapError(err)
	}
	return nil, RecordOutcomeOutput{Memory: toMemoryOutput(mem)}, nil
}

// PinInput is pin's tool input.
type PinInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	ID          int64  `json:"id" jsonschema:"memory id"`
	Pinned      bool   `json:"pinned"`
}

// PinOutput wraps the updated memory.
type PinOutput struct {
	Memory MemoryOutput `json:"memory"`
}

func (s *Server) pin(ctx context.Context, _ *mcp.CallToolRequest, in PinInput) (*mcp.CallToolResult, PinOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, PinOutput{}, mapError(err)
	}
	mem, err := pc.Memory.Pin(ctx, in.ID, in.Pinned)
	if err != nil {
		return nil, PinOutput{}, mapError(err)
	}
	return nil, PinOutput{Memory: toMemoryOutput(mem)}, nil
}

// ArchiveInput is archive's tool input.
type ArchiveInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	ID          int64  `json:"id" jsonschema:"memory id"`
	Archived    bool   `json:"archived"`
}

// ArchiveOutput wraps the updated memory.
type ArchiveOutput struct {
	Memory MemoryOutput `json:"memory"`
}

func (s *Server) archive(ctx context.Context, _ *mcp.CallToolRequest, in ArchiveInput) (*mcp.CallToolResult, ArchiveOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, ArchiveOutput{}, mapError(err)
	}
	mem, err := pc.Memory.Archive(ctx, in.ID, in.Archived)
	if err != nil {
		return nil, ArchiveOutput{}, mapError(err)
	}
	return nil, ArchiveOutput{Memory: toMemoryOutput(mem)}, nil
}

// PruneInput is prune's tool input.
type PruneInput struct {
	ProjectPath   string   `json:"project_path" jsonschema:"absolute path to the project root"`
	OlderThanDays int      `json:"older_than_days" jsonschema:"minimum age in days"`
	Categories    []string `json:"categories,omitempty" jsonschema:"restrict to these categories; empty means all"`
	DryRun        bool     `json:"dry_run,omitempty"`
}

// PruneOutput reports what prune did or would do.
type PruneOutput struct {
	Count   int            `json:"count"`
	Samples []MemoryOutput `json:"samples,omitempty"`
	DryRun  bool           `json:"dry_run"`
}

func (s *Server) prune(ctx context.Context, _ *mcp.CallToolRequest, in PruneInput) (*mcp.CallToolResult, PruneOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, PruneOutput{}, mapError(err)
	}

	var categories []storage.Category
	for _, c := range in.Categories {
		categories = append(categories, storage.Category(c))
	}

	result, err := pc.Memory.Prune(ctx, in.OlderThanDays, categories, in.DryRun)
	if err != nil {
		return nil, PruneOutput{}, mapError(err)
	}

	out := PruneOutput{Count: result.Count, DryRun: result.DryRun}
	for _, mem := range result.Samples {
		out.Samples = append(out.Samples, toMemoryOutput(mem))
	}
	return nil, out, nil
}

// CleanupInput is cleanup's tool input.
type CleanupInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	DryRun      bool   `json:"dry_run,omitempty"`
}

// CleanupGroup is one duplicate group cleanup acted on.
type CleanupGroup struct {
	Keeper   MemoryOutput   `json:"keeper"`
	Absorbed []MemoryOutput `json:"absorbed"`
}

// CleanupOutput reports the duplicate groups cleanup found.
type CleanupOutput struct {
	Groups []CleanupGroup `json:"groups,omitempty"`
	DryRun bool           `json:"dry_run"`
}

func (s *Server) cleanup(ctx context.Context, _ *mcp.CallToolRequest, in CleanupInput) (*mcp.CallToolResult, CleanupOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, CleanupOutput{}, mapError(err)
	}

	result, err := pc.Memory.CleanupDuplicates(ctx, in.DryRun)
	if err != nil {
		return nil, CleanupOutput{}, mapError(err)
	}

	out := CleanupOutput{DryRun: result.DryRun}
	for _, g := range result.Groups {
		group := CleanupGroup{Keeper: toMemoryOutput(g.Keeper)}
		for _, a := range g.Absorbed {
			group.Absorbed = append(group.Absorbed, toMemoryOutput(a))
		}
		out.Groups = append(out.Groups, group)
	}
	return nil, out, nil
}

// RebuildIndexInput is rebuild_index's tool input.
type RebuildIndexInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
}

// RebuildIndexOutput confirms the rebuild.
type RebuildIndexOutput struct {
	IndexBuiltAt string `json:"index_built_at"`
}

func (s *Server) rebuildIndex(ctx context.Context, _ *mcp.CallToolRequest, in RebuildIndexInput) (*mcp.CallToolResult, RebuildIndexOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, RebuildIndexOutput{}, mapError(err)
	}
	if err := pc.Memory.RebuildIndex(ctx); err != nil {
		return nil, RebuildIndexOutput{}, mapError(err)
	}
	return nil, RebuildIndexOutput{IndexBuiltAt: pc.Memory.IndexBuiltAt().Format(timeFormat)}, nil
}

// ExportInput is export's tool input.
type ExportInput struct {
	ProjectPath       string `json:"project_path" jsonschema:"absolute path to the project root"`
	IncludeEmbeddings bool   `json:"include_embeddings,omitempty"`
}

// ExportOutput is the neutral export payload.
type ExportOutput struct {
	Data *memory.ExportData `json:"data"`
}

func (s *Server) export(ctx context.Context, _ *mcp.CallToolRequest, in ExportInput) (*mcp.CallToolResult, ExportOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, ExportOutput{}, mapError(err)
	}
	data, err := pc.Memory.Export(ctx, in.IncludeEmbeddings)
	if err != nil {
		return nil, ExportOutput{}, mapError(err)
	}
	return nil, ExportOutput{Data: data}, nil
}

// ImportInput is import's tool input.
type ImportInput struct {
	ProjectPath string              `json:"project_path" jsonschema:"absolute path to the project root"`
	Data        *memory.ExportData  `json:"data" jsonschema:"export payload previously produced by export"`
	Merge       bool                `json:"merge,omitempty" jsonschema:"true appends to existing data; false replaces it"`
}

// ImportOutput reports how many rows were created.
type ImportOutput struct {
	MemoriesImported int `json:"memories_imported"`
	RulesImported    int `json:"rules_imported"`
}

func (s *Server) importData(ctx context.Context, _ *mcp.CallToolRequest, in ImportInput) (*mcp.CallToolResult, ImportOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, ImportOutput{}, mapError(err)
	}
	result, err := pc.Memory.Import(ctx, in.Data, in.Merge)
	if err != nil {
		return nil, ImportOutput{}, mapError(err)
	}
	return nil, ImportOutput{MemoriesImported: result.MemoriesImported, RulesImported: result.RulesImported}, nil
}
