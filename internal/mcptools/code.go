package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memctx/memctx/internal/storage"
)

// CodeEntityOutput is the tool-facing projection of a storage.CodeEntity.
type CodeEntityOutput struct {
	ID            string   `json:"id"`
	FilePath      string   `json:"file_path"`
	EntityType    string   `json:"entity_type"`
	Name          string   `json:"name"`
	QualifiedName string   `json:"qualified_name"`
	LineStart     int      `json:"line_start"`
	LineEnd       int      `json:"line_end"`
	Signature     string   `json:"signature,omitempty"`
	Docstring     string   `json:"docstring,omitempty"`
	Calls         []string `json:"calls,omitempty"`
	CalledBy      []string `json:"called_by,omitempty"`
}

func toCodeEntityOutput(e *storage.CodeEntity) CodeEntityOutput {
	return CodeEntityOutput{
		ID:            e.ID,
		FilePath:      e.FilePath,
		EntityType:    string(e.EntityType),
		Name:          e.Name,
		QualifiedName: e.QualifiedName,
		LineStart:     e.LineStart,
		LineEnd:       e.LineEnd,
		Signature:     e.Signature,
		Docstring:     e.Docstring,
		Calls:         e.Calls,
		CalledBy:      e.CalledBy,
	}
}

// IndexProjectInput is index_project's tool input.
type IndexProjectInput struct {
	ProjectPath string   `json:"project_path" jsonschema:"absolute path to the project root"`
	Patterns    []string `json:"patterns,omitempty" jsonschema:"glob patterns restricting which files are (re)indexed"`
}

// IndexProjectOutput summarizes the run.
type IndexProjectOutput struct {
	FilesScanned int `json:"files_scanned"`
	FilesParsed  int `json:"files_parsed"`
	FilesSkipped int `json:"files_skipped"`
	EntityCount  int `json:"entity_count"`
}

func (s *Server) indexProject(ctx context.Context, _ *mcp.CallToolRequest, in IndexProjectInput) (*mcp.CallToolResult, IndexProjectOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, IndexProjectOutput{}, mapError(err)
	}

	result, err := pc.CodeIndex.IndexProject(ctx, in.Patterns)
	if err != nil {
		return nil, IndexProjectOutput{}, mapError(err)
	}

	return nil, IndexProjectOutput{
		FilesScanned: result.FilesScanned,
		FilesParsed:  result.FilesParsed,
		FilesSkipped: result.FilesSkipped,
		EntityCount:  result.EntityCount,
	}, nil
}

// FindCodeInput is find_code's tool input.
type FindCodeInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	Name        string `json:"name" jsonschema:"symbol name or qualified-name suffix to resolve"`
}

// FindCodeOutput lists every matching entity, shortest qualified name first.
type FindCodeOutput struct {
	Entities []CodeEntityOutput `json:"entities"`
}

func (s *Server) findCode(ctx context.Context, _ *mcp.CallToolRequest, in FindCodeInput) (*mcp.CallToolResult, FindCodeOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, FindCodeOutput{}, mapError(err)
	}

	entities, err := pc.Storage.FindEntitiesByName(ctx, pc.ProjectPath, in.Name)
	if err != nil {
		return nil, FindCodeOutput{}, mapError(err)
	}

	out := FindCodeOutput{}
	for _, e := range entities {
		out.Entities = append(out.Entities, toCodeEntityOutput(e))
	}
	return nil, out, nil
}

// AnalyzeImpactInput is analyze_impact's tool input.
type AnalyzeImpactInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	EntityName  string `json:"entity_name" jsonschema:"symbol name or qualified-name suffix to resolve"`
}

// AnalyzeImpactOutput reports an entity's linked memories and callers.
type AnalyzeImpactOutput struct {
	Entity       CodeEntityOutput `json:"entity"`
	LinkedMemory []MemoryCodeRef  `json:"linked_memories,omitempty"`
	CalledBy     []string         `json:"called_by,omitempty"`
}

// MemoryCodeRef is the tool-facing projection of a storage.MemoryCodeRef.
type MemoryCodeRef struct {
	MemoryID     int64  `json:"memory_id"`
	EntityName   string `json:"entity_name"`
	FilePath     string `json:"file_path"`
	LineNumber   int    `json:"line_number"`
	Relationship string `json:"relationship"`
}

func (s *Server) analyzeImpact(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeImpactInput) (*mcp.CallToolResult, AnalyzeImpactOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, AnalyzeImpactOutput{}, mapError(err)
	}

	result, err := pc.CodeIndex.AnalyzeImpact(ctx, in.EntityName, pc.ProjectPath)
	if err != nil {
		return nil, AnalyzeImpactOutput{}, mapError(err)
	}

	out := AnalyzeImpactOutput{Entity: toCodeEntityOutput(result.Entity), CalledBy: result.CalledBy}
	for _, ref := range result.Refs {
		out.LinkedMemory = append(out.LinkedMemory, MemoryCodeRef{
			MemoryID:     ref.MemoryID,
			EntityName:   ref.EntityName,
			FilePath:     ref.FilePath,
			LineNumber:   ref.LineNumber,
			Relationship: string(ref.Relationship),
		})
	}
	return nil, out, nil
}

// GetMemoriesForEntityInput is get_memories_for_entity's tool input.
type GetMemoriesForEntityInput struct {
	ProjectPath string `json:"project_path" jsonschema:"absolute path to the project root"`
	EntityName  string `json:"entity_name" jsonschema:"symbol name or qualified-name suffix to resolve"`
}

// GetMemoriesForEntityOutput lists every memory linked to the resolved entity.
type GetMemoriesForEntityOutput struct {
	Entity   CodeEntityOutput `json:"entity"`
	Memories []MemoryOutput   `json:"memories"`
}

func (s *Server) getMemoriesForEntity(ctx context.Context, _ *mcp.CallToolRequest, in GetMemoriesForEntityInput) (*mcp.CallToolResult, GetMemoriesForEntityOutput, error) {
	pc, err := s.context(ctx, in.ProjectPath)
	if err != nil {
		return nil, GetMemoriesForEntityOutput{}, mapError(err)
	}

	entity, err := pc.CodeIndex.FindEntity(ctx, pc.ProjectPath, in.EntityName)
	if err != nil {
		return nil, GetMemoriesForEntityOutput{}, mapError(err)
	}

	refs, err := pc.Storage.ListRefsForEntity(ctx, entity.ID)
	if err != nil {
		return nil, GetMemoriesForEntityOutput{}, mapError(err)
	}

	out := GetMemoriesForEntityOutput{Entity: toCodeEntityOutput(entity)}
	for _, ref := range refs {
		mem, err := pc.Storage.GetMemory(ctx, ref.MemoryID)
		if err != nil {
			continue
		}
		out.Memories = append(out.Memories, toMemoryOutput(mem))
	}
	return nil, out, nil
}
