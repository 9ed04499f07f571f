package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/memctx/memctx/internal/config"
	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/pkg/version"
)

// Server is the MCP server bridging AI coding assistants to the per-project
// memory/rules/code-index stack via C9's context manager. One Server
// process can serve many projects: every tool call carries its own
// project_path and is routed through manager.Get.
type Server struct {
	mcp     *mcp.Server
	manager *projectctx.Manager
	cfg     *config.Config
}

// NewServer builds an MCP server over manager and registers every tool
// named in the external-collaborator contract.
func NewServer(manager *projectctx.Manager, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		manager: manager,
		cfg:     cfg,
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "memctx",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

// context resolves projectPath to its ProjectContext, failing with a
// Validation-shaped error if the caller omitted it.
func (s *Server) context(ctx context.Context, projectPath string) (*projectctx.ProjectContext, error) {
	if projectPath == "" {
		return nil, newInvalidParamsError("project_path is required")
	}
	return s.manager.Get(ctx, projectPath)
}

// MCPServer returns the underlying go-sdk server, for tests and for
// embedding into a larger transport setup.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// registerTools registers the full 19-tool surface named in the
// external-collaborator contract.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "remember",
		Description: "Record a new decision, pattern, warning, or learning about this project. Backtick-delimited symbols in the content are auto-linked to matching code entities.",
	}, s.remember)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recall",
		Description: "Search recorded memories with decay, diversity, and category/tag/file/time filters. The primary retrieval tool for project knowledge.",
	}, s.recall)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Flat search over recorded memories (same lexical and vector lanes as recall), no decay, diversity capping or filters.",
	}, s.search)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "record_outcome",
		Description: "Attach an outcome (worked or didn't) to a previously recorded memory.",
	}, s.recordOutcome)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "pin",
		Description: "Pin or unpin a memory; pinning also marks it permanent.",
	}, s.pin)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "archive",
		Description: "Archive or unarchive a memory, excluding/including it from default recall results.",
	}, s.archive)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "prune",
		Description: "Delete aged, non-permanent, non-pinned, outcome-less memories older than a cutoff. Supports dry_run.",
	}, s.prune)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "cleanup",
		Description: "Find and collapse duplicate memories grouped by category, normalized content, and file path.",
	}, s.cleanup)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rebuild_index",
		Description: "Force a full rebuild of the in-memory lexical index from storage.",
	}, s.rebuildIndex)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "export",
		Description: "Export every memory and rule in the project as a neutral, storage-independent payload.",
	}, s.export)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "import",
		Description: "Import a previously exported payload, merging with or replacing existing data.",
	}, s.importData)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "health",
		Description: "Report engine version, memory/rule/entity counts, index freshness, parse-cache stats, active contexts, and config warnings.",
	}, s.health)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "add_rule",
		Description: "Add a trigger -> obligations rule that check_rules will match against.",
	}, s.addRule)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_rules",
		Description: "List every rule in the project, optionally restricted to enabled ones.",
	}, s.listRules)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "check_rules",
		Description: "Check a block of text (e.g. a planned action) against every rule's trigger and return the matches, most relevant first.",
	}, s.checkRules)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_project",
		Description: "Parse the project's source tree, extracting and embedding code entities; incremental via content hashing.",
	}, s.indexProject)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "find_code",
		Description: "Resolve a symbol name or qualified-name suffix to the code entities it matches.",
	}, s.findCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "analyze_impact",
		Description: "Resolve a code entity and report every memory linked to it plus its recorded callers.",
	}, s.analyzeImpact)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_memories_for_entity",
		Description: "Resolve a code entity and list every memory linked to it.",
	}, s.getMemoriesForEntity)
}

// Serve runs the server over the given transport until ctx is canceled.
// Only "stdio" is implemented; memctx is invoked as a subprocess per MCP
// client, same as the teacher's transport contract.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio", "":
		return s.mcp.Run(ctx, &mcp.StdioTransport{})
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close evicts every live project context, closing their storage handles.
func (s *Server) Close() error {
	s.manager.EvictAll()
	return nil
}
