// Package storage is the relational persistence layer for memctx: memories,
// rules, code entities, cross-references, and file hashes. It wraps a
// single-writer SQLite database in WAL mode and exposes a transactional
// scope API so callers commit or roll back multi-row writes atomically.
package storage

import "time"

// Category is the fixed set of memory kinds.
type Category string

const (
	CategoryDecision Category = "decision"
	CategoryPattern  Category = "pattern"
	CategoryWarning  Category = "warning"
	CategoryLearning Category = "learning"
)

// Visibility controls team-sync passthrough metadata the core treats as opaque.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// EntityType enumerates the AST node kinds C8 extracts.
type EntityType string

const (
	EntityFile      EntityType = "file"
	EntityClass     EntityType = "class"
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityModule    EntityType = "module"
	EntityImport    EntityType = "import"
)

// RefRelationship enumerates how a memory relates to a code entity.
type RefRelationship string

const (
	RelAbout      RefRelationship = "about"
	RelModifies   RefRelationship = "modifies"
	RelIntroduces RefRelationship = "introduces"
	RelDeprecates RefRelationship = "deprecates"
)

// Memory is a single recorded unit of project knowledge.
type Memory struct {
	ID                int64
	Category          Category
	Content           string
	Rationale         string
	Context           map[string]string
	Tags              []string
	Keywords          []string
	FilePathAbsolute  string
	FilePathRelative  string
	IsPermanent       bool
	Pinned            bool
	Archived          bool
	Outcome           string
	Worked            *bool
	VectorEmbeddingRef string
	Visibility        Visibility
	OriginID          string
	OriginUser        string
	SyncedAt          *time.Time
	SyncHash          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasEmbedding reports whether this memory has a live C2 reference.
func (m *Memory) HasEmbedding() bool {
	return m.VectorEmbeddingRef != ""
}

// Rule is a trigger -> obligations record.
type Rule struct {
	ID             int64
	Trigger        string
	TriggerKeywords []string
	MustDo         []string
	MustNot        []string
	AskFirst       []string
	Warnings       []string
	Priority       int
	Enabled        bool
	CreatedAt      time.Time
}

// CodeEntity is an AST-extracted symbol.
type CodeEntity struct {
	ID            string
	ProjectPath   string
	FilePath      string
	EntityType    EntityType
	Name          string
	QualifiedName string
	LineStart     int
	LineEnd       int
	Signature     string
	Docstring     string
	Imports       []string
	Calls         []string
	CalledBy      []string
	Inherits      []string
	IndexedAt     time.Time
}

// MemoryCodeRef links a memory to a code entity.
type MemoryCodeRef struct {
	ID           int64
	MemoryID     int64
	CodeEntityID string
	EntityType   EntityType
	EntityName   string
	FilePath     string
	LineNumber   int
	Relationship RefRelationship
}

// FileHash supports incremental indexing.
type FileHash struct {
	ProjectPath string
	FilePath    string
	ContentHash string
	IndexedAt   time.Time
}

// MemoryFilter selects memories for the one broad query operation C5/C6 use
// to resolve search results (or list operations) into materialized rows.
type MemoryFilter struct {
	IDs             []int64
	Categories      []Category
	TagsAny         []string
	FilePath        string
	IncludeArchived bool
	Since           *time.Time
	Until           *time.Time
}
