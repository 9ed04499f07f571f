package codeindex

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/memctx/memctx/internal/storage"
)

// LanguageConfig maps a language's grammar node types onto the entity
// categories C8 extracts, mirroring the teacher chunk package's
// per-language node-type tables but keyed to storage.EntityType instead of
// a chunk-local SymbolType, and adding ScopeTypes/ImportTypes for qualified
// names and import extraction.
type LanguageConfig struct {
	Name       string
	Extensions []string

	EntityTypes map[storage.EntityType][]string

	// ScopeTypes are node types that enclose other entities (classes,
	// interfaces, impl blocks); used to walk the qualified-name parent chain.
	ScopeTypes []string

	// ImportTypes are node types recognized as import/use statements.
	ImportTypes []string

	// NameFields are node types tried in order to find the identifier
	// child carrying a name (grammars vary: plain identifier vs a
	// language-specific field_identifier/name node).
	NameFields []string
}

func (lc *LanguageConfig) entityTypeFor(nodeType string) (storage.EntityType, bool) {
	for entityType, types := range lc.EntityTypes {
		for _, t := range types {
			if t == nodeType {
				return entityType, true
			}
		}
	}
	return "", false
}

// Registry holds every supported language's grammar and node-type config.
type Registry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewRegistry builds a registry over the full 11-language set the code
// indexer supports.
func NewRegistry() *Registry {
	r := &Registry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerPython()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerRust()
	r.registerJava()
	r.registerRuby()
	r.registerPHP()
	r.registerC()
	r.registerCPP()
	r.registerCSharp()
	return r
}

func (r *Registry) register(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// ByExtension resolves a language config from a lowercase file extension
// (including the leading dot).
func (r *Registry) ByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// ByName resolves a language config by its registered name.
func (r *Registry) ByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// TreeSitterLanguage returns the compiled grammar for a language name.
func (r *Registry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// Names returns every registered language name, used by index_languages
// filtering.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.configs))
	for name := range r.configs {
		names = append(names, name)
	}
	return names
}

func (r *Registry) registerGo() {
	r.register(&LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_declaration"},
			storage.EntityMethod:   {"method_declaration"},
			storage.EntityClass:    {"type_declaration"},
		},
		ImportTypes: []string{"import_declaration"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, golang.GetLanguage())
}

func (r *Registry) registerPython() {
	r.register(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_definition"},
			storage.EntityClass:    {"class_definition"},
		},
		ScopeTypes:  []string{"class_definition"},
		ImportTypes: []string{"import_statement", "import_from_statement"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, python.GetLanguage())
}

func (r *Registry) registerTypeScript() {
	ts := &LanguageConfig{
		Name:       "typescript",
		Extensions: []string{".ts"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_declaration"},
			storage.EntityMethod:   {"method_definition"},
			storage.EntityClass:    {"class_declaration", "interface_declaration", "type_alias_declaration"},
		},
		ScopeTypes:  []string{"class_declaration", "interface_declaration"},
		ImportTypes: []string{"import_statement"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}
	r.register(ts, typescript.GetLanguage())

	tsxCfg := *ts
	tsxCfg.Name = "tsx"
	tsxCfg.Extensions = []string{".tsx"}
	r.register(&tsxCfg, tsx.GetLanguage())
}

func (r *Registry) registerJavaScript() {
	js := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".jsx"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_declaration", "function"},
			storage.EntityMethod:   {"method_definition"},
			storage.EntityClass:    {"class_declaration"},
		},
		ScopeTypes:  []string{"class_declaration"},
		ImportTypes: []string{"import_statement"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}
	r.register(js, javascript.GetLanguage())
}

func (r *Registry) registerRust() {
	r.register(&LanguageConfig{
		Name:       "rust",
		Extensions: []string{".rs"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_item"},
			storage.EntityClass:    {"struct_item", "enum_item", "trait_item"},
		},
		ScopeTypes:  []string{"impl_item", "trait_item", "mod_item"},
		ImportTypes: []string{"use_declaration"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, rust.GetLanguage())
}

func (r *Registry) registerJava() {
	r.register(&LanguageConfig{
		Name:       "java",
		Extensions: []string{".java"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"method_declaration"},
			storage.EntityClass:    {"class_declaration", "interface_declaration", "enum_declaration"},
		},
		ScopeTypes:  []string{"class_declaration", "interface_declaration"},
		ImportTypes: []string{"import_declaration"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, java.GetLanguage())
}

func (r *Registry) registerRuby() {
	r.register(&LanguageConfig{
		Name:       "ruby",
		Extensions: []string{".rb"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"method"},
			storage.EntityClass:    {"class", "module"},
		},
		ScopeTypes:  []string{"class", "module"},
		ImportTypes: []string{"call"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, ruby.GetLanguage())
}

func (r *Registry) registerPHP() {
	r.register(&LanguageConfig{
		Name:       "php",
		Extensions: []string{".php"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_definition"},
			storage.EntityMethod:   {"method_declaration"},
			storage.EntityClass:    {"class_declaration", "interface_declaration"},
		},
		ScopeTypes:  []string{"class_declaration", "interface_declaration"},
		ImportTypes: []string{"namespace_use_declaration"},
		NameFields: []string{"name", "identifier"},
	}, php.GetLanguage())
}

func (r *Registry) registerC() {
	r.register(&LanguageConfig{
		Name:       "c",
		Extensions: []string{".c", ".h"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_definition"},
			storage.EntityClass:    {"struct_specifier"},
		},
		ImportTypes: []string{"preproc_include"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, c.GetLanguage())
}

func (r *Registry) registerCPP() {
	r.register(&LanguageConfig{
		Name:       "cpp",
		Extensions: []string{".cpp", ".cc", ".hpp", ".hh"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"function_definition"},
			storage.EntityClass:    {"class_specifier", "struct_specifier"},
		},
		ScopeTypes:  []string{"class_specifier", "struct_specifier", "namespace_definition"},
		ImportTypes: []string{"preproc_include"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, cpp.GetLanguage())
}

func (r *Registry) registerCSharp() {
	r.register(&LanguageConfig{
		Name:       "csharp",
		Extensions: []string{".cs"},
		EntityTypes: map[storage.EntityType][]string{
			storage.EntityFunction: {"method_declaration"},
			storage.EntityClass:    {"class_declaration", "interface_declaration", "struct_declaration"},
		},
		ScopeTypes:  []string{"class_declaration", "interface_declaration", "struct_declaration", "namespace_declaration"},
		ImportTypes: []string{"using_directive"},
		NameFields: []string{"identifier", "field_identifier", "type_identifier"},
	}, csharp.GetLanguage())
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
