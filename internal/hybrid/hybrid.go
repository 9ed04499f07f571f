// Package hybrid implements the central fused search algorithm (C5):
// candidates are pulled from up to three lanes (lexical TF-IDF, dense
// vector, and a SQL FTS fallback), max-scaled per lane, linearly fused,
// decayed by age and outcome, filtered, diversity-capped, and paginated.
package hybrid

import (
	"time"

	"github.com/memctx/memctx/internal/storage"
)

// Filter restricts which memories are eligible, independent of the query
// text. Zero values mean "no restriction", except that archived memories
// are excluded unless IncludeArchived is set and a zero Limit means the
// configured default limit.
type Filter struct {
	Categories      []storage.Category
	TagsAny         []string
	FilePath        string
	Since           *time.Time
	Until           *time.Time
	IncludeArchived bool
	Offset          int
	Limit           int
}

// Result is one scored, materialized hit.
type Result struct {
	Memory *storage.Memory
	Score  float64
}

// Bundle is the outcome of a recall/search call.
type Bundle struct {
	Results  []Result
	Total    int
	HasMore  bool
}

func matchesFilter(m *storage.Memory, f Filter) bool {
	if !f.IncludeArchived && m.Archived {
		return false
	}
	if len(f.Categories) > 0 && !categoryIn(f.Categories, m.Category) {
		return false
	}
	if len(f.TagsAny) > 0 && !tagsIntersect(f.TagsAny, m.Tags) {
		return false
	}
	if f.FilePath != "" && !filePathMatches(f.FilePath, m) {
		return false
	}
	if f.Since != nil && m.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && m.CreatedAt.After(*f.Until) {
		return false
	}
	return true
}

func categoryIn(set []storage.Category, c storage.Category) bool {
	for _, s := range set {
		if s == c {
			return true
		}
	}
	return false
}

func tagsIntersect(want, have []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, t := range want {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// filePathMatches allows a filter to name either the exact relative/
// absolute path or a suffix of it (per spec's "suffix tolerance"), so
// filtering by "pkg/foo.go" matches a memory filed against the repo's
// full absolute path.
func filePathMatches(want string, m *storage.Memory) bool {
	if want == m.FilePathRelative || want == m.FilePathAbsolute {
		return true
	}
	return hasSuffixPath(m.FilePathRelative, want) || hasSuffixPath(m.FilePathAbsolute, want)
}

func hasSuffixPath(path, suffix string) bool {
	if path == "" || suffix == "" {
		return false
	}
	if len(suffix) > len(path) {
		return false
	}
	tail := path[len(path)-len(suffix):]
	if tail != suffix {
		return false
	}
	return tail == path || path[len(path)-len(suffix)-1] == '/'
}
