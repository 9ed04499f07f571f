package codeindex

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/memctx/memctx/internal/gitignore"
)

// defaultExcludeDirs mirrors the teacher scanner's default exclusion list,
// trimmed to the directory basenames the spec names explicitly.
var defaultExcludeDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
}

// enumerateFiles walks root, returning project-relative paths for every
// file whose extension the registry recognizes (optionally restricted to
// languages), skipping default-excluded directories and anything
// .gitignore'd.
func enumerateFiles(root string, registry *Registry, languages []string) ([]string, error) {
	ignore := gitignore.New()
	_ = ignore.AddFromFile(filepath.Join(root, ".gitignore"), root)

	allowed := make(map[string]bool, len(languages))
	for _, l := range languages {
		allowed[l] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if defaultExcludeDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
				return filepath.SkipDir
			}
			if ignore.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if ignore.Match(rel, false) {
			return nil
		}

		cfg, ok := registry.ByExtension(filepath.Ext(path))
		if !ok {
			return nil
		}
		if len(allowed) > 0 && !allowed[cfg.Name] {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil || info.Mode()&os.ModeSymlink != 0 {
			return nil
		}

		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}
