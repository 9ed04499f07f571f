// Package watch drives proactive reindexing (C11 supplement): a project's
// source tree is watched with fsnotify (falling back to polling), and
// every debounced batch of changes triggers an incremental index_project
// restricted to the files that actually changed. Grounded on the teacher's
// internal/watcher.HybridWatcher, which already does the fsnotify/polling
// fallback and debouncing; this package only adds the memctx-specific
// "what to do with a batch of FileEvents" policy.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/memctx/memctx/internal/projectctx"
	"github.com/memctx/memctx/internal/watcher"
)

// Project watches one project's source tree and reindexes it incrementally
// as files change.
type Project struct {
	manager     *projectctx.Manager
	projectPath string
	hybrid      *watcher.HybridWatcher
}

// NewProject builds a watcher for projectPath, wired to manager so each
// reindex call goes through the same cached ProjectContext every tool call
// uses.
func NewProject(manager *projectctx.Manager, projectPath string, opts watcher.Options) (*Project, error) {
	hw, err := watcher.NewHybridWatcher(opts)
	if err != nil {
		return nil, err
	}
	return &Project{manager: manager, projectPath: projectPath, hybrid: hw}, nil
}

// Start begins watching and reindexing until ctx is canceled or Stop is
// called. Runs its forwarding loop in the caller's goroutine; callers that
// want this in the background should run Start in their own goroutine.
func (p *Project) Start(ctx context.Context) error {
	if err := p.hybrid.Start(ctx, p.projectPath); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return p.hybrid.Stop()
		case batch, ok := <-p.hybrid.Events():
			if !ok {
				return nil
			}
			p.handleBatch(ctx, batch)
		case err, ok := <-p.hybrid.Errors():
			if !ok {
				continue
			}
			slog.Warn("watch_error", slog.String("project_path", p.projectPath), slog.String("error", err.Error()))
		}
	}
}

// Stop stops the underlying watcher.
func (p *Project) Stop() error {
	return p.hybrid.Stop()
}

// handleBatch reindexes exactly the files a batch touched, skipping
// deletions (index_project's content-hash comparison already no-ops on
// files that still exist unchanged; a deleted file is left to the next
// full rebuild_index rather than reconciled here).
func (p *Project) handleBatch(ctx context.Context, batch []watcher.FileEvent) {
	patterns := make([]string, 0, len(batch))
	for _, ev := range batch {
		if ev.Operation == watcher.OpDelete || ev.IsDir {
			continue
		}
		patterns = append(patterns, filepath.ToSlash(ev.Path))
	}
	if len(patterns) == 0 {
		return
	}

	pc, err := p.manager.Get(ctx, p.projectPath)
	if err != nil {
		slog.Warn("watch_reindex_context_failed", slog.String("project_path", p.projectPath), slog.String("error", err.Error()))
		return
	}

	if _, err := pc.CodeIndex.IndexProject(ctx, patterns); err != nil {
		slog.Warn("watch_reindex_failed", slog.String("project_path", p.projectPath), slog.String("error", err.Error()))
	}
}
