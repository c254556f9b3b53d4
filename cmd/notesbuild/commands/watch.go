package commands

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/build"
	"github.com/xianyu564/tobacco-notes/internal/config"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Full bool `short:"f" help:"Start with a full rebuild"`
}

func (w *WatchCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	svc, closeFn, err := newBuildService(cfg, root, g.Logger)
	if err != nil {
		return err
	}
	defer closeFn()

	rebuild := func(ctx context.Context, full bool) error {
		res, err := svc.Run(ctx, build.Request{Incremental: !full})
		if res != nil && err == nil {
			printBuildSummary(g, res)
		}
		return err
	}

	watcher := watch.New(rebuild, watch.Options{
		Roots:               watchRoots(cfg),
		Debounce:            cfg.Watch.Debounce.Std(),
		FullRebuildInterval: cfg.Watch.FullRebuildInterval.Std(),
		Relevant:            relevantChange(cfg),
		Logger:              g.Logger,
	})
	watcher.Trigger(w.Full)
	if err := watcher.Run(ctx); err != nil && !isCanceled(err) {
		return err
	}
	g.Logger.Info("Watch stopped", logfields.Count(watcher.Builds()))
	return nil
}

func watchRoots(cfg *config.Config) []string {
	roots := []string{cfg.NotesDir()}
	if img := cfg.ImagesDir(); img != cfg.NotesDir() {
		roots = append(roots, img)
	}
	return roots
}

// relevantChange accepts notes and images; generated files such as
// notes/README.md and notes/index.json are not notes and are ignored.
func relevantChange(cfg *config.Config) func(string) bool {
	notesDir := cfg.NotesDir()
	exts := cfg.Build.ImageExtensions
	return func(path string) bool {
		if notes.IsNotePath(notesDir, path) {
			return true
		}
		return slices.Contains(exts, strings.ToLower(filepath.Ext(path)))
	}
}
