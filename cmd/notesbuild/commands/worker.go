package commands

import (
	"context"
	"path/filepath"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/images"
	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/notes"
)

// WorkerCmd runs a single dispatched item; the parent build spawns it for process-pool work.
type WorkerCmd struct {
	Task string `required:"" help:"Task name"`
	Path string `arg:"" help:"Input file"`
}

func (w *WorkerCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	registry := dispatch.NewRegistry(
		notes.NewProcessor(cfg.Paths.Root, filepath.Join(cfg.DataDir(), "notes"),
			markdown.NewRenderer(), cfg.Build.RenderHTML, g.Logger).Task(),
		images.NewHandler(cfg.ImagesDir(), filepath.Join(cfg.DocsDir(), "images"),
			cfg.Build.ImageExtensions, g.Logger).Task(),
	)
	return registry.Run(ctx, w.Task, w.Path)
}
