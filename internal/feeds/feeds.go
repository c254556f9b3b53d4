package feeds

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// Output file names under the docs directory.
const (
	RSSFile  = "feed.xml"
	AtomFile = "feed.atom"
	JSONFile = "feed.json"
)

// Meta is channel-level feed metadata.
type Meta struct {
	SiteURL     string
	Title       string
	Description string
	Language    string
	Generator   string
	Rights      string
	Limit       int
	Updated     time.Time
}

func (m Meta) siteURL() string { return strings.TrimRight(m.SiteURL, "/") }

// Write renders the three feeds concurrently into docsDir. items must be
// ordered newest first; at most meta.Limit are published.
func Write(ctx context.Context, d *dispatch.Dispatcher, docsDir string, meta Meta, items []Item, logger *slog.Logger) dispatch.Outcome {
	if logger == nil {
		logger = slog.Default()
	}
	if meta.Limit <= 0 {
		meta.Limit = DefaultLimit
	}
	if meta.Updated.IsZero() {
		meta.Updated = time.Now()
	}
	items = items[:min(meta.Limit, len(items))]

	job := func(name string, render func(Meta, []Item) ([]byte, error)) dispatch.Job {
		path := filepath.Join(docsDir, name)
		return dispatch.Job{Name: path, Run: func(context.Context) error {
			data, err := render(meta, items)
			if err != nil {
				return err
			}
			if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
				return err
			}
			logger.Debug("Wrote feed", logfields.Path(path), logfields.Count(len(items)))
			return nil
		}}
	}
	return d.ProcessTasks(ctx, []dispatch.Job{
		job(RSSFile, RenderRSS),
		job(AtomFile, RenderAtom),
		job(JSONFile, RenderJSON),
	})
}
