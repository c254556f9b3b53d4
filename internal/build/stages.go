package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/assets"
	"github.com/xianyu564/tobacco-notes/internal/contributors"
	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/feeds"
	"github.com/xianyu564/tobacco-notes/internal/images"
	"github.com/xianyu564/tobacco-notes/internal/incremental"
	"github.com/xianyu564/tobacco-notes/internal/index"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
	"github.com/xianyu564/tobacco-notes/internal/search"
	"github.com/xianyu564/tobacco-notes/internal/tags"
)

// run is the state of a single build. Stages execute sequentially, so its
// fields need no locking; item-level work only reads them.
type run struct {
	svc        *Service
	req        Request
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher

	changes   incremental.ChangeSet
	noteFiles []string
	inventory []*notes.Note
}

func newRun(s *Service, req Request, logger *slog.Logger) *run {
	return &run{
		svc:    s,
		req:    req,
		logger: logger,
		dispatcher: dispatch.New(
			dispatch.WithWorkers(s.cfg.Build.Workers),
			dispatch.WithSpawner(s.spawner),
			dispatch.WithLogger(logger),
		),
	}
}

func (r *run) pipeline() []pipeline.StageDef {
	return pipeline.NewPipeline().
		Add(pipeline.StageDiscoverChanges, r.discoverChanges).
		Add(pipeline.StageProcessNotes, r.processNotes).
		Add(pipeline.StageProcessImages, r.processImages).
		Add(pipeline.StageBuildIndex, r.buildIndex).
		Add(pipeline.StageBuildFeeds, r.buildFeeds).
		Add(pipeline.StageGenerateAssets, r.generateAssets).
		Add(pipeline.StageVersionAssets, r.versionAssets).
		Add(pipeline.StageBuildSearchIndex, r.buildSearchIndex).
		Build()
}

func (r *run) chunkSize(n int) int {
	if r.svc.cfg.Build.ChunkSize > 0 {
		return r.svc.cfg.Build.ChunkSize
	}
	return dispatch.OptimalChunkSize(n, runtime.NumCPU())
}

// itemFailures turns a dispatch outcome into the owning stage's error.
// Any failed item fails the stage.
func itemFailures(stage pipeline.StageName, out dispatch.Outcome) error {
	if out.OK() {
		return nil
	}
	return pipeline.NewFatalStageError(stage,
		fmt.Errorf("%w: %d of %d failed: %w", pipeline.ErrItemFailures, len(out.Failures), out.Total, out.Err()))
}

func (r *run) discoverChanges(context.Context) (pipeline.Meta, error) {
	cfg := r.svc.cfg
	var since *incremental.BuildState
	if r.req.Incremental {
		st, err := incremental.LoadState(cfg.StateFile())
		switch {
		case errors.Is(err, incremental.ErrCorruptState):
			r.logger.Warn("Build state unreadable; rebuilding everything",
				logfields.Path(cfg.StateFile()), logfields.Error(err))
		case err != nil:
			return nil, err
		default:
			since = st
		}
	}

	tracker := &incremental.Tracker{
		NotesDir:  cfg.NotesDir(),
		ImagesDir: cfg.ImagesDir(),
		NoteExt:   cfg.Build.NoteExtension,
		ImageExts: cfg.Build.ImageExtensions,
	}
	cs, err := tracker.Changes(since)
	if err != nil {
		return nil, err
	}
	r.changes = cs
	for _, p := range cs.ModifiedNotes {
		if notes.IsNotePath(cfg.NotesDir(), p) {
			r.noteFiles = append(r.noteFiles, p)
		}
	}

	meta := pipeline.Meta{
		"full":   since == nil,
		"notes":  len(cs.ModifiedNotes),
		"images": len(cs.ModifiedImages),
	}
	if since != nil {
		meta["since"] = since.Time().UTC().Format(time.RFC3339)
		if cs.Empty() {
			r.logger.Info("No changes since last build", slog.Time("since", since.Time()))
		}
	}
	return meta, nil
}

func (r *run) processNotes(ctx context.Context) (pipeline.Meta, error) {
	files := r.noteFiles
	if len(files) == 0 {
		return pipeline.Meta{"items": 0}, pipeline.ErrStageSkipped
	}
	cfg := r.svc.cfg
	proc := notes.NewProcessor(cfg.Paths.Root, filepath.Join(cfg.DataDir(), "notes"),
		r.svc.renderer, cfg.Build.RenderHTML, r.logger)

	out := r.dispatcher.ProcessFiles(ctx, files, proc.Task(), dispatch.PoolThread, r.chunkSize(len(files)))
	r.svc.recorder.AddItems(string(pipeline.StageProcessNotes), out.Processed, len(out.Failures))
	return pipeline.Meta{
		"items":  len(files),
		"failed": len(out.Failures),
		"chunks": out.Chunks,
		"pool":   string(dispatch.PoolThread),
	}, itemFailures(pipeline.StageProcessNotes, out)
}

func (r *run) processImages(ctx context.Context) (pipeline.Meta, error) {
	files := r.changes.ModifiedImages
	if len(files) == 0 {
		return pipeline.Meta{"items": 0}, pipeline.ErrStageSkipped
	}
	cfg := r.svc.cfg
	handler := images.NewHandler(cfg.ImagesDir(), filepath.Join(cfg.DocsDir(), "images"),
		cfg.Build.ImageExtensions, r.logger)
	policy := images.Policy(cfg.Build.ProcessThresholdBytes, cfg.Build.ProcessExtensions, cfg.Build.InvertPartition)
	heavy, light := dispatch.Partition(files, policy)
	r.logger.Debug("Partitioned images",
		slog.Int("process_pool", len(heavy)), slog.Int("thread_pool", len(light)))

	out := r.dispatcher.ProcessFiles(ctx, heavy, handler.Task(), dispatch.PoolProcess, r.chunkSize(len(heavy)))
	out = out.Merge(r.dispatcher.ProcessFiles(ctx, light, handler.Task(), dispatch.PoolThread, r.chunkSize(len(light))))
	r.svc.recorder.AddItems(string(pipeline.StageProcessImages), out.Processed, len(out.Failures))
	return pipeline.Meta{
		"items":        len(files),
		"failed":       len(out.Failures),
		"process_pool": len(heavy),
		"thread_pool":  len(light),
	}, itemFailures(pipeline.StageProcessImages, out)
}

// scanNotes loads the full inventory once per run, after note processing.
func (r *run) scanNotes() ([]*notes.Note, error) {
	if r.inventory != nil {
		return r.inventory, nil
	}
	list, err := notes.Scan(r.svc.cfg.NotesDir(), r.svc.cfg.Paths.Root, r.logger)
	if err != nil {
		return nil, fmt.Errorf("scan notes: %w", err)
	}
	if list == nil {
		list = []*notes.Note{}
	}
	r.inventory = list
	return list, nil
}

func (r *run) buildIndex(context.Context) (pipeline.Meta, error) {
	cfg := r.svc.cfg
	list, err := r.scanNotes()
	if err != nil {
		return nil, err
	}
	written, err := index.Write(index.Options{
		NotesDir:    cfg.NotesDir(),
		DataDir:     cfg.DataDir(),
		LatestLimit: cfg.Site.LatestLimit,
	}, index.Entries(list, r.svc.renderer))
	if err != nil {
		return nil, err
	}
	tagFiles, err := tags.Write(cfg.DataDir(), tags.Aggregate(list))
	if err != nil {
		return nil, err
	}
	written = append(written, tagFiles...)
	meta := pipeline.Meta{"notes": len(list)}

	people, err := contributors.Build(list, contributors.Options{
		RepoRoot:   cfg.Paths.Root,
		NotesDir:   cfg.NotesDir(),
		Maintainer: cfg.Site.Maintainer,
		Now:        time.Now(),
	})
	if err != nil {
		meta["files"] = len(written)
		return meta, pipeline.NewWarnStageError(pipeline.StageBuildIndex, fmt.Errorf("contributors: %w", err))
	}
	path, err := contributors.Write(cfg.DataDir(), people)
	if err != nil {
		return nil, err
	}
	meta["files"] = len(written) + 1
	r.logger.Debug("Index artifacts written", logfields.Count(len(written)+1), slog.String("contributors", path))
	return meta, nil
}

func (r *run) buildFeeds(ctx context.Context) (pipeline.Meta, error) {
	cfg := r.svc.cfg
	list, err := r.scanNotes()
	if err != nil {
		return nil, err
	}
	items, err := feeds.Items(list, cfg.Site.URL, r.svc.renderer)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := feeds.Write(ctx, r.dispatcher, cfg.DocsDir(), feeds.Meta{
		SiteURL:     cfg.Site.URL,
		Title:       cfg.Site.Title,
		Description: cfg.Site.Description,
		Language:    cfg.Site.Language,
		Generator:   cfg.Site.Generator,
		Rights:      fmt.Sprintf("© %d %s", now.Year(), cfg.Site.Author),
		Limit:       cfg.Site.FeedLimit,
		Updated:     now,
	}, items, r.logger)
	return pipeline.Meta{"items": min(len(items), cfg.Site.FeedLimit), "feeds": out.Total},
		itemFailures(pipeline.StageBuildFeeds, out)
}

func (r *run) generateAssets(context.Context) (pipeline.Meta, error) {
	written, err := assets.Generate(r.svc.cfg.AssetsDir())
	if err != nil {
		return nil, err
	}
	return pipeline.Meta{"files": len(written)}, nil
}

func (r *run) versionAssets(ctx context.Context) (pipeline.Meta, error) {
	cfg := r.svc.cfg
	v := &assets.Versioner{
		DocsDir:      cfg.DocsDir(),
		ManifestPath: filepath.Join(cfg.AssetsDir(), "manifest.json"),
		Groups:       assets.DefaultGroups,
		Dispatcher:   r.dispatcher,
		Logger:       r.logger,
	}
	res, err := v.Run(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.Meta{
		"assets":        len(res.Manifest),
		"copied":        res.Copied,
		"html_rewrites": res.HTMLRewrites,
	}, itemFailures(pipeline.StageVersionAssets, res.Outcome)
}

func (r *run) buildSearchIndex(ctx context.Context) (pipeline.Meta, error) {
	list, err := r.scanNotes()
	if err != nil {
		return nil, err
	}
	entries, out := search.Build(ctx, r.dispatcher, list, r.svc.renderer)
	if err := itemFailures(pipeline.StageBuildSearchIndex, out); err != nil {
		return nil, err
	}
	if _, err := search.Write(r.svc.cfg.DataDir(), entries); err != nil {
		return nil, err
	}
	return pipeline.Meta{"entries": len(entries)}, nil
}
