package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/history"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit   int    `short:"n" help:"Number of builds to show" default:"20"`
	Outcome string `help:"Only show builds with this outcome (success, failed, canceled)"`
	BuildID string `arg:"" optional:"" name:"build-id" help:"Show the stages of one build"`
}

func (h *HistoryCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	path := cfg.Resolve(cfg.History.Path)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintf(g.Out, "No build history at %s (enable history.enabled to record builds)\n", path)
		return nil
	}
	store, err := history.Open(path)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryHistory, "failed to open build history").
			WithContext("path", path).
			Build()
	}
	defer func() { _ = store.Close() }()

	if h.BuildID != "" {
		return h.showStages(ctx, g, store)
	}
	return h.showRecent(ctx, g, store)
}

func (h *HistoryCmd) showRecent(ctx context.Context, g *Global, store *history.Store) error {
	builds, err := store.Recent(ctx, h.Limit, h.Outcome)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryHistory, "failed to query build history").Build()
	}
	if len(builds) == 0 {
		_, _ = fmt.Fprintln(g.Out, "No builds recorded")
		return nil
	}
	rows := make([][]string, 0, len(builds))
	for _, b := range builds {
		mode := "full"
		if b.Incremental {
			mode = "incremental"
		}
		rows = append(rows, []string{
			b.ID,
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			b.Duration().Round(1e6).String(),
			b.Outcome,
			mode,
			strconv.Itoa(b.NotesChanged),
			strconv.Itoa(b.ImagesChanged),
		})
	}
	_, _ = fmt.Fprintln(g.Out, renderTable(g.Out,
		[]string{"Build", "Started", "Duration", "Outcome", "Mode", "Notes", "Images"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight}))
	return nil
}

func (h *HistoryCmd) showStages(ctx context.Context, g *Global, store *history.Store) error {
	b, err := store.Get(ctx, h.BuildID)
	if errors.Is(err, history.ErrNotFound) {
		return foundationerrors.NewError(foundationerrors.CategoryNotFound, "build not found").
			WithContext("build_id", h.BuildID).
			Build()
	}
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryHistory, "failed to query build history").Build()
	}
	stages, err := store.Stages(ctx, b.ID)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryHistory, "failed to query build stages").Build()
	}
	rows := make([][]string, 0, len(stages))
	for _, st := range stages {
		rows = append(rows, []string{st.Stage, st.Result, fmt.Sprintf("%.1f ms", float64(st.Duration.Microseconds())/1000)})
	}
	_, _ = fmt.Fprintf(g.Out, "Build %s: %s in %s\n", b.ID, b.Outcome, b.Duration().Round(1e6))
	if b.Error != "" {
		_, _ = fmt.Fprintf(g.Out, "Error: %s\n", b.Error)
	}
	_, _ = fmt.Fprintln(g.Out, renderTable(g.Out, []string{"Stage", "Result", "Duration"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight}))
	return nil
}
