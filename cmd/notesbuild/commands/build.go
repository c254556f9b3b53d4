package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/build"
	"github.com/xianyu564/tobacco-notes/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Full     bool `short:"f" help:"Ignore the last build state and rebuild everything"`
	NoReport bool `name:"no-report" help:"Do not write the metrics report"`
}

func (b *BuildCmd) Run(ctx context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	svc, closeFn, err := newBuildService(cfg, root, g.Logger)
	if err != nil {
		return err
	}
	defer closeFn()

	res, err := svc.Run(ctx, build.Request{Incremental: !b.Full, NoReport: b.NoReport})
	if res != nil {
		printBuildSummary(g, res)
	}
	return err
}

func printBuildSummary(g *Global, res *build.Result) {
	rows := make([][]string, 0, len(res.Stages))
	for _, st := range res.Stages {
		dur := fmt.Sprintf("%.1f ms", float64(st.Duration.Microseconds())/1000)
		if st.Result == pipeline.StageResultSkipped {
			dur = "-"
		}
		rows = append(rows, []string{string(st.Name), string(st.Result), dur, formatMeta(st.Meta)})
	}
	if len(rows) > 0 {
		_, _ = fmt.Fprintln(g.Out, renderTable(g.Out,
			[]string{"Stage", "Result", "Duration", "Details"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}
	_, _ = fmt.Fprintf(g.Out, "Build %s %s in %s (%d notes, %d images changed)\n",
		shortID(res.BuildID), res.Status, res.Duration.Round(1e6),
		len(res.Changes.ModifiedNotes), len(res.Changes.ModifiedImages))
	if res.ReportPath != "" {
		_, _ = fmt.Fprintf(g.Out, "Metrics report: %s\n", res.ReportPath)
	}
}

func formatMeta(meta pipeline.Meta) string {
	if len(meta) == 0 {
		return ""
	}
	parts := make([]string, 0, len(meta))
	for _, k := range slices.Sorted(maps.Keys(meta)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, meta[k]))
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
