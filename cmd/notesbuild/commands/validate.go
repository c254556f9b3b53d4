package commands

import (
	"context"
	"fmt"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/notes"
)

// ValidateCmd implements the 'validate' command.
type ValidateCmd struct {
	Strict bool `help:"Treat warnings as errors"`
}

func (v *ValidateCmd) Run(_ context.Context, g *Global, root *CLI) error {
	cfg, err := loadConfig(g, root)
	if err != nil {
		return err
	}
	list, err := notes.Scan(cfg.NotesDir(), cfg.Paths.Root, g.Logger)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to scan notes").
			WithContext("path", cfg.NotesDir()).
			Build()
	}

	var rows [][]string
	errCount, warnCount := 0, 0
	for _, n := range list {
		for _, p := range notes.Validate(n) {
			if p.Severity == notes.SeverityError {
				errCount++
			} else {
				warnCount++
			}
			rows = append(rows, []string{p.Path, string(p.Severity), p.Field, p.Message})
		}
	}
	if len(rows) > 0 {
		_, _ = fmt.Fprintln(g.Out, renderTable(g.Out, []string{"Note", "Severity", "Field", "Problem"}, rows, nil))
	}
	_, _ = fmt.Fprintf(g.Out, "%d notes checked: %d errors, %d warnings\n", len(list), errCount, warnCount)

	failed := errCount
	if v.Strict {
		failed += warnCount
	}
	if failed > 0 {
		return foundationerrors.ValidationError(fmt.Sprintf("%d validation problems", failed)).
			WithContext("notes", len(list)).
			UserAction().
			Build()
	}
	return nil
}
