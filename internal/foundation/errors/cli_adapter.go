package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	switch classified.category {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 4
	case CategoryConfig:
		return 7
	case CategoryGit, CategoryNotify, CategoryHistory:
		return 8
	case CategoryBuild, CategoryStage, CategoryFileSystem, CategoryNotes,
		CategoryImages, CategoryFeeds, CategoryAssets:
		return 11
	case CategoryRuntime:
		return 12
	case CategoryInternal:
		return 10
	default:
		return 1
	}
}

// FormatError formats an error for user-facing display. The full chain is
// always printed so per-item failures stay attributed to their paths.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	if classified, ok := AsClassified(err); ok {
		if a.verbose {
			return fmt.Sprintf("Error: %v", err)
		}
		if classified.cause != nil {
			return fmt.Sprintf("Error: %s: %v", classified.message, classified.cause)
		}
		return "Error: " + classified.Message()
	}
	return fmt.Sprintf("Error: %v", err)
}

// HandleError logs and prints the error, then exits with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	if a.shouldLog(err) {
		a.logError(err)
	}
	_, _ = fmt.Fprintln(a.out, a.FormatError(err))
	if hint := Hint(err); hint != "" {
		_, _ = fmt.Fprintln(a.out, hint)
	}
	a.exit(a.ExitCodeFor(err))
}

// Hint suggests the next step for errors whose retry strategy needs one.
func Hint(err error) string {
	classified, ok := AsClassified(err)
	if !ok {
		return ""
	}
	switch classified.retry {
	case RetryNextBuild:
		return "The build state was not advanced; the next build retries the changed notes."
	case RetryUserAction:
		return "Fix the reported input and run the command again."
	default:
		return ""
	}
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if classified, ok := AsClassified(err); ok {
		return classified.severity == SeverityFatal
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if classified, ok := AsClassified(err); ok {
		attrs := []slog.Attr{
			slog.String("category", string(classified.Category())),
		}
		for k, v := range classified.Context() {
			attrs = append(attrs, slog.Any(k, v))
		}
		if classified.retry != RetryNever {
			attrs = append(attrs, slog.String("retry", string(classified.retry)))
		}
		a.logger.LogAttrs(context.Background(), levelFor(classified.severity), classified.message, attrs...)
		return
	}
	a.logger.Error("Unclassified error", "error", err)
}

func levelFor(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
