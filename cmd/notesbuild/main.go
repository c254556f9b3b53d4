// Command notesbuild builds the tobacco-notes static site.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/xianyu564/tobacco-notes/cmd/notesbuild/commands"
	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	parser := kong.Parse(&cli,
		kong.Name("notesbuild"),
		kong.Description("Incremental site builder for tobacco tasting notes."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	parser.BindTo(ctx, (*context.Context)(nil))
	err := parser.Run(&cli)
	stop()

	if err != nil {
		foundationerrors.NewCLIErrorAdapter(cli.Debug, slog.Default()).HandleError(err)
	}
}
