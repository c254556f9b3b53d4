// Package commands implements the notesbuild subcommands.
package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/xianyu564/tobacco-notes/internal/config"
)

// Global is shared state handed to every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"notesbuild.yaml"`
	Debug     bool             `short:"v" name:"debug" help:"Enable debug logging"`
	LogFormat string           `name:"log-format" help:"Log output format (text or json); overrides logging.format"`
	Root      string           `help:"Repository root; overrides paths.root"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build    BuildCmd    `cmd:"" help:"Build the site (incremental unless --full)"`
	Validate ValidateCmd `cmd:"" help:"Validate every note's filename and front matter"`
	Watch    WatchCmd    `cmd:"" help:"Rebuild incrementally whenever notes or images change"`
	History  HistoryCmd  `cmd:"" help:"Show recent builds from the history database"`
	Init     InitCmd     `cmd:"" help:"Write an example configuration file"`
	Worker   WorkerCmd   `cmd:"" hidden:"" help:"Process one item in a child process"`
}

// AfterApply runs after flag parsing and installs the default logger.
// The level and format are refined once the configuration is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	level := config.NormalizeLogLevel(os.Getenv("NOTESBUILD_LOG_LEVEL"))
	g.Logger = c.installLogger(level, config.NormalizeLogFormat(c.LogFormat))
	return nil
}

func (c *CLI) installLogger(level config.LogLevel, format config.LogFormat) *slog.Logger {
	if c.Debug {
		level = config.LogLevelDebug
	}
	opts := &slog.HandlerOptions{Level: level.Slog()}
	var handler slog.Handler
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// loadConfig loads the configuration, applies --root and re-installs the
// logger with the configured level and format.
func loadConfig(g *Global, root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	if root.Root != "" {
		cfg.Paths.Root = root.Root
	}
	format := cfg.Logging.Format
	if root.LogFormat != "" {
		format = config.NormalizeLogFormat(root.LogFormat)
	}
	level := cfg.Logging.Level
	if env := os.Getenv("NOTESBUILD_LOG_LEVEL"); env != "" {
		level = config.NormalizeLogLevel(env)
	}
	g.Logger = root.installLogger(level, format)
	return cfg, nil
}
