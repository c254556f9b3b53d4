package config

import (
	"runtime"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// PathsDefaultApplier fills the repository layout.
type PathsDefaultApplier struct{}

func (PathsDefaultApplier) Domain() string { return "paths" }

func (PathsDefaultApplier) ApplyDefaults(cfg *Config) error {
	p := &cfg.Paths
	if p.Root == "" {
		p.Root = "."
	}
	if p.Notes == "" {
		p.Notes = "notes"
	}
	// images live next to notes (notes/<category>/images/) unless relocated
	if p.Images == "" {
		p.Images = p.Notes
	}
	if p.Docs == "" {
		p.Docs = "docs"
	}
	if p.Data == "" {
		p.Data = p.Docs + "/data"
	}
	if p.Assets == "" {
		p.Assets = p.Docs + "/assets"
	}
	if p.StateFile == "" {
		p.StateFile = p.Docs + "/.lastbuild"
	}
	return nil
}

// SiteDefaultApplier fills feed metadata.
type SiteDefaultApplier struct{}

func (SiteDefaultApplier) Domain() string { return "site" }

func (SiteDefaultApplier) ApplyDefaults(cfg *Config) error {
	s := &cfg.Site
	if s.URL == "" {
		s.URL = "https://xianyu564.github.io/tobacco-notes"
	}
	if s.Title == "" {
		s.Title = "Tobacco Notes｜烟草笔记"
	}
	if s.Description == "" {
		s.Description = "Crowd-sourced tobacco tasting notes"
	}
	if s.Language == "" {
		s.Language = "zh-CN"
	}
	if s.Author == "" {
		s.Author = "Tobacco Notes Community"
	}
	if s.Maintainer == "" {
		s.Maintainer = "xianyu564"
	}
	if s.Generator == "" {
		s.Generator = "notesbuild"
	}
	if s.FeedLimit <= 0 {
		s.FeedLimit = 50
	}
	if s.LatestLimit <= 0 {
		s.LatestLimit = 20
	}
	return nil
}

// BuildDefaultApplier fills dispatcher tuning.
type BuildDefaultApplier struct{}

func (BuildDefaultApplier) Domain() string { return "build" }

func (BuildDefaultApplier) ApplyDefaults(cfg *Config) error {
	b := &cfg.Build
	if b.Workers <= 0 {
		b.Workers = min(32, runtime.NumCPU()+4)
	}
	if b.ChunkSize < 0 {
		b.ChunkSize = 0
	}
	if b.ProcessThresholdBytes <= 0 {
		b.ProcessThresholdBytes = 1 << 20
	}
	if len(b.ProcessExtensions) == 0 {
		b.ProcessExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if len(b.ImageExtensions) == 0 {
		b.ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if b.NoteExtension == "" {
		b.NoteExtension = ".md"
	}
	if b.LockFile == "" {
		b.LockFile = cfg.Paths.Docs + "/.notesbuild.lock"
	}
	return nil
}

// MetricsDefaultApplier fills monitor settings.
type MetricsDefaultApplier struct{}

func (MetricsDefaultApplier) Domain() string { return "metrics" }

func (MetricsDefaultApplier) ApplyDefaults(cfg *Config) error {
	m := &cfg.Metrics
	if m.SampleInterval <= 0 {
		m.SampleInterval = Duration(time.Second)
	}
	if m.ReportDir == "" {
		m.ReportDir = cfg.Paths.Docs + "/metrics"
	}
	return nil
}

// SinksDefaultApplier fills history, notify, watch and logging settings.
type SinksDefaultApplier struct{}

func (SinksDefaultApplier) Domain() string { return "sinks" }

func (SinksDefaultApplier) ApplyDefaults(cfg *Config) error {
	if cfg.History.Path == "" {
		cfg.History.Path = ".notesbuild/history.db"
	}
	if cfg.History.Keep <= 0 {
		cfg.History.Keep = 500
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "tobacco-notes.build.completed"
	}
	if cfg.Notify.URL == "" {
		cfg.Notify.URL = "nats://127.0.0.1:4222"
	}
	if cfg.Notify.Retries == 0 {
		cfg.Notify.Retries = 2
	}
	if cfg.Notify.RetryBackoff == "" {
		cfg.Notify.RetryBackoff = "linear"
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = Duration(300 * time.Millisecond)
	}
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// defaultAppliers runs in order; build and metrics defaults depend on paths.
var defaultAppliers = []DefaultApplier{
	PathsDefaultApplier{},
	SiteDefaultApplier{},
	BuildDefaultApplier{},
	MetricsDefaultApplier{},
	SinksDefaultApplier{},
}

func applyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
