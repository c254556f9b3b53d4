package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
)

// DefaultConfigFile is the file looked up when --config is not given.
const DefaultConfigFile = "notesbuild.yaml"

// Config is the notes builder configuration.
type Config struct {
	Paths   PathsConfig   `yaml:"paths"`
	Site    SiteConfig    `yaml:"site"`
	Build   BuildConfig   `yaml:"build"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
	Notify  NotifyConfig  `yaml:"notify"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig locates inputs, outputs and persisted state. Relative paths resolve against Root.
type PathsConfig struct {
	Root      string `yaml:"root"`
	Notes     string `yaml:"notes"`
	Images    string `yaml:"images"`
	Docs      string `yaml:"docs"`
	Data      string `yaml:"data"`
	Assets    string `yaml:"assets"`
	StateFile string `yaml:"state_file"`
}

// SiteConfig drives feed and index metadata.
type SiteConfig struct {
	URL         string `yaml:"url"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Language    string `yaml:"language"`
	Author      string `yaml:"author"`
	Maintainer  string `yaml:"maintainer"`
	Generator   string `yaml:"generator"`
	FeedLimit   int    `yaml:"feed_limit"`
	LatestLimit int    `yaml:"latest_limit"`
}

// BuildConfig tunes dispatch and the process-pool partition policy.
type BuildConfig struct {
	Workers               int      `yaml:"workers"`
	ChunkSize             int      `yaml:"chunk_size"`
	ProcessThresholdBytes int64    `yaml:"process_threshold_bytes"`
	ProcessExtensions     []string `yaml:"process_extensions"`
	InvertPartition       bool     `yaml:"invert_partition"`
	ImageExtensions       []string `yaml:"image_extensions"`
	NoteExtension         string   `yaml:"note_extension"`
	LockFile              string   `yaml:"lock_file"`
	RenderHTML            bool     `yaml:"render_html"`
}

// MetricsConfig controls the build monitor.
type MetricsConfig struct {
	Enabled            bool     `yaml:"enabled"`
	SampleInterval     Duration `yaml:"sample_interval"`
	ReportDir          string   `yaml:"report_dir"`
	PrometheusTextfile string   `yaml:"prometheus_textfile"`
}

// HistoryConfig controls the SQLite build history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Keep bounds the stored builds; older rows are pruned after each build.
	Keep int `yaml:"keep"`
}

// NotifyConfig controls build event publishing.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"nats_url"`
	Subject   string `yaml:"subject"`
	JetStream bool   `yaml:"jetstream"`
	// Retries after a failed publish; 0 uses the default, negative disables.
	Retries      int      `yaml:"retries"`
	RetryBackoff string   `yaml:"retry_backoff"` // fixed|linear|exponential
	RetryInitial Duration `yaml:"retry_initial"`
	RetryMax     Duration `yaml:"retry_max"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce            Duration `yaml:"debounce"`
	FullRebuildInterval Duration `yaml:"full_rebuild_interval"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Duration is a time.Duration that decodes from strings like "300ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" || raw == "0" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a configuration populated with defaults only.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file. A missing file yields defaults; a malformed one is an error.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := &Config{}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if uerr := yaml.Unmarshal([]byte(expanded), cfg); uerr != nil {
			return nil, foundationerrors.WrapError(uerr, foundationerrors.CategoryConfig, "failed to unmarshal config").
				WithContext("path", configPath).
				Fatal().
				Build()
		}
	case os.IsNotExist(err):
	default:
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	applyEnvOverrides(cfg)
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve joins p onto the configured root unless p is absolute.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Root, p)
}

// NotesDir returns the resolved notes root.
func (c *Config) NotesDir() string { return c.Resolve(c.Paths.Notes) }

// ImagesDir returns the resolved image root.
func (c *Config) ImagesDir() string { return c.Resolve(c.Paths.Images) }

// DocsDir returns the resolved published site directory.
func (c *Config) DocsDir() string { return c.Resolve(c.Paths.Docs) }

// DataDir returns the resolved derived-data directory.
func (c *Config) DataDir() string { return c.Resolve(c.Paths.Data) }

// AssetsDir returns the resolved generated-assets directory.
func (c *Config) AssetsDir() string { return c.Resolve(c.Paths.Assets) }

// StateFile returns the resolved last-build timestamp file.
func (c *Config) StateFile() string { return c.Resolve(c.Paths.StateFile) }

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return foundationerrors.NewError(foundationerrors.CategoryConfig, "configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			UserAction().
			Build()
	}

	example := Default()
	example.Paths.Root = ""
	example.History.Enabled = true
	example.Notify.URL = "${NATS_URL}"

	data, err := yaml.Marshal(example)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# notesbuild configuration\n# Environment variables (${VAR}) are expanded; .env files are loaded first.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
