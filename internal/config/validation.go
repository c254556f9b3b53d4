package config

import (
	"net/url"
	"strings"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
)

// Validate checks cross-field constraints after defaults are applied.
func (c *Config) Validate() error {
	if c.Build.Workers > 256 {
		return invalid("build.workers must be at most 256", "workers", c.Build.Workers)
	}
	if !strings.HasPrefix(c.Build.NoteExtension, ".") {
		return invalid("build.note_extension must start with a dot", "note_extension", c.Build.NoteExtension)
	}
	for _, ext := range append(append([]string{}, c.Build.ImageExtensions...), c.Build.ProcessExtensions...) {
		if !strings.HasPrefix(ext, ".") {
			return invalid("extensions must start with a dot", "extension", ext)
		}
	}
	u, err := url.Parse(c.Site.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("site.url must be an absolute URL", "url", c.Site.URL)
	}
	if c.Notify.Enabled && c.Notify.Subject == "" {
		return invalid("notify.subject is required when notify is enabled", "subject", "")
	}
	switch c.Notify.RetryBackoff {
	case "fixed", "linear", "exponential":
	default:
		return invalid("notify.retry_backoff must be fixed, linear or exponential", "retry_backoff", c.Notify.RetryBackoff)
	}
	return nil
}

func invalid(msg, key string, value any) error {
	return foundationerrors.ConfigError(msg).WithContext(key, value).Build()
}
