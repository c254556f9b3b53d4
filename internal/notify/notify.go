// Package notify publishes build events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/retry"
)

// StageEvent summarises one stage inside a BuildEvent.
type StageEvent struct {
	Name       string  `json:"name"`
	Result     string  `json:"result"`
	DurationMS float64 `json:"duration_ms"`
}

// BuildEvent is published once per build, successful or not.
type BuildEvent struct {
	BuildID       string       `json:"build_id"`
	Outcome       string       `json:"outcome"`
	Incremental   bool         `json:"incremental"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	DurationMS    float64      `json:"duration_ms"`
	NotesChanged  int          `json:"notes_changed"`
	ImagesChanged int          `json:"images_changed"`
	Stages        []StageEvent `json:"stages"`
	Error         string       `json:"error,omitempty"`
	ReportPath    string       `json:"report_path,omitempty"`
}

// Publisher delivers build events.
type Publisher interface {
	Publish(ctx context.Context, ev BuildEvent) error
	Close() error
}

// NoopPublisher drops events (default when notifications are disabled).
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, BuildEvent) error { return nil }
func (NoopPublisher) Close() error                              { return nil }

type sendFunc func(ctx context.Context, subject string, data []byte) error

// NATSPublisher publishes JSON-encoded events on a subject, through
// JetStream when configured so the event is persisted.
type NATSPublisher struct {
	conn    *nats.Conn
	send    sendFunc
	subject string
	retry   retry.Policy
	logger  *slog.Logger
}

// NewNATSPublisher connects to url.
func NewNATSPublisher(url, subject string, useJetStream bool, logger *slog.Logger) (*NATSPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("notesbuild"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryNotify, "failed to connect to NATS").
			Warning().Retryable().WithContext("url", url).Build()
	}

	p := &NATSPublisher{conn: conn, subject: subject, logger: logger}
	if useJetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryNotify, "failed to create JetStream context").Build()
		}
		p.send = func(ctx context.Context, subj string, data []byte) error {
			_, err := js.Publish(ctx, subj, data)
			return err
		}
	} else {
		p.send = func(ctx context.Context, subj string, data []byte) error {
			if err := conn.Publish(subj, data); err != nil {
				return err
			}
			return conn.FlushWithContext(ctx)
		}
	}
	logger.Info("NATS publisher initialized", slog.String("url", url), slog.String("subject", subject),
		slog.Bool("jetstream", useJetStream))
	return p, nil
}

// WithRetry retries failed publishes according to policy.
func (p *NATSPublisher) WithRetry(policy retry.Policy) *NATSPublisher {
	p.retry = policy
	return p
}

// Publish implements Publisher. A deadline of 5s applies to each attempt when
// ctx has none.
func (p *NATSPublisher) Publish(ctx context.Context, ev BuildEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, hasDeadline := ctx.Deadline()
	attempt := 0
	err = p.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
		}
		err := p.send(ctx, p.subject, data)
		if err != nil && attempt <= p.retry.MaxRetries {
			p.logger.Debug("Publish failed; retrying", slog.Int("attempt", attempt), slog.String("error", err.Error()))
		}
		return err
	})
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryNotify, "failed to publish build event").
			Warning().WithContext("subject", p.subject).WithContext("build_id", ev.BuildID).
			WithContext("attempts", attempt).Build()
	}
	p.logger.Debug("Published build event", slog.String("subject", p.subject), slog.String("build_id", ev.BuildID))
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
