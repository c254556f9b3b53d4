package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/retry"
)

func TestNATSPublisherEncodesEvent(t *testing.T) {
	var gotSubject string
	var got BuildEvent
	p := &NATSPublisher{subject: "tobacco-notes.build.completed", send: func(ctx context.Context, subj string, data []byte) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		gotSubject = subj
		return json.Unmarshal(data, &got)
	}, logger: slog.Default()}

	ev := BuildEvent{BuildID: "b-1", Outcome: "success", NotesChanged: 3,
		StartedAt: time.Unix(100, 0).UTC(), FinishedAt: time.Unix(101, 0).UTC(),
		Stages: []StageEvent{{Name: "process_notes", Result: "success", DurationMS: 12.5}}}
	require.NoError(t, p.Publish(context.Background(), ev))
	assert.Equal(t, "tobacco-notes.build.completed", gotSubject)
	assert.Equal(t, ev, got)
	require.NoError(t, p.Close())
}

func TestNATSPublisherClassifiesFailures(t *testing.T) {
	p := &NATSPublisher{subject: "s", logger: slog.Default(), send: func(context.Context, string, []byte) error {
		return errors.New("no responders")
	}}
	err := p.Publish(context.Background(), BuildEvent{BuildID: "x"})
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotify))
}

func TestNATSPublisherRetriesTransientFailures(t *testing.T) {
	calls := 0
	p := (&NATSPublisher{subject: "s", logger: slog.Default(), send: func(context.Context, string, []byte) error {
		calls++
		if calls == 1 {
			return errors.New("nats: timeout")
		}
		return nil
	}}).WithRetry(retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 2))

	require.NoError(t, p.Publish(context.Background(), BuildEvent{BuildID: "x"}))
	assert.Equal(t, 2, calls)
}

func TestNATSPublisherGivesUpAfterRetries(t *testing.T) {
	calls := 0
	p := (&NATSPublisher{subject: "s", logger: slog.Default(), send: func(context.Context, string, []byte) error {
		calls++
		return errors.New("no responders")
	}}).WithRetry(retry.NewPolicy("fixed", time.Millisecond, time.Millisecond, 2))

	err := p.Publish(context.Background(), BuildEvent{BuildID: "x"})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotify))
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	_, err := NewNATSPublisher("nats://127.0.0.1:1", "s", false, nil)
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryNotify))
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	require.NoError(t, p.Publish(context.Background(), BuildEvent{}))
	require.NoError(t, p.Close())
}
