package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("builder", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			Fatal().
			WithContext("file", "notesbuild.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())
		assert.Equal(t, "notesbuild.yaml", err.Context()["file"])
		assert.Equal(t, "[config:fatal] invalid configuration", err.Error())
	})

	t.Run("constructors", func(t *testing.T) {
		cfg := ConfigError("bad").Build()
		assert.Equal(t, SeverityFatal, cfg.Severity())
		assert.Equal(t, RetryUserAction, cfg.RetryStrategy())

		img := ImagesError("unsupported").Build()
		assert.Equal(t, RetryNextBuild, img.RetryStrategy())
		assert.Equal(t, SeverityError, img.Severity())
	})
}

func TestWrapErrorKeepsChain(t *testing.T) {
	original := errors.New("disk full")
	err := WrapError(original, CategoryFileSystem, "write index").
		WithContext("path", "docs/data/index.json").
		Build()

	require.ErrorIs(t, err, original)
	assert.Contains(t, err.Error(), "write index")
	assert.Contains(t, err.Error(), "disk full")
}

func TestAsClassifiedFindsWrappedError(t *testing.T) {
	inner := NewError(CategoryFeeds, "render rss").Build()
	outer := fmt.Errorf("stage build_feeds: %w", inner)

	got, ok := AsClassified(outer)
	require.True(t, ok)
	assert.Equal(t, CategoryFeeds, got.Category())
	assert.True(t, HasCategory(outer, CategoryFeeds))
	assert.False(t, HasCategory(errors.New("plain"), CategoryFeeds))
	assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
}

func TestWithContextDoesNotMutateOriginal(t *testing.T) {
	base := NewError(CategoryNotes, "bad note").Build()
	derived := base.WithContext("path", "notes/pipe/x.md")

	assert.NotContains(t, base.Context(), "path")
	assert.Equal(t, "notes/pipe/x.md", derived.Context()["path"])
}

func TestBuilderBuildsIndependentErrors(t *testing.T) {
	b := NewError(CategoryNotes, "bad note")
	first := b.Build()
	second := b.Fatal().Build()
	assert.Equal(t, SeverityError, first.Severity())
	assert.Equal(t, SeverityFatal, second.Severity())
}

func TestIsComparesCategoryAndMessage(t *testing.T) {
	a := NewError(CategoryBuild, "lock held").Build()
	b := NewError(CategoryBuild, "lock held").WithContext("x", 1).Build()
	c := NewError(CategoryStage, "lock held").Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}
