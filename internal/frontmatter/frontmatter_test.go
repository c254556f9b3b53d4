package frontmatter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoFrontmatter_ReturnsBodyOnly(t *testing.T) {
	input := []byte("# Title\n\nHello\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, fm)
	require.Equal(t, input, body)
}

func TestSplit_YAMLFrontmatter_SplitsFrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Padron 1964\n---\n# Notes\n")

	fm, body, had, err := Split(input)
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: Padron 1964\n"), fm)
	require.Equal(t, []byte("# Notes\n"), body)
}

func TestSplit_MissingClosingDelimiter_ReturnsError(t *testing.T) {
	_, _, had, err := Split([]byte("---\nkey: value\n# Title\n"))
	require.ErrorIs(t, err, ErrMissingClosingDelimiter)
	require.False(t, had)
}

func TestSplit_CRLF_SplitsFrontmatterAndBody(t *testing.T) {
	fm, body, had, err := Split([]byte("---\r\nkey: value\r\n---\r\n# Title\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("key: value\r\n"), fm)
	require.Equal(t, []byte("# Title\r\n"), body)
}

func TestSplit_EmptyBlockAndEOFDelimiter(t *testing.T) {
	fm, body, had, err := Split([]byte("---\n---\n# Title\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, fm)
	require.Equal(t, []byte("# Title\n"), body)

	fm, body, had, err = Split([]byte("---\ntitle: x\n---"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, []byte("title: x\n"), fm)
	require.Empty(t, body)
}

func TestParse_TypedAccessors(t *testing.T) {
	input := []byte(`---
title: "  Dunhill Early Morning  "
category: pipe
date: 2024-03-05
rating: "8.5"
tags: [Sweet, " Latakia ", ""]
flavors: cocoa, leather
---
Body text.
`)
	fields, body, err := Parse(input)
	require.NoError(t, err)
	require.Equal(t, "Body text.\n", string(body))

	require.Equal(t, "Dunhill Early Morning", fields.String("title"))
	require.Equal(t, "2024-03-05", fields.String("date"))
	require.Equal(t, []string{"Sweet", "Latakia"}, fields.Strings("tags"))
	require.Equal(t, []string{"cocoa", "leather"}, fields.Strings("flavors"))
	require.Equal(t, []string{}, fields.Strings("missing"))

	rating, ok := fields.Float("rating")
	require.True(t, ok)
	require.InDelta(t, 8.5, rating, 1e-9)

	d, err := fields.Date("date")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d.UTC())

	require.Equal(t, "pipe", fields.FirstString("product", "category"))
}

func TestFields_DateErrors(t *testing.T) {
	_, err := Fields{}.Date("date")
	require.Error(t, err)
	_, err = Fields{"date": "05/03/2024"}.Date("date")
	require.Error(t, err)
}
