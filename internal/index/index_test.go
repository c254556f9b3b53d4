package index

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/testutil"
)

func scan(t *testing.T, root string) []*notes.Note {
	t.Helper()
	list, err := notes.Scan(filepath.Join(root, "notes"), root, nil)
	require.NoError(t, err)
	return list
}

func TestWriteIndexArtifacts(t *testing.T) {
	root := t.TempDir()
	testutil.WriteNote(t, root, testutil.Note{Category: "pipe", Date: "2024-01-02", Slug: "old", Title: "Old Flake"})
	testutil.WriteNote(t, root, testutil.Note{Category: "cigars", Date: "2024-03-01", Slug: "new", Title: "New Robusto", Author: "ash",
		Body: testutil.DefaultBody + "\n![band](images/band.png)\n"})
	testutil.WriteNote(t, root, testutil.Note{Category: "cigars", Date: "2024-03-01", Slug: "alpha", Title: "alpha corona"})

	entries := Entries(scan(t, root), nil)
	opts := Options{NotesDir: filepath.Join(root, "notes"), DataDir: filepath.Join(root, "docs", "data"), LatestLimit: 2}
	written, err := Write(opts, entries)
	require.NoError(t, err)
	assert.Len(t, written, 4)

	fa := testutil.NewFileAssertions(t, root)
	var idx []Entry
	fa.ReadJSON("docs/data/index.json", &idx)
	require.Len(t, idx, 3)
	assert.Equal(t, []string{"New Robusto", "alpha corona", "Old Flake"}, []string{idx[0].Title, idx[1].Title, idx[2].Title})
	assert.Equal(t, "notes/cigars/2024-03-01-new.md", idx[0].Path)
	assert.Equal(t, []string{"images/band.png"}, idx[0].Images)
	assert.NotNil(t, idx[2].Images)

	var latest []Entry
	fa.ReadJSON("docs/data/latest.json", &latest)
	assert.Len(t, latest, 2)

	var notesIdx []Entry
	fa.ReadJSON("notes/index.json", &notesIdx)
	assert.Equal(t, idx, notesIdx)

	fa.AssertFileContains("notes/README.md", "## cigars").
		AssertFileContains("notes/README.md", "- [2024-03-01] [New Robusto](notes/cigars/2024-03-01-new.md) — @ash")
}

func TestRenderReadmeCategoryOrder(t *testing.T) {
	out := string(RenderReadme([]Entry{
		{Category: "snus", Date: "2024-01-01", Title: "S", Path: "notes/snus/a.md"},
		{Category: "cigars", Date: "2023-01-01", Title: "C", Path: "notes/cigars/b.md"},
	}))
	assert.Less(t, strings.Index(out, "## cigars"), strings.Index(out, "## snus"))
	assert.NotContains(t, out, "## pipe")
}

func TestWriteEmptyInventory(t *testing.T) {
	root := t.TempDir()
	opts := Options{NotesDir: filepath.Join(root, "notes"), DataDir: filepath.Join(root, "data")}
	_, err := Write(opts, nil)
	require.NoError(t, err)
	testutil.NewFileAssertions(t, root).AssertFileContains("data/latest.json", "[]")
}
