package tags

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/testutil"
)

func TestAggregate(t *testing.T) {
	root := t.TempDir()
	testutil.WriteNote(t, root, testutil.Note{Category: "pipe", Date: "2024-01-02", Slug: "flake", Title: "Flake",
		Tags: []string{"Sweet", "smooth"}, Extra: map[string]string{"rating": "8"}})
	testutil.WriteNote(t, root, testutil.Note{Category: "cigars", Date: "2024-02-01", Slug: "robusto", Title: "Robusto",
		Tags: []string{"sweet", " Full "}})
	testutil.WriteNote(t, root, testutil.Note{Category: "snus", Date: "2024-02-03", Slug: "plain", Title: "Plain"})

	list, err := notes.Scan(filepath.Join(root, "notes"), root, nil)
	require.NoError(t, err)
	d := Aggregate(list)

	assert.Equal(t, Summary{TotalTags: 3, TotalNotesWithTags: 2, CategoriesWithTags: 2}, d.Summary)
	assert.Equal(t, map[string]int{"sweet": 2, "full": 1, "smooth": 1}, d.AllTags)
	require.NotEmpty(t, d.PopularTags)
	assert.Equal(t, Count{Tag: "sweet", Count: 2}, d.PopularTags[0])
	require.Len(t, d.TagToNotes["sweet"], 2)
	assert.Equal(t, "cigars", d.TagToNotes["sweet"][0].Category, "canonical category order")
	assert.Equal(t, map[string]int{"sweet": 1, "full": 1}, d.CategoryTags["cigars"])

	ids := map[string][]string{}
	for _, c := range d.FeaturedCollections {
		ids[c.ID] = c.Tags
	}
	assert.Equal(t, []string{"sweet"}, ids["flavors"])
	assert.Equal(t, []string{"full"}, ids["intensity"])
	assert.Equal(t, []string{"smooth"}, ids["quality"])
	assert.Equal(t, "sweet", ids["popular"][0])

	var pipeRef NoteRef
	for _, r := range d.NotesWithTags {
		if r.Category == "pipe" {
			pipeRef = r
		}
	}
	assert.InDelta(t, 8.0, pipeRef.Rating, 1e-9)
}

func TestAggregateEmptyAndWrite(t *testing.T) {
	d := Aggregate(nil)
	assert.Zero(t, d.Summary.TotalTags)
	assert.Empty(t, d.FeaturedCollections)

	dir := t.TempDir()
	written, err := Write(dir, d)
	require.NoError(t, err)
	assert.Len(t, written, 2)

	var simple Simple
	testutil.NewFileAssertions(t, dir).ReadJSON("tags-simple.json", &simple)
	assert.NotNil(t, simple.PopularTags)
	assert.NotNil(t, simple.FeaturedCollections)
}
