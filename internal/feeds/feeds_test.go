package feeds

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/testutil"
)

const site = "https://example.test/tobacco-notes/"

func fixture(t *testing.T) (string, []Item) {
	t.Helper()
	root := t.TempDir()
	testutil.WriteNote(t, root, testutil.Note{Category: "cigars", Date: "2024-05-01", Slug: "padron-1964",
		Author: "ash", Tags: []string{"Cocoa", "earthy"},
		Extra: map[string]string{"product": "Padron 1964", "vitola": "Torpedo", "rating": "92/100"}})
	testutil.WriteNote(t, root, testutil.Note{Category: "pipe", Date: "2024-04-01", Slug: "gl-pease-haddo", Title: "Haddo's Delight"})
	list, err := notes.Scan(filepath.Join(root, "notes"), root, nil)
	require.NoError(t, err)
	items, err := Items(list, site, nil)
	require.NoError(t, err)
	return root, items
}

func TestItems(t *testing.T) {
	_, items := fixture(t)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "https://example.test/tobacco-notes#cigars/2024-05-01-padron-1964", first.URL)
	assert.Equal(t, first.URL, first.ID)
	assert.Equal(t, "Padron 1964 (Torpedo)", first.Title)
	assert.Equal(t, "ash", first.Author)
	assert.Equal(t, []string{"cocoa", "earthy"}, first.Tags)
	assert.Equal(t, "92/100", first.Rating)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), first.Published)
	assert.Contains(t, first.ContentHTML, "<p>")
	assert.LessOrEqual(t, len([]rune(first.Summary)), summaryLength+3)

	second := items[1]
	assert.Equal(t, "Haddo's Delight", second.Title)
	assert.Equal(t, "Anonymous", second.Author)
	assert.Equal(t, []string{}, second.Tags)
}

func TestWriteAllFeeds(t *testing.T) {
	_, items := fixture(t)
	docs := t.TempDir()
	meta := Meta{SiteURL: site, Title: "Tobacco Notes", Description: "notes", Language: "zh-CN",
		Generator: "notesbuild", Limit: 1, Updated: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}

	out := Write(context.Background(), dispatch.New(dispatch.WithWorkers(3)), docs, meta, items, nil)
	require.True(t, out.OK(), "%v", out.Err())
	assert.Equal(t, 3, out.Processed)

	rssData, err := os.ReadFile(filepath.Join(docs, RSSFile))
	require.NoError(t, err)
	var rss struct {
		Items []struct {
			Link       string   `xml:"link"`
			Categories []string `xml:"category"`
			PubDate    string   `xml:"pubDate"`
		} `xml:"channel>item"`
	}
	require.NoError(t, xml.Unmarshal(rssData, &rss))
	require.Len(t, rss.Items, 1, "limit applies")
	assert.Equal(t, items[0].URL, rss.Items[0].Link)
	assert.Equal(t, []string{"cigars", "cocoa", "earthy"}, rss.Items[0].Categories)
	assert.Equal(t, "Wed, 01 May 2024 00:00:00 +0000", rss.Items[0].PubDate)
	assert.Contains(t, string(rssData), `xmlns:content="http://purl.org/rss/1.0/modules/content/"`)

	atomData, err := os.ReadFile(filepath.Join(docs, AtomFile))
	require.NoError(t, err)
	var atom struct {
		Entries []struct {
			ID        string `xml:"id"`
			Published string `xml:"published"`
		} `xml:"entry"`
	}
	require.NoError(t, xml.Unmarshal(atomData, &atom))
	require.Len(t, atom.Entries, 1)
	assert.Equal(t, "2024-05-01T00:00:00Z", atom.Entries[0].Published)

	var jf map[string]any
	testutil.NewFileAssertions(t, docs).ReadJSON(JSONFile, &jf)
	assert.Equal(t, "https://jsonfeed.org/version/1.1", jf["version"])
	assert.Equal(t, "https://example.test/tobacco-notes/feed.json", jf["feed_url"])
	jitems := jf["items"].([]any)
	require.Len(t, jitems, 1)
	ext := jitems[0].(map[string]any)["_tobacco_notes"].(map[string]any)
	assert.Equal(t, "cigars", ext["category"])
	assert.Equal(t, "Torpedo", ext["vitola"])
}

func TestJSONFeedItemWithoutTagsHasEmptyList(t *testing.T) {
	data, err := RenderJSON(Meta{SiteURL: site}, []Item{{ID: "x", URL: "x", Title: "No tags"}})
	require.NoError(t, err)
	var jf struct {
		Items []struct {
			Tags json.RawMessage `json:"tags"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(data, &jf))
	require.Len(t, jf.Items, 1)
	assert.JSONEq(t, `[]`, string(jf.Items[0].Tags))
}

func TestWriteEmptyItems(t *testing.T) {
	docs := t.TempDir()
	out := Write(context.Background(), dispatch.New(), docs, Meta{SiteURL: site}, nil, nil)
	require.True(t, out.OK())
	testutil.NewFileAssertions(t, docs).AssertFileContains(JSONFile, `"items": []`)
}
