// Package search builds the client-side search index.
package search

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// FileName is the index file inside the data directory.
const FileName = "search-index.json"

const excerptLength = 200

// Entry is one searchable note.
type Entry struct {
	Title      string   `json:"title"`
	Author     string   `json:"author"`
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Date       string   `json:"date"`
	URL        string   `json:"url"`
	Excerpt    string   `json:"excerpt"`
	SearchText string   `json:"search_text"`
}

var lower = cases.Lower(language.Und)

// NewEntry derives the index entry of a note. ok is false for notes that
// have no front matter block or no filename date.
func NewEntry(n *notes.Note, r *markdown.Renderer) (Entry, bool, error) {
	if len(n.RawFrontMatter) == 0 || n.FileDate == "" {
		return Entry{}, false, nil
	}
	text, err := r.PlainText(n.Body)
	if err != nil {
		return Entry{}, false, err
	}
	title := n.Fields.String("title")
	if title == "" {
		title = n.Stem
	}
	author := n.Author()
	if author == "" {
		author = "Anonymous"
	}
	e := Entry{
		Title:    title,
		Author:   author,
		Category: string(n.Category),
		Tags:     n.Tags(),
		Date:     n.FileDate,
		URL:      "./notes/" + string(n.Category) + "/" + filepath.Base(n.Path),
		Excerpt:  markdown.Excerpt(text, excerptLength),
	}
	e.SearchText = lower.String(strings.Join([]string{
		e.Title, e.Author, e.Category, strings.Join(e.Tags, " "), e.Excerpt,
	}, " "))
	return e, true, nil
}

// Build derives entries for every note on the dispatcher's thread pool and
// returns them newest first. Per-note failures are reported in the outcome.
func Build(ctx context.Context, d *dispatch.Dispatcher, list []*notes.Note, r *markdown.Renderer) ([]Entry, dispatch.Outcome) {
	if r == nil {
		r = markdown.NewRenderer()
	}
	slots := make([]*Entry, len(list))
	byPath := make(map[string]int, len(list))
	paths := make([]string, len(list))
	for i, n := range list {
		byPath[n.Path] = i
		paths[i] = n.Path
	}
	out := d.ProcessFiles(ctx, paths, dispatch.Task{Name: "search_entry", Fn: func(_ context.Context, path string) error {
		i := byPath[path]
		e, ok, err := NewEntry(list[i], r)
		if err != nil {
			return err
		}
		if ok {
			slots[i] = &e
		}
		return nil
	}}, dispatch.PoolThread, dispatch.OptimalChunkSize(len(paths), runtime.NumCPU()))

	entries := make([]Entry, 0, len(list))
	for _, e := range slots {
		if e != nil {
			entries = append(entries, *e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })
	return entries, out
}

// Write stores the index as dataDir/search-index.json.
func Write(dataDir string, entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	path := filepath.Join(dataDir, FileName)
	return path, storage.WriteJSON(path, entries)
}
