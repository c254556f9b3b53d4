// Package index writes the note listings: notes/index.json, notes/README.md,
// and the site copies under the data directory.
package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// DefaultLatest is the size of latest.json.
const DefaultLatest = 20

// Entry is one row of the notes index.
type Entry struct {
	Category string   `json:"category"`
	Date     string   `json:"date"`
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Images   []string `json:"images"`
}

// Entries converts notes to index entries, preserving order. Images come from
// the front matter images list followed by images referenced in the body.
func Entries(list []*notes.Note, r *markdown.Renderer) []Entry {
	if r == nil {
		r = markdown.NewRenderer()
	}
	out := make([]Entry, 0, len(list))
	for _, n := range list {
		imgs := append(n.Fields.Strings("images"), r.Images(n.Body)...)
		if imgs == nil {
			imgs = []string{}
		}
		out = append(out, Entry{
			Category: string(n.Category),
			Date:     n.Date(),
			Path:     n.RelPath,
			Title:    n.Title(),
			Author:   n.Author(),
			Images:   imgs,
		})
	}
	return out
}

// Options locates the index outputs.
type Options struct {
	NotesDir    string
	DataDir     string
	LatestLimit int
}

// Write emits every index artifact and returns the written paths.
// entries must already be ordered newest first.
func Write(opts Options, entries []Entry) ([]string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	limit := opts.LatestLimit
	if limit <= 0 {
		limit = DefaultLatest
	}
	latest := entries[:min(limit, len(entries))]

	readme := filepath.Join(opts.NotesDir, "README.md")
	if err := storage.WriteFileAtomic(readme, RenderReadme(entries), 0o644); err != nil {
		return nil, err
	}
	written := []string{readme}
	for path, v := range map[string]any{
		filepath.Join(opts.NotesDir, "index.json"): entries,
		filepath.Join(opts.DataDir, "index.json"):  entries,
		filepath.Join(opts.DataDir, "latest.json"): latest,
	} {
		if err := storage.WriteJSON(path, v); err != nil {
			return written, fmt.Errorf("write %s: %w", filepath.Base(path), err)
		}
		written = append(written, path)
	}
	return written, nil
}

// RenderReadme renders the human-readable index grouped by category in
// canonical category order, newest first within each group.
func RenderReadme(entries []Entry) []byte {
	var b strings.Builder
	b.WriteString("# Notes Index｜笔记索引\n\n")
	b.WriteString("> 自动生成：按日期倒序，按分类分组 | Auto-generated: newest first, grouped by category\n")

	byCat := map[string][]Entry{}
	for _, e := range entries {
		byCat[e.Category] = append(byCat[e.Category], e)
	}
	for _, cat := range notes.Categories {
		group := byCat[string(cat)]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", cat)
		for _, e := range group {
			fmt.Fprintf(&b, "- [%s] [%s](%s)", e.Date, e.Title, e.Path)
			if e.Author != "" {
				fmt.Fprintf(&b, " — @%s", e.Author)
			}
			b.WriteString("\n")
		}
	}
	return []byte(b.String())
}
