// Package feeds renders the site feeds (RSS 2.0, Atom 1.0, JSON Feed 1.1)
// from the full note inventory.
package feeds

import (
	"strings"
	"time"

	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/notes"
)

const (
	// DefaultLimit caps the number of items per feed.
	DefaultLimit = 50

	summaryLength = 200
	defaultAuthor = "Anonymous"
)

// Item is one feed entry, shared by all three renderers.
type Item struct {
	ID          string
	URL         string
	Title       string
	ContentHTML string
	ContentText string
	Summary     string
	Published   time.Time
	Author      string
	Tags        []string
	Image       string

	Category string
	Rating   string
	Product  string
	Vitola   string
	Origin   string
	Price    string
	Pairing  string
}

// NoteURL is the hash-routed page URL of a note.
func NoteURL(siteURL string, category notes.Category, stem string) string {
	return strings.TrimRight(siteURL, "/") + "#" + string(category) + "/" + stem
}

// Items converts notes to feed items in input order. Notes must carry a
// filename date; the published time is that date at midnight UTC.
func Items(list []*notes.Note, siteURL string, r *markdown.Renderer) ([]Item, error) {
	if r == nil {
		r = markdown.NewRenderer()
	}
	site := strings.TrimRight(siteURL, "/")
	out := make([]Item, 0, len(list))
	for _, n := range list {
		published, err := time.Parse(time.DateOnly, n.FileDate)
		if err != nil {
			continue
		}
		html, err := r.HTML(n.Body)
		if err != nil {
			return nil, err
		}
		text, err := r.PlainText(n.Body)
		if err != nil {
			return nil, err
		}
		author := n.Author()
		if author == "" {
			author = defaultAuthor
		}
		title := n.FeedTitle()
		if title == "" {
			title = n.Stem
		}
		url := NoteURL(site, n.Category, n.Stem)
		out = append(out, Item{
			ID:          url,
			URL:         url,
			Title:       title,
			ContentHTML: html,
			ContentText: strings.TrimSpace(string(n.Body)),
			Summary:     markdown.Excerpt(text, summaryLength),
			Published:   published.UTC(),
			Author:      author,
			Tags:        n.Tags(),
			Image:       site + "/assets/og-image.png",
			Category:    string(n.Category),
			Rating:      n.Fields.String("rating"),
			Product:     n.Fields.String("product"),
			Vitola:      n.Fields.String("vitola"),
			Origin:      n.Fields.String("origin"),
			Price:       n.Fields.String("price"),
			Pairing:     n.Fields.String("pairing"),
		})
	}
	return out, nil
}

// decoratedSummary prefixes product and rating the way the site lists them.
func (it Item) decoratedSummary() string {
	s := it.Summary
	if it.Product != "" {
		s = "产品: " + it.Product + " | " + s
	}
	if it.Rating != "" {
		s = "评分: " + it.Rating + " | " + s
	}
	return s
}
