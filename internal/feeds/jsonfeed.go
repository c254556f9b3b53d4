package feeds

import (
	"time"

	"github.com/xianyu564/tobacco-notes/internal/storage"
)

type jsonAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type jsonExtension struct {
	Category string `json:"category"`
	Rating   string `json:"rating"`
	Product  string `json:"product,omitempty"`
	Vitola   string `json:"vitola,omitempty"`
	Origin   string `json:"origin,omitempty"`
	Price    string `json:"price,omitempty"`
	Pairing  string `json:"pairing,omitempty"`
}

type jsonItem struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	ExternalURL   string        `json:"external_url"`
	Title         string        `json:"title"`
	ContentHTML   string        `json:"content_html"`
	ContentText   string        `json:"content_text"`
	Summary       string        `json:"summary"`
	Image         string        `json:"image,omitempty"`
	DatePublished string        `json:"date_published"`
	DateModified  string        `json:"date_modified"`
	Authors       []jsonAuthor  `json:"authors"`
	Tags          []string      `json:"tags"`
	Language      string        `json:"language"`
	TobaccoNotes  jsonExtension `json:"_tobacco_notes"`
}

type jsonFeed struct {
	Version     string       `json:"version"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	HomePageURL string       `json:"home_page_url"`
	FeedURL     string       `json:"feed_url"`
	Authors     []jsonAuthor `json:"authors"`
	Language    string       `json:"language"`
	Icon        string       `json:"icon"`
	Favicon     string       `json:"favicon"`
	UserComment string       `json:"user_comment"`
	Expired     bool         `json:"expired"`
	Items       []jsonItem   `json:"items"`
}

// RenderJSON renders a JSON Feed 1.1 document. Items without tags carry an
// empty tags array.
func RenderJSON(meta Meta, items []Item) ([]byte, error) {
	site := meta.siteURL()
	feed := jsonFeed{
		Version:     "https://jsonfeed.org/version/1.1",
		Title:       meta.Title,
		Description: meta.Description,
		HomePageURL: site,
		FeedURL:     site + "/feed.json",
		Authors:     []jsonAuthor{{Name: "Contributors", URL: site + "/contributors.md"}},
		Language:    meta.Language,
		Icon:        site + "/assets/favicon-32x32.png",
		Favicon:     site + "/assets/favicon-32x32.png",
		UserComment: "This is a feed of tobacco tasting notes and reviews.",
		Items:       make([]jsonItem, 0, len(items)),
	}
	for _, it := range items {
		tags := it.Tags
		if tags == nil {
			tags = []string{}
		}
		stamp := it.Published.Format(time.RFC3339)
		feed.Items = append(feed.Items, jsonItem{
			ID:            it.ID,
			URL:           it.URL,
			ExternalURL:   it.URL,
			Title:         it.Title,
			ContentHTML:   it.ContentHTML,
			ContentText:   it.ContentText,
			Summary:       it.Summary,
			Image:         it.Image,
			DatePublished: stamp,
			DateModified:  stamp,
			Authors:       []jsonAuthor{{Name: it.Author}},
			Tags:          tags,
			Language:      meta.Language,
			TobaccoNotes: jsonExtension{
				Category: it.Category,
				Rating:   it.Rating,
				Product:  it.Product,
				Vitola:   it.Vitola,
				Origin:   it.Origin,
				Price:    it.Price,
				Pairing:  it.Pairing,
			},
		})
	}
	return storage.MarshalJSON(feed)
}
