package feeds

import (
	"encoding/xml"
	"time"
)

type atomFeed struct {
	XMLName   xml.Name      `xml:"feed"`
	NS        string        `xml:"xmlns,attr"`
	NSMedia   string        `xml:"xmlns:media,attr"`
	Title     atomText      `xml:"title"`
	Subtitle  atomText      `xml:"subtitle"`
	Links     []atomLink    `xml:"link"`
	ID        string        `xml:"id"`
	Updated   string        `xml:"updated"`
	Generator atomGenerator `xml:"generator"`
	Logo      string        `xml:"logo"`
	Icon      string        `xml:"icon"`
	Rights    atomText      `xml:"rights"`
	Author    atomPerson    `xml:"author"`
	Entries   []atomEntry   `xml:"entry"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomCDATA struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",cdata"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomGenerator struct {
	URI   string `xml:"uri,attr"`
	Value string `xml:",chardata"`
}

type atomPerson struct {
	Name string `xml:"name"`
	URI  string `xml:"uri,omitempty"`
}

type atomCategory struct {
	Term  string `xml:"term,attr"`
	Label string `xml:"label,attr"`
}

type mediaThumbnail struct {
	URL string `xml:"url,attr"`
}

type atomEntry struct {
	Title      atomCDATA       `xml:"title"`
	Link       atomLink        `xml:"link"`
	ID         string          `xml:"id"`
	Updated    string          `xml:"updated"`
	Published  string          `xml:"published"`
	Author     atomPerson      `xml:"author"`
	Summary    atomCDATA       `xml:"summary"`
	Content    atomCDATA       `xml:"content"`
	Categories []atomCategory  `xml:"category"`
	Thumbnail  *mediaThumbnail `xml:"media:thumbnail,omitempty"`
}

// RenderAtom renders an Atom 1.0 document.
func RenderAtom(meta Meta, items []Item) ([]byte, error) {
	site := meta.siteURL()
	feed := atomFeed{
		NS:       "http://www.w3.org/2005/Atom",
		NSMedia:  "http://search.yahoo.com/mrss/",
		Title:    atomText{Type: "text", Value: meta.Title},
		Subtitle: atomText{Type: "text", Value: meta.Description},
		Links: []atomLink{
			{Href: site, Rel: "alternate", Type: "text/html"},
			{Href: site + "/feed.atom", Rel: "self", Type: "application/atom+xml"},
		},
		ID:        site + "/feed.atom",
		Updated:   meta.Updated.UTC().Format(time.RFC3339),
		Generator: atomGenerator{URI: site, Value: meta.Generator},
		Logo:      site + "/assets/og-image.png",
		Icon:      site + "/assets/favicon-32x32.png",
		Rights:    atomText{Type: "text", Value: meta.Rights},
		Author:    atomPerson{Name: "Contributors", URI: site + "/contributors.md"},
	}
	for _, it := range items {
		stamp := it.Published.Format(time.RFC3339)
		e := atomEntry{
			Title:     atomCDATA{Type: "text", Value: it.Title},
			Link:      atomLink{Href: it.URL, Rel: "alternate", Type: "text/html"},
			ID:        it.ID,
			Updated:   stamp,
			Published: stamp,
			Author:    atomPerson{Name: it.Author},
			Summary:   atomCDATA{Type: "text", Value: it.decoratedSummary()},
			Content:   atomCDATA{Type: "html", Value: it.ContentHTML},
		}
		e.Categories = append(e.Categories, atomCategory{Term: it.Category, Label: it.Category})
		for _, tag := range it.Tags {
			e.Categories = append(e.Categories, atomCategory{Term: tag, Label: tag})
		}
		if it.Image != "" {
			e.Thumbnail = &mediaThumbnail{URL: it.Image}
		}
		feed.Entries = append(feed.Entries, e)
	}
	return marshalXML(feed)
}
