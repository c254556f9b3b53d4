package feeds

import (
	"bytes"
	"encoding/xml"
	"time"
)

type rssDoc struct {
	XMLName    xml.Name   `xml:"rss"`
	Version    string     `xml:"version,attr"`
	NSAtom     string     `xml:"xmlns:atom,attr"`
	NSContent  string     `xml:"xmlns:content,attr"`
	NSDC       string     `xml:"xmlns:dc,attr"`
	Channel    rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string    `xml:"title"`
	Link           string    `xml:"link"`
	Description    string    `xml:"description"`
	AtomLink       atomLink  `xml:"atom:link"`
	Language       string    `xml:"language"`
	LastBuildDate  string    `xml:"lastBuildDate"`
	Generator      string    `xml:"generator"`
	Image          rssImage  `xml:"image"`
	Copyright      string    `xml:"copyright"`
	ManagingEditor string    `xml:"managingEditor"`
	WebMaster      string    `xml:"webMaster"`
	TTL            int       `xml:"ttl"`
	Items          []rssItem `xml:"item"`
}

type rssImage struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type rssItem struct {
	Title       cdata         `xml:"title"`
	Link        string        `xml:"link"`
	GUID        rssGUID       `xml:"guid"`
	PubDate     string        `xml:"pubDate"`
	Description cdata         `xml:"description"`
	Content     cdata         `xml:"content:encoded"`
	Categories  []string      `xml:"category"`
	Creator     string        `xml:"dc:creator"`
	Enclosure   *rssEnclosure `xml:"enclosure,omitempty"`
}

// RenderRSS renders an RSS 2.0 document.
func RenderRSS(meta Meta, items []Item) ([]byte, error) {
	site := meta.siteURL()
	ch := rssChannel{
		Title:          meta.Title,
		Link:           site,
		Description:    meta.Description,
		AtomLink:       atomLink{Href: site + "/feed.xml", Rel: "self", Type: "application/rss+xml"},
		Language:       meta.Language,
		LastBuildDate:  meta.Updated.UTC().Format(time.RFC1123Z),
		Generator:      meta.Generator,
		Image:          rssImage{URL: site + "/assets/og-image.png", Title: meta.Title, Link: site},
		Copyright:      meta.Rights,
		ManagingEditor: "Contributors",
		WebMaster:      "Contributors",
		TTL:            60,
	}
	for _, it := range items {
		ri := rssItem{
			Title:       cdata{it.Title},
			Link:        it.URL,
			GUID:        rssGUID{IsPermaLink: "false", Value: it.ID},
			PubDate:     it.Published.Format(time.RFC1123Z),
			Description: cdata{it.decoratedSummary()},
			Content:     cdata{it.ContentHTML},
			Categories:  append([]string{it.Category}, it.Tags...),
			Creator:     it.Author,
		}
		if it.Image != "" {
			ri.Enclosure = &rssEnclosure{URL: it.Image, Type: "image/png", Length: "0"}
		}
		ch.Items = append(ch.Items, ri)
	}
	doc := rssDoc{
		Version:   "2.0",
		NSAtom:    "http://www.w3.org/2005/Atom",
		NSContent: "http://purl.org/rss/1.0/modules/content/",
		NSDC:      "http://purl.org/dc/elements/1.1/",
		Channel:   ch,
	}
	return marshalXML(doc)
}

func marshalXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
