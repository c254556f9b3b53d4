// Package tags aggregates note tags into tags.json and tags-simple.json.
package tags

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

const popularLimit = 50

// NoteRef is a note as it appears in tag listings.
type NoteRef struct {
	Category string   `json:"category"`
	Date     string   `json:"date"`
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Rating   any      `json:"rating"`
	Tags     []string `json:"tags"`
}

// Count pairs a tag with its usage.
type Count struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Collection is a curated group of tags.
type Collection struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	TitleEN       string   `json:"title_en"`
	Description   string   `json:"description"`
	DescriptionEN string   `json:"description_en"`
	Tags          []string `json:"tags"`
	Type          string   `json:"type"`
}

// Summary holds headline counts.
type Summary struct {
	TotalTags          int `json:"total_tags"`
	TotalNotesWithTags int `json:"total_notes_with_tags"`
	CategoriesWithTags int `json:"categories_with_tags"`
}

// Data is the full tags.json document.
type Data struct {
	Summary             Summary                   `json:"summary"`
	AllTags             map[string]int            `json:"all_tags"`
	PopularTags         []Count                   `json:"popular_tags"`
	TagToNotes          map[string][]NoteRef      `json:"tag_to_notes"`
	CategoryTags        map[string]map[string]int `json:"category_tags"`
	FeaturedCollections []Collection              `json:"featured_collections"`
	NotesWithTags       []NoteRef                 `json:"notes_with_tags"`
}

// Simple is the reduced tags-simple.json document.
type Simple struct {
	Summary             Summary      `json:"summary"`
	PopularTags         []Count      `json:"popular_tags"`
	FeaturedCollections []Collection `json:"featured_collections"`
}

// Aggregate builds tag data from notes in canonical category order, then
// filename order within a category.
func Aggregate(list []*notes.Note) *Data {
	ordered := append([]*notes.Note(nil), list...)
	catRank := map[notes.Category]int{}
	for i, c := range notes.Categories {
		catRank[c] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Category != ordered[j].Category {
			return catRank[ordered[i].Category] < catRank[ordered[j].Category]
		}
		return ordered[i].Stem < ordered[j].Stem
	})

	d := &Data{
		AllTags:             map[string]int{},
		PopularTags:         []Count{},
		TagToNotes:          map[string][]NoteRef{},
		CategoryTags:        map[string]map[string]int{},
		FeaturedCollections: []Collection{},
		NotesWithTags:       []NoteRef{},
	}
	var firstSeen []string
	for _, n := range ordered {
		tagList := n.Tags()
		if len(tagList) == 0 {
			continue
		}
		ref := NoteRef{
			Category: string(n.Category),
			Date:     n.FileDate,
			Path:     n.RelPath,
			Title:    n.Title(),
			Author:   n.Author(),
			Rating:   rating(n),
			Tags:     tagList,
		}
		d.NotesWithTags = append(d.NotesWithTags, ref)
		cat := string(n.Category)
		for _, tag := range tagList {
			if _, seen := d.AllTags[tag]; !seen {
				firstSeen = append(firstSeen, tag)
			}
			d.AllTags[tag]++
			d.TagToNotes[tag] = append(d.TagToNotes[tag], ref)
			if d.CategoryTags[cat] == nil {
				d.CategoryTags[cat] = map[string]int{}
			}
			d.CategoryTags[cat][tag]++
		}
	}

	ranked := rank(d.AllTags, firstSeen)
	for _, tag := range ranked[:min(popularLimit, len(ranked))] {
		d.PopularTags = append(d.PopularTags, Count{Tag: tag, Count: d.AllTags[tag]})
	}
	d.FeaturedCollections = featured(ranked, firstSeen)
	d.Summary = Summary{
		TotalTags:          len(d.AllTags),
		TotalNotesWithTags: len(d.NotesWithTags),
		CategoriesWithTags: len(d.CategoryTags),
	}
	return d
}

func rating(n *notes.Note) any {
	if r, ok := n.Rating(); ok {
		return r
	}
	return ""
}

// rank orders tags by count descending, ties by first appearance.
func rank(counts map[string]int, firstSeen []string) []string {
	out := append([]string(nil), firstSeen...)
	sort.SliceStable(out, func(i, j int) bool { return counts[out[i]] > counts[out[j]] })
	return out
}

type theme struct {
	id, typ, title, titleEN, desc, descEN string
	keywords                         []string
	limit                            int
}

var themes = []theme{
	{"flavors", "flavor", "风味标签", "Flavor Tags", "描述口感和风味的标签", "Tags describing taste and flavor profiles",
		[]string{"sweet", "甜", "spicy", "辣", "woody", "木", "fruity", "果", "floral", "花", "nutty", "坚果",
			"smoky", "烟", "earthy", "土", "pepper", "胡椒", "cocoa", "可可", "caramel", "焦糖"}, 15},
	{"intensity", "intensity", "强度标签", "Intensity Tags", "描述强度和浓度的标签", "Tags describing strength and intensity",
		[]string{"mild", "温和", "medium", "中等", "full", "浓郁", "strong", "强", "light", "轻", "heavy", "重"}, 10},
	{"quality", "quality", "体验标签", "Experience Tags", "描述品质和体验的标签", "Tags describing quality and experience",
		[]string{"smooth", "顺滑", "clean", "清", "rough", "粗", "complex", "复杂", "balanced", "平衡",
			"rich", "丰富", "cooling", "清凉"}, 12},
}

func featured(ranked, firstSeen []string) []Collection {
	out := []Collection{}
	if len(ranked) == 0 {
		return out
	}
	out = append(out, Collection{
		ID: "popular", Title: "热门标签", TitleEN: "Popular Tags",
		Description: "使用频率最高的标签", DescriptionEN: "Most frequently used tags",
		Tags: append([]string(nil), ranked[:min(10, len(ranked))]...), Type: "popular",
	})
	for _, th := range themes {
		var matched []string
		for _, tag := range firstSeen {
			if containsAny(tag, th.keywords) {
				matched = append(matched, tag)
			}
		}
		if len(matched) == 0 {
			continue
		}
		out = append(out, Collection{
			ID: th.id, Title: th.title, TitleEN: th.titleEN,
			Description: th.desc, DescriptionEN: th.descEN,
			Tags: matched[:min(th.limit, len(matched))], Type: th.typ,
		})
	}
	return out
}

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Write emits tags.json and tags-simple.json into dataDir.
func Write(dataDir string, d *Data) ([]string, error) {
	full := filepath.Join(dataDir, "tags.json")
	simple := filepath.Join(dataDir, "tags-simple.json")
	if err := storage.WriteJSON(full, d); err != nil {
		return nil, err
	}
	if err := storage.WriteJSON(simple, Simple{
		Summary:             d.Summary,
		PopularTags:         d.PopularTags,
		FeaturedCollections: d.FeaturedCollections,
	}); err != nil {
		return []string{full}, err
	}
	return []string{full, simple}, nil
}
