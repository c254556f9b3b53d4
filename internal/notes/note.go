package notes

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xianyu564/tobacco-notes/internal/frontmatter"
)

var datePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})-`)

// titleKeys are tried in order when inferring a display title.
var titleKeys = []string{"title", "product", "brand", "blend", "tobacco", "liquid"}

var titleCaser = cases.Title(language.Und)

// Note is one tasting note on disk.
type Note struct {
	// Path is the absolute (or caller-relative) filesystem path.
	Path string
	// RelPath is Path relative to the repository root, slash separated.
	RelPath  string
	Category Category
	Stem     string
	FileDate string
	ModTime  time.Time
	Fields   frontmatter.Fields
	// RawFrontMatter is the undecoded YAML block.
	RawFrontMatter []byte
	Body           []byte
	// ParseErr is set when the front matter could not be decoded; Fields is then empty.
	ParseErr error
}

// DatePrefix returns the YYYY-MM-DD prefix of a note filename, or "".
func DatePrefix(name string) string {
	if m := datePrefix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return ""
}

// IsTemplate reports whether name is a scaffolding template rather than a note.
func IsTemplate(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), "TEMPLATE")
}

// Load reads and parses the note at path. root is used to compute RelPath.
// Front matter decode failures are recorded on the note, not returned.
func Load(path, root string) (*Note, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	n := &Note{
		Path:     path,
		RelPath:  relSlash(root, path),
		Category: Category(filepath.Base(filepath.Dir(path))),
		Stem:     strings.TrimSuffix(name, filepath.Ext(name)),
		FileDate: DatePrefix(name),
		ModTime:  info.ModTime(),
		Fields:   frontmatter.Fields{},
	}

	fm, body, had, err := frontmatter.Split(content)
	if err != nil {
		n.ParseErr = err
		n.Body = content
		return n, nil
	}
	n.Body = body
	if !had {
		return n, nil
	}
	n.RawFrontMatter = fm
	fields, err := frontmatter.ParseYAML(fm)
	if err != nil {
		n.ParseErr = err
		return n, nil
	}
	n.Fields = fields
	return n, nil
}

// Title infers a display title from front matter, falling back to the filename.
func (n *Note) Title() string {
	if t := n.Fields.FirstString(titleKeys...); t != "" {
		return t
	}
	return n.Stem
}

// FeedTitle is the product name with its vitola when both are known.
func (n *Note) FeedTitle() string {
	product := n.Fields.String("product")
	if product != "" {
		if vitola := n.Fields.String("vitola"); vitola != "" {
			return product + " (" + vitola + ")"
		}
		return product
	}
	if t := n.Fields.String("title"); t != "" {
		return t
	}
	return titleCaser.String(strings.ReplaceAll(strings.TrimPrefix(n.Stem, n.FileDate+"-"), "-", " "))
}

// Author returns the declared author or "".
func (n *Note) Author() string {
	return n.Fields.String("author")
}

// Date returns the note date: front matter first, then the filename prefix.
func (n *Note) Date() string {
	if d, err := n.Fields.Date("date"); err == nil {
		return d.Format(time.DateOnly)
	}
	return n.FileDate
}

// Time parses Date, returning the zero time when unknown.
func (n *Note) Time() time.Time {
	t, err := time.Parse(time.DateOnly, n.Date())
	if err != nil {
		return time.Time{}
	}
	return t
}

// Tags returns the note tags lowercased and trimmed. Never nil.
func (n *Note) Tags() []string {
	raw := n.Fields.Strings("tags")
	out := make([]string, 0, len(raw))
	for _, tag := range raw {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Rating returns the numeric rating, if any.
func (n *Note) Rating() (float64, bool) {
	return n.Fields.Float("rating")
}

func relSlash(root, path string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
