package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Note describes a fixture note. Zero fields are omitted from the front matter.
type Note struct {
	Category string
	Date     string
	Slug     string
	Title    string
	Author   string
	Tags     []string
	Extra    map[string]string
	Body     string
}

// DefaultBody is long enough to avoid the short-body warning.
const DefaultBody = "Pre-light draw shows hay and cedar. The first third settles into cocoa with a long, creamy finish.\n"

// WriteNote writes n under root/notes/<category>/<date>-<slug>.md and returns its path.
func WriteNote(t *testing.T, root string, n Note) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("---\n")
	if n.Title != "" {
		fmt.Fprintf(&b, "title: %q\n", n.Title)
	}
	fmt.Fprintf(&b, "category: %s\n", n.Category)
	fmt.Fprintf(&b, "date: %s\n", n.Date)
	if n.Author != "" {
		fmt.Fprintf(&b, "author: %s\n", n.Author)
	}
	if n.Tags != nil {
		fmt.Fprintf(&b, "tags: [%s]\n", strings.Join(n.Tags, ", "))
	}
	for k, v := range n.Extra {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	b.WriteString("---\n")
	body := n.Body
	if body == "" {
		body = DefaultBody
	}
	b.WriteString(body)

	path := filepath.Join(root, "notes", n.Category, n.Date+"-"+n.Slug+".md")
	WriteFile(t, path, b.String())
	return path
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WritePNG writes a w×h PNG to path.
func WritePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 0xff, G: 0x4d, B: 0x6d, A: 0xff})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// SetModTime sets both access and modification time of path.
func SetModTime(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}
