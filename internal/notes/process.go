package notes

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/inful/mdfp"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/markdown"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// TaskName identifies the note handler in a dispatch.Registry.
const TaskName = "process_note"

// SummaryLength bounds excerpts in derived note data.
const SummaryLength = 200

// Derived is the per-note JSON written by the note processing stage.
type Derived struct {
	Path        string   `json:"path"`
	Category    string   `json:"category"`
	Date        string   `json:"date"`
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Tags        []string `json:"tags"`
	Rating      *float64 `json:"rating,omitempty"`
	Fingerprint string   `json:"fingerprint"`
	Excerpt     string   `json:"excerpt"`
	Images      []string `json:"images"`
	HTML        string   `json:"html,omitempty"`
}

// Processor validates one note and writes its derived data. Each note writes
// only its own output file, so concurrent calls need no locking.
type Processor struct {
	root       string
	outDir     string
	renderer   *markdown.Renderer
	renderHTML bool
	logger     *slog.Logger
}

// NewProcessor creates a Processor writing to outDir/<category>/<stem>.json.
func NewProcessor(root, outDir string, renderer *markdown.Renderer, renderHTML bool, logger *slog.Logger) *Processor {
	if renderer == nil {
		renderer = markdown.NewRenderer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{root: root, outDir: outDir, renderer: renderer, renderHTML: renderHTML, logger: logger}
}

// Task returns the processor as a named dispatch task.
func (p *Processor) Task() dispatch.Task {
	return dispatch.Task{Name: TaskName, Fn: p.Process}
}

// OutputPath returns the derived data path for a note path.
func (p *Processor) OutputPath(notePath string) string {
	cat := filepath.Base(filepath.Dir(notePath))
	stem := strings.TrimSuffix(filepath.Base(notePath), filepath.Ext(notePath))
	return filepath.Join(p.outDir, cat, stem+".json")
}

// Process is the per-item handler for the process_notes stage.
func (p *Processor) Process(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := Load(path, p.root)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryNotes, "read note").
			WithContext("path", path).Build()
	}
	if err := Validate(n).Err(); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryValidation, "invalid note").
			WithContext("path", n.RelPath).Build()
	}

	d, err := p.derive(n)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryNotes, "render note").
			WithContext("path", n.RelPath).Build()
	}
	out := p.OutputPath(path)
	if err := storage.WriteJSON(out, d); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "write note data").
			WithContext("path", out).Build()
	}
	p.logger.Debug("Processed note", logfields.Path(n.RelPath), slog.String("fingerprint", d.Fingerprint))
	return nil
}

func (p *Processor) derive(n *Note) (*Derived, error) {
	text, err := p.renderer.PlainText(n.Body)
	if err != nil {
		return nil, err
	}
	d := &Derived{
		Path:        n.RelPath,
		Category:    string(n.Category),
		Date:        n.Date(),
		Title:       n.Title(),
		Author:      n.Author(),
		Tags:        n.Tags(),
		Fingerprint: Fingerprint(n),
		Excerpt:     markdown.Excerpt(text, SummaryLength),
		Images:      p.renderer.Images(n.Body),
	}
	if d.Images == nil {
		d.Images = []string{}
	}
	if r, ok := n.Rating(); ok {
		d.Rating = &r
	}
	if p.renderHTML {
		if d.HTML, err = p.renderer.HTML(n.Body); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Fingerprint hashes the note's front matter (minus any stored fingerprint) and body.
func Fingerprint(n *Note) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(string(n.RawFrontMatter), "\r\n", "\n"), "\n") {
		if strings.HasPrefix(line, mdfp.FingerprintField+":") {
			continue
		}
		kept = append(kept, line)
	}
	fm := strings.TrimSuffix(strings.Join(kept, "\n"), "\n")
	return mdfp.CalculateFingerprintFromParts(fm, string(n.Body))
}
