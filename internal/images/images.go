// Package images copies note images into the site and records their metadata.
package images

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // content addressing, not security
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	foundationerrors "github.com/xianyu564/tobacco-notes/internal/foundation/errors"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// TaskName identifies the image handler in a dispatch.Registry.
const TaskName = "process_image"

// Metadata is the sidecar written next to every published image.
type Metadata struct {
	Source   string `json:"source"`
	Output   string `json:"output"`
	Category string `json:"category,omitempty"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int64  `json:"bytes"`
	SHA1     string `json:"sha1"`
}

// Handler publishes images from ImagesDir into OutDir, preserving the
// category directory and dropping any "images" path segment.
type Handler struct {
	imagesDir string
	outDir    string
	exts      map[string]struct{}
	logger    *slog.Logger
}

// NewHandler creates an image handler accepting the given extensions.
func NewHandler(imagesDir, outDir string, exts []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &Handler{imagesDir: imagesDir, outDir: outDir, exts: set, logger: logger}
}

// Task returns the handler as a named dispatch task.
func (h *Handler) Task() dispatch.Task {
	return dispatch.Task{Name: TaskName, Fn: h.Process}
}

// OutputPath maps a source image to its published location.
func (h *Handler) OutputPath(src string) string {
	rel, err := filepath.Rel(h.imagesDir, src)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(src)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "images" {
			kept = append(kept, p)
		}
	}
	return filepath.Join(h.outDir, filepath.FromSlash(strings.Join(kept, "/")))
}

func (h *Handler) category(src string) string {
	rel, err := filepath.Rel(h.imagesDir, src)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	if c := notes.Category(first); c.Valid() {
		return first
	}
	return ""
}

// Process is the per-item handler for the process_images stage.
func (h *Handler) Process(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ext := strings.ToLower(filepath.Ext(src))
	if _, ok := h.exts[ext]; !ok {
		return foundationerrors.ImagesError("unsupported image format").
			WithContext("path", src).WithContext("extension", ext).Build()
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "read image").
			WithContext("path", src).Build()
	}

	meta, err := h.describe(src, ext, data)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryImages, "decode image").
			WithContext("path", src).Build()
	}
	if err := storage.WriteFileAtomic(meta.Output, data, 0o644); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "publish image").
			WithContext("path", meta.Output).Build()
	}
	if err := storage.WriteJSON(meta.Output+".json", meta); err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "write image metadata").
			WithContext("path", meta.Output).Build()
	}
	h.logger.Debug("Processed image", logfields.Path(src),
		slog.String("format", meta.Format), slog.Int("width", meta.Width), slog.Int("height", meta.Height))
	return nil
}

func (h *Handler) describe(src, ext string, data []byte) (*Metadata, error) {
	sum := sha1.Sum(data) //nolint:gosec // content addressing
	meta := &Metadata{
		Source:   filepath.ToSlash(src),
		Output:   h.OutputPath(src),
		Category: h.category(src),
		Bytes:    int64(len(data)),
		SHA1:     hex.EncodeToString(sum[:]),
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	switch {
	case err == nil:
		meta.Format, meta.Width, meta.Height = format, cfg.Width, cfg.Height
	case errors.Is(err, image.ErrFormat) && ext == ".webp":
		// No registered webp decoder; publish without dimensions.
		meta.Format = "webp"
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(src), err)
	}
	return meta, nil
}

// Policy builds the partition predicate for image dispatch.
func Policy(thresholdBytes int64, extensions []string, invert bool) dispatch.SizeExtensionPolicy {
	return dispatch.SizeExtensionPolicy{ThresholdBytes: thresholdBytes, Extensions: extensions, Invert: invert}
}
