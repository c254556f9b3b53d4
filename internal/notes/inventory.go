package notes

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xianyu564/tobacco-notes/internal/logfields"
)

// Scan loads every dated note under notesDir/<category>/*.md.
//
// Unknown category directories and TEMPLATE files are skipped. A missing
// notesDir yields an empty inventory. Results are sorted newest first,
// then by lowercase title.
func Scan(notesDir, root string, logger *slog.Logger) ([]*Note, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out []*Note
	for _, cat := range Categories {
		dir := filepath.Join(notesDir, string(cat))
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".md") || IsTemplate(name) {
				continue
			}
			if DatePrefix(name) == "" {
				continue
			}
			n, err := Load(filepath.Join(dir, name), root)
			if err != nil {
				return nil, err
			}
			if n.ParseErr != nil {
				logger.Warn("Front matter unreadable; using filename metadata",
					logfields.Path(n.RelPath), logfields.Error(n.ParseErr))
			}
			out = append(out, n)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// IsNotePath reports whether path is a dated note directly inside a known
// category directory of notesDir.
func IsNotePath(notesDir, path string) bool {
	rel, err := filepath.Rel(notesDir, path)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || !Category(parts[0]).Valid() {
		return false
	}
	name := parts[1]
	return strings.EqualFold(filepath.Ext(name), ".md") && !IsTemplate(name) && DatePrefix(name) != ""
}

// SortNewestFirst orders notes by date descending, then title descending
// (case-insensitive), matching the published index order.
func SortNewestFirst(list []*Note) {
	sort.SliceStable(list, func(i, j int) bool {
		di, dj := list[i].Date(), list[j].Date()
		if di != dj {
			return di > dj
		}
		return strings.ToLower(list[i].Title()) > strings.ToLower(list[j].Title())
	})
}
