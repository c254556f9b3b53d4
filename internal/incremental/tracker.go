package incremental

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ChangeSet holds the notes and images modified since the last build.
// It is computed once per build and not mutated afterwards.
type ChangeSet struct {
	ModifiedNotes  []string `json:"modified_notes"`
	ModifiedImages []string `json:"modified_images"`
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c.ModifiedNotes) == 0 && len(c.ModifiedImages) == 0
}

// Total counts all changed paths.
func (c ChangeSet) Total() int {
	return len(c.ModifiedNotes) + len(c.ModifiedImages)
}

// Tracker finds files changed after a BuildState.
type Tracker struct {
	NotesDir  string
	ImagesDir string
	NoteExt   string
	ImageExts []string
}

func epochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// Changes walks both roots. With a nil state every matching file is returned;
// otherwise only files whose mtime is strictly after the state time.
// A missing root contributes nothing.
func (t *Tracker) Changes(since *BuildState) (ChangeSet, error) {
	var cutoff *float64
	if since != nil {
		cutoff = &since.LastBuild
	}

	noteExt := t.NoteExt
	if noteExt == "" {
		noteExt = ".md"
	}
	notes, err := modifiedFiles(t.NotesDir, cutoff, extSet([]string{noteExt}))
	if err != nil {
		return ChangeSet{}, err
	}
	images, err := modifiedFiles(t.ImagesDir, cutoff, extSet(t.ImageExts))
	if err != nil {
		return ChangeSet{}, err
	}
	return ChangeSet{ModifiedNotes: notes, ModifiedImages: images}, nil
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}

func modifiedFiles(root string, cutoff *float64, exts map[string]struct{}) ([]string, error) {
	out := []string{}
	if root == "" {
		return out, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				if path == root {
					return filepath.SkipAll
				}
				// vanished mid-walk
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		if cutoff != nil {
			info, ierr := d.Info()
			if ierr != nil {
				if errors.Is(ierr, fs.ErrNotExist) {
					return nil
				}
				return ierr
			}
			// compare as float seconds, the same precision the state file stores
			if epochSeconds(info.ModTime()) <= *cutoff {
				return nil
			}
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
