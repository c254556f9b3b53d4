// Package contributors derives contributors.json from note authors and the
// git history of the notes directory.
package contributors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/xianyu564/tobacco-notes/internal/notes"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// FileName is the output file inside the data directory.
const FileName = "contributors.json"

var githubHandle = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Contributor is one person credited on the site.
type Contributor struct {
	Username           string `json:"username"`
	DisplayName        string `json:"display_name"`
	AvatarURL          string `json:"avatar_url"`
	ProfileURL         string `json:"profile_url"`
	JoinDate           string `json:"join_date"`
	TotalContributions int    `json:"total_contributions"`
	CommitsCount       int    `json:"commits_count"`
	NotesCount         int    `json:"notes_count"`
	LastActive         string `json:"last_active"`
	IsMaintainer       bool   `json:"is_maintainer"`
}

// Stats are headline counts.
type Stats struct {
	TotalNotes         int `json:"total_notes"`
	ActiveContributors int `json:"active_contributors"`
}

// Data is the contributors.json document.
type Data struct {
	LastUpdated       string        `json:"last_updated"`
	TotalContributors int           `json:"total_contributors"`
	Contributors      []Contributor `json:"contributors"`
	Stats             Stats         `json:"stats"`
}

// Options configures Build.
type Options struct {
	// RepoRoot is searched upward for a git repository.
	RepoRoot string
	// NotesDir limits commit attribution to changes under it.
	NotesDir   string
	Maintainer string
	Now        time.Time
}

// Build merges front-matter authors with commit authors touching NotesDir.
// A missing repository is not an error; only note authors are counted then.
func Build(list []*notes.Note, opts Options) (*Data, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	today := now.Format(time.DateOnly)
	people := map[string]*Contributor{}
	get := func(name string) *Contributor {
		c, ok := people[name]
		if !ok {
			c = &Contributor{Username: name, DisplayName: name, JoinDate: today, LastActive: today}
			if githubHandle.MatchString(name) {
				c.AvatarURL = "https://github.com/" + name + ".png"
				c.ProfileURL = "https://github.com/" + name
			}
			people[name] = c
		}
		return c
	}

	for _, n := range list {
		if a := n.Author(); a != "" {
			get(a).NotesCount++
		}
	}

	commits, err := commitAuthors(opts.RepoRoot, opts.NotesDir)
	if err != nil {
		return nil, err
	}
	for _, ca := range commits {
		c := get(ca.name)
		c.CommitsCount++
		day := ca.when.Format(time.DateOnly)
		if c.CommitsCount == 1 || day < c.JoinDate {
			c.JoinDate = day
		}
		if c.CommitsCount == 1 || day > c.LastActive {
			c.LastActive = day
		}
	}
	if opts.Maintainer != "" {
		get(opts.Maintainer).IsMaintainer = true
	}

	d := &Data{LastUpdated: now.Format(time.RFC3339), Contributors: make([]Contributor, 0, len(people))}
	for _, c := range people {
		c.TotalContributions = c.CommitsCount + c.NotesCount
		d.Contributors = append(d.Contributors, *c)
		d.Stats.TotalNotes += c.NotesCount
		if c.TotalContributions > 0 {
			d.Stats.ActiveContributors++
		}
	}
	sort.Slice(d.Contributors, func(i, j int) bool {
		a, b := d.Contributors[i], d.Contributors[j]
		if a.TotalContributions != b.TotalContributions {
			return a.TotalContributions > b.TotalContributions
		}
		return a.Username < b.Username
	})
	d.TotalContributors = len(d.Contributors)
	return d, nil
}

type commitAuthor struct {
	name string
	when time.Time
}

func commitAuthors(repoRoot, notesDir string) ([]commitAuthor, error) {
	if repoRoot == "" {
		return nil, nil
	}
	repo, err := git.PlainOpenWithOptions(repoRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil //nolint:nilerr // bare repositories have no notes tree
	}
	prefix := ""
	if notesDir != "" {
		abs, _ := filepath.Abs(notesDir)
		rootAbs, _ := filepath.Abs(wt.Filesystem.Root())
		if rel, err := filepath.Rel(rootAbs, abs); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			prefix = filepath.ToSlash(rel) + "/"
		}
	}

	head, err := repo.Head()
	if err != nil {
		// unborn branch
		return nil, nil //nolint:nilerr // no commits yet
	}
	opts := &git.LogOptions{From: head.Hash()}
	if prefix != "" {
		opts.PathFilter = func(p string) bool { return strings.HasPrefix(p, prefix) }
	}
	iter, err := repo.Log(opts)
	if err != nil {
		return nil, fmt.Errorf("read git log: %w", err)
	}
	defer iter.Close()

	var out []commitAuthor
	err = iter.ForEach(func(c *object.Commit) error {
		if name := strings.TrimSpace(c.Author.Name); name != "" {
			out = append(out, commitAuthor{name: name, when: c.Author.When})
		}
		return nil
	})
	return out, err
}

// Write stores d as dataDir/contributors.json.
func Write(dataDir string, d *Data) (string, error) {
	path := filepath.Join(dataDir, FileName)
	return path, storage.WriteJSON(path, d)
}
