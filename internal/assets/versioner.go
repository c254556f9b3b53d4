package assets

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // cache-busting fingerprint
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/xianyu564/tobacco-notes/internal/dispatch"
	"github.com/xianyu564/tobacco-notes/internal/logfields"
	"github.com/xianyu564/tobacco-notes/internal/storage"
)

// ManifestName is the manifest file inside the assets directory.
const ManifestName = "manifest.json"

// Group is a docs subdirectory of versioned files.
type Group struct {
	Dir  string
	Exts []string
}

// DefaultGroups are the static file groups fingerprinted on every build.
var DefaultGroups = []Group{
	{Dir: "js", Exts: []string{".js"}},
	{Dir: "styles", Exts: []string{".css"}},
	{Dir: "images", Exts: []string{".jpg", ".jpeg", ".png", ".webp"}},
	{Dir: "fonts", Exts: []string{".woff2", ".woff", ".ttf"}},
}

var versionedName = regexp.MustCompile(`\.[0-9a-f]{8}\.[^./]+$`)

// Manifest maps docs-relative slash paths to their 8-hex fingerprint.
type Manifest map[string]string

// VersionedPath returns the fingerprinted sibling of rel, or "" if rel is unknown.
func (m Manifest) VersionedPath(rel string) string {
	hash, ok := m[rel]
	if !ok {
		return ""
	}
	return VersionedName(rel, hash)
}

// VersionedName inserts hash before the extension: app.js -> app.<hash>.js.
func VersionedName(path, hash string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + hash + ext
}

// Versioner fingerprints static files under a docs directory.
type Versioner struct {
	DocsDir      string
	ManifestPath string
	Groups       []Group
	Dispatcher   *dispatch.Dispatcher
	Logger       *slog.Logger
}

// Result summarises a versioning run.
type Result struct {
	Manifest     Manifest
	Copied       int
	HTMLRewrites int
	Outcome      dispatch.Outcome
}

// Run fingerprints every group file, writes the manifest and rewrites
// href/src references in docs HTML. Per-file failures are reported in the
// outcome; the manifest and HTML are still updated for the files that succeeded.
func (v *Versioner) Run(ctx context.Context) (*Result, error) {
	logger := v.Logger
	if logger == nil {
		logger = slog.Default()
	}
	groups := v.Groups
	if groups == nil {
		groups = DefaultGroups
	}
	d := v.Dispatcher
	if d == nil {
		d = dispatch.New()
	}

	prev := v.loadManifest(logger)
	files, err := v.collect(groups)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	res := &Result{Manifest: Manifest{}}
	for k, h := range prev {
		if _, err := os.Stat(filepath.Join(v.DocsDir, filepath.FromSlash(k))); err == nil {
			res.Manifest[k] = h
		}
	}
	res.Outcome = d.ProcessFiles(ctx, files, dispatch.Task{Name: "version_asset", Fn: func(_ context.Context, path string) error {
		rel, hash, copied, err := v.versionFile(path, prev)
		if err != nil {
			return err
		}
		mu.Lock()
		res.Manifest[rel] = hash
		if copied {
			res.Copied++
		}
		mu.Unlock()
		return nil
	}}, dispatch.PoolThread, 0)

	if err := storage.WriteJSON(v.ManifestPath, res.Manifest); err != nil {
		return res, fmt.Errorf("write manifest: %w", err)
	}
	n, err := RewriteHTMLTree(v.DocsDir, res.Manifest)
	res.HTMLRewrites = n
	if err != nil {
		return res, err
	}
	logger.Info("Versioned static assets", logfields.Count(len(res.Manifest)),
		slog.Int("copied", res.Copied), slog.Int("html_rewrites", n))
	return res, nil
}

func (v *Versioner) loadManifest(logger *slog.Logger) Manifest {
	m := Manifest{}
	data, err := os.ReadFile(v.ManifestPath)
	if err != nil {
		return m
	}
	if err := json.Unmarshal(data, &m); err != nil {
		logger.Warn("Ignoring unreadable asset manifest", logfields.Path(v.ManifestPath), logfields.Error(err))
		return Manifest{}
	}
	return m
}

func (v *Versioner) collect(groups []Group) ([]string, error) {
	var files []string
	for _, g := range groups {
		dir := filepath.Join(v.DocsDir, g.Dir)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || versionedName.MatchString(d.Name()) {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			for _, e := range g.Exts {
				if ext == e {
					files = append(files, path)
					break
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

func (v *Versioner) versionFile(path string, prev Manifest) (rel, hash string, copied bool, err error) {
	hash, err = fileHash(path)
	if err != nil {
		return "", "", false, err
	}
	r, err := filepath.Rel(v.DocsDir, path)
	if err != nil {
		return "", "", false, err
	}
	rel = filepath.ToSlash(r)
	target := VersionedName(path, hash)
	if _, statErr := os.Stat(target); statErr == nil && prev[rel] == hash {
		return rel, hash, false, nil
	}
	if err := storage.CopyFileAtomic(path, target); err != nil {
		return "", "", false, err
	}
	return rel, hash, true, nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New() //nolint:gosec // cache-busting fingerprint
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil))[:8], nil
}

// RewriteHTMLTree rewrites references in every .html file under dir and
// returns how many files changed.
func RewriteHTMLTree(dir string, m Manifest) (int, error) {
	if len(m) == 0 {
		return 0, nil
	}
	changed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".html") {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out, n, err := RewriteHTML(src, m)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if n == 0 {
			return nil
		}
		changed++
		return storage.WriteFileAtomic(path, out, 0o644)
	})
	return changed, err
}

// RewriteHTML replaces href and src values naming a manifest entry with the
// versioned path. A leading "./" or "/" is preserved. Untouched tokens are
// copied byte for byte.
func RewriteHTML(src []byte, m Manifest) ([]byte, int, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	replaced := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, 0, err
			}
			return out.Bytes(), replaced, nil
		}
		raw := z.Raw()
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			out.Write(raw)
			continue
		}
		// Token lowercases names in place; keep the original bytes.
		raw = append([]byte(nil), raw...)
		tok := z.Token()
		hit := false
		for i, a := range tok.Attr {
			if a.Namespace != "" || (a.Key != "href" && a.Key != "src") {
				continue
			}
			if nv := rewriteRef(a.Val, m); nv != "" {
				tok.Attr[i].Val = nv
				hit = true
			}
		}
		if !hit {
			out.Write(raw)
			continue
		}
		replaced++
		out.WriteString(tok.String())
	}
}

func rewriteRef(val string, m Manifest) string {
	prefix := ""
	ref := val
	switch {
	case strings.HasPrefix(ref, "./"):
		prefix, ref = "./", ref[2:]
	case strings.HasPrefix(ref, "/"):
		prefix, ref = "/", ref[1:]
	}
	// a reference pinned by an earlier build points at app.<old>.js
	if loc := versionedName.FindStringIndex(ref); loc != nil {
		if base := ref[:loc[0]] + filepath.Ext(ref); m[base] != "" {
			ref = base
		}
	}
	vp := m.VersionedPath(ref)
	if vp == "" || prefix+vp == val {
		return ""
	}
	return prefix + vp
}
