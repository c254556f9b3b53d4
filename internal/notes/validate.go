package notes

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	filenamePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-[a-z0-9\-]+\.md$`)
	isoDatePattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	cigarSize       = regexp.MustCompile(`^\d+x\d+$`)
)

const (
	maxTitleLength = 100
	minBodyLength  = 50
	maxBodyLength  = 5000
	maxRating      = 10.0
)

// Severity grades a validation problem.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is a single validation finding for a note.
type Problem struct {
	Path     string   `json:"path"`
	Field    string   `json:"field,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (p Problem) String() string {
	if p.Field != "" {
		return fmt.Sprintf("%s: %s: %s", p.Path, p.Field, p.Message)
	}
	return fmt.Sprintf("%s: %s", p.Path, p.Message)
}

// Problems is a list of findings.
type Problems []Problem

// Errors returns only error-severity findings.
func (ps Problems) Errors() Problems {
	var out Problems
	for _, p := range ps {
		if p.Severity == SeverityError {
			out = append(out, p)
		}
	}
	return out
}

// Err folds error-severity findings into a single error, or nil.
func (ps Problems) Err() error {
	errs := ps.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, p := range errs {
		msgs[i] = p.String()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Validate checks a note's filename and front matter.
//
// Required: a title-equivalent key, category matching the directory, and an ISO
// date equal to the filename prefix. Rating, when present, must lie in [0,10].
func Validate(n *Note) Problems {
	var ps Problems
	add := func(sev Severity, field, format string, args ...any) {
		ps = append(ps, Problem{Path: n.RelPath, Field: field, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	name := filepath.Base(n.Path)
	if !filenamePattern.MatchString(name) {
		add(SeverityError, "", "filename must match YYYY-MM-DD-slug.md (lowercase slug)")
	}
	if n.ParseErr != nil {
		add(SeverityError, "", "front matter: %v", n.ParseErr)
		return ps
	}
	if len(n.Fields) == 0 {
		add(SeverityError, "", "missing front matter")
		return ps
	}

	if n.Fields.FirstString(titleKeys...) == "" {
		add(SeverityError, "title", "required (or one of %s)", strings.Join(titleKeys[1:], ", "))
	} else if utf8.RuneCountInString(n.Title()) > maxTitleLength {
		add(SeverityWarning, "title", "longer than %d characters", maxTitleLength)
	}

	cat := Category(n.Fields.String("category"))
	switch {
	case cat == "":
		add(SeverityError, "category", "required")
	case !cat.Valid():
		add(SeverityError, "category", "unknown category %q", cat)
	case cat != n.Category:
		add(SeverityError, "category", "%q does not match directory %q", cat, n.Category)
	}

	date := n.Fields.String("date")
	switch {
	case date == "":
		add(SeverityError, "date", "required")
	case !isoDatePattern.MatchString(date):
		add(SeverityError, "date", "%q is not YYYY-MM-DD", date)
	default:
		if _, err := time.Parse(time.DateOnly, date); err != nil {
			add(SeverityError, "date", "%q is not a calendar date", date)
		} else if n.FileDate != "" && date != n.FileDate {
			add(SeverityError, "date", "%s does not match filename prefix %s", date, n.FileDate)
		}
	}

	if n.Fields.Has("rating") {
		r, ok := n.Rating()
		switch {
		case !ok:
			add(SeverityError, "rating", "must be a number")
		case r < 0 || r > maxRating:
			add(SeverityError, "rating", "%.1f outside 0-10", r)
		}
	}

	bodyLen := utf8.RuneCount([]byte(strings.TrimSpace(string(n.Body))))
	switch {
	case bodyLen > maxBodyLength:
		add(SeverityWarning, "", "body longer than %d characters", maxBodyLength)
	case bodyLen < minBodyLength:
		add(SeverityWarning, "", "body shorter than %d characters", minBodyLength)
	}

	switch n.Category {
	case CategoryCigars:
		if size := n.Fields.String("size"); size != "" && !cigarSize.MatchString(size) {
			add(SeverityWarning, "size", "use LENGTHxRING, e.g. 6x52")
		}
	case CategoryCigarettes:
		if pt := n.Fields.String("pack_type"); pt != "" && pt != "soft" && pt != "hard" && pt != "box" {
			add(SeverityWarning, "pack_type", "expected soft, hard or box")
		}
	case CategoryPipe:
		switch n.Fields.String("tobacco_type") {
		case "", "virginia", "burley", "oriental", "latakia", "perique", "aromatic":
		default:
			add(SeverityWarning, "tobacco_type", "not a standard tobacco type")
		}
	}
	return ps
}
