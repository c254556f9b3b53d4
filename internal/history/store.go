// Package history keeps a SQLite log of builds and their stage timings.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// Build is one recorded build.
type Build struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Outcome       string
	Incremental   bool
	NotesChanged  int
	ImagesChanged int
	Error         string
}

// Duration is the wall time of the build.
func (b Build) Duration() time.Duration { return b.FinishedAt.Sub(b.StartedAt) }

// StageRun is one stage of a recorded build.
type StageRun struct {
	BuildID  string
	Seq      int
	Stage    string
	Duration time.Duration
	Result   string
}

// Store is a SQLite-backed build history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if needed) the history database at path.
// Use ":memory:" for an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one connection: :memory: databases are per-connection and writes serialize anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		incremental INTEGER NOT NULL,
		notes_changed INTEGER NOT NULL,
		images_changed INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS stage_runs (
		build_id TEXT NOT NULL REFERENCES builds(id),
		seq INTEGER NOT NULL,
		stage TEXT NOT NULL,
		duration_ms REAL NOT NULL,
		result TEXT NOT NULL,
		PRIMARY KEY (build_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordBuild stores a build and its stages atomically.
func (s *Store) RecordBuild(ctx context.Context, b Build, stages []StageRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sq.Insert("builds").
		Columns("id", "started_at", "finished_at", "outcome", "incremental", "notes_changed", "images_changed", "error").
		Values(b.ID, b.StartedAt.UnixNano(), b.FinishedAt.UnixNano(), b.Outcome, b.Incremental,
			b.NotesChanged, b.ImagesChanged, b.Error).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	if len(stages) > 0 {
		ins := sq.Insert("stage_runs").Columns("build_id", "seq", "stage", "duration_ms", "result")
		for i, st := range stages {
			ins = ins.Values(b.ID, i, st.Stage, float64(st.Duration)/float64(time.Millisecond), st.Result)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert stages: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit builds, newest first. A non-empty outcome filters by outcome.
func (s *Store) Recent(ctx context.Context, limit int, outcome string) ([]Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := sq.Select("id", "started_at", "finished_at", "outcome", "incremental", "notes_changed", "images_changed", "error").
		From("builds").
		OrderBy("started_at DESC", "id DESC")
	if outcome != "" {
		q = q.Where(sq.Eq{"outcome": outcome})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var b Build
		var started, finished int64
		if err := rows.Scan(&b.ID, &started, &finished, &b.Outcome, &b.Incremental,
			&b.NotesChanged, &b.ImagesChanged, &b.Error); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.StartedAt = time.Unix(0, started)
		b.FinishedAt = time.Unix(0, finished)
		out = append(out, b)
	}
	return out, rows.Err()
}

// ErrNotFound is returned by Get for unknown build IDs.
var ErrNotFound = errors.New("build not found")

// Get returns one build by ID.
func (s *Store) Get(ctx context.Context, id string) (Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("id", "started_at", "finished_at", "outcome", "incremental", "notes_changed", "images_changed", "error").
		From("builds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Build{}, err
	}
	var b Build
	var started, finished int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &started, &finished, &b.Outcome,
		&b.Incremental, &b.NotesChanged, &b.ImagesChanged, &b.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, ErrNotFound
	}
	if err != nil {
		return Build{}, fmt.Errorf("query build: %w", err)
	}
	b.StartedAt = time.Unix(0, started)
	b.FinishedAt = time.Unix(0, finished)
	return b, nil
}

// Stages returns the stages of a build in execution order.
func (s *Store) Stages(ctx context.Context, buildID string) ([]StageRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := sq.Select("build_id", "seq", "stage", "duration_ms", "result").
		From("stage_runs").Where(sq.Eq{"build_id": buildID}).OrderBy("seq").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRun
	for rows.Next() {
		var st StageRun
		var ms float64
		if err := rows.Scan(&st.BuildID, &st.Seq, &st.Stage, &ms, &st.Result); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Duration = time.Duration(ms * float64(time.Millisecond))
		out = append(out, st)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep builds and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keepIDs := sq.Select("id").From("builds").OrderBy("started_at DESC", "id DESC").Limit(uint64(max(keep, 0)))
	sub, subArgs, err := keepIDs.ToSql()
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stage_runs WHERE build_id NOT IN ("+sub+")", subArgs...); err != nil {
		return 0, fmt.Errorf("prune stages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM builds WHERE id NOT IN ("+sub+")", subArgs...)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}
