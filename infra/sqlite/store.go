// Package sqlite implements the entity store on SQLite. Entities are kept as
// JSON documents next to the columns used for filtering; committed events
// are inserted through a transactional check-then-insert.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kilianp07/crewplan/core/interval"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/store"
)

//go:embed schema.sql
var schema string

// Config configures the database.
type Config struct {
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout"`
}

// Store is a store.Store backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database described by cfg and applies the schema.
// Paths starting with "file:" are passed to the driver unchanged.
func Open(cfg Config) (*Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writers, which makes CommitEvent atomic
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db, cfg); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB, cfg Config) error {
	pragmas := []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"}
	if cfg.BusyTimeout > 0 {
		pragmas = append([]string{fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func decode[T any](data string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

func (s *Store) getOne(ctx context.Context, kind, query, id string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", kind, id, store.ErrNotFound)
	}
	return data, err
}

func scanAll[T any](rows *sql.Rows, keep func(T) bool) ([]T, error) {
	defer func() { _ = rows.Close() }()
	res := make([]T, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v, err := decode[T](data)
		if err != nil {
			return nil, err
		}
		if keep(v) {
			res = append(res, v)
		}
	}
	return res, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (model.Project, error) {
	data, err := s.getOne(ctx, "project", `SELECT data FROM projects WHERE id = ?`, id)
	if err != nil {
		return model.Project{}, err
	}
	return decode[model.Project](data)
}

func (s *Store) ListProjects(ctx context.Context, f store.ProjectFilter) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM projects ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, f.Match)
}

func (s *Store) SaveProject(ctx context.Context, p model.Project) error {
	if p.ID == "" {
		return errors.New("project id is required")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO projects(id, status, data) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		p.ID, int(p.Status), string(b))
	return err
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	data, err := s.getOne(ctx, "task", `SELECT data FROM tasks WHERE id = ?`, id)
	if err != nil {
		return model.Task{}, err
	}
	return decode[model.Task](data)
}

func (s *Store) ListTasks(ctx context.Context, f store.TaskFilter) ([]model.Task, error) {
	query := `SELECT data FROM tasks`
	var args []any
	if f.ProjectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, f.ProjectID)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, f.Match)
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	b, err := json.Marshal(t)
	if err != nil {
		return model.Task{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks(id, project_id, status, data) VALUES(?, ?, ?, ?)`,
		t.ID, t.ProjectID, int(t.Status), string(b))
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t model.Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = ?, status = ?, data = ? WHERE id = ?`,
		t.ProjectID, int(t.Status), string(b), t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetWorker(ctx context.Context, email string) (model.Worker, error) {
	data, err := s.getOne(ctx, "worker", `SELECT data FROM workers WHERE email = ?`, strings.ToLower(email))
	if err != nil {
		return model.Worker{}, err
	}
	return decode[model.Worker](data)
}

func (s *Store) ListWorkers(ctx context.Context) ([]model.Worker, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM workers ORDER BY email`)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, func(model.Worker) bool { return true })
}

func (s *Store) SaveWorker(ctx context.Context, w model.Worker) error {
	if w.Email == "" {
		return errors.New("worker email is required")
	}
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workers(email, data) VALUES(?, ?)
		 ON CONFLICT(email) DO UPDATE SET data = excluded.data`,
		strings.ToLower(w.Email), string(b))
	return err
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listEvents(ctx context.Context, q querier, f store.EventFilter) ([]model.CommittedEvent, error) {
	query := `SELECT data FROM events WHERE 1=1`
	var args []any
	if len(f.WorkerIDs) == 1 {
		query += ` AND worker_id = ?`
		args = append(args, strings.ToLower(f.WorkerIDs[0]))
	}
	if !f.From.IsZero() {
		query += ` AND end_ns > ?`
		args = append(args, f.From.UnixNano())
	}
	if !f.To.IsZero() {
		query += ` AND start_ns < ?`
		args = append(args, f.To.UnixNano())
	}
	rows, err := q.QueryContext(ctx, query+` ORDER BY start_ns, id`, args...)
	if err != nil {
		return nil, err
	}
	return scanAll(rows, f.Match)
}

func (s *Store) ListEvents(ctx context.Context, f store.EventFilter) ([]model.CommittedEvent, error) {
	return listEvents(ctx, s.db, f)
}

// CommitEvent re-reads the worker's events overlapping ev inside a
// transaction and inserts ev only when none conflicts.
func (s *Store) CommitEvent(ctx context.Context, ev model.CommittedEvent) (model.CommittedEvent, error) {
	if err := ev.Validate(); err != nil {
		return model.CommittedEvent{}, err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return model.CommittedEvent{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.CommittedEvent{}, err
	}
	defer func() { _ = tx.Rollback() }()

	// From/To are widened by one nanosecond so a start-equal event is read too
	existing, err := listEvents(ctx, tx, store.EventFilter{
		WorkerIDs: []string{ev.WorkerID},
		From:      ev.Start.Add(-time.Nanosecond),
		To:        ev.End.Add(time.Nanosecond),
	})
	if err != nil {
		return model.CommittedEvent{}, err
	}
	if other, ok := interval.FirstConflict(ev.Start, ev.End, existing); ok {
		return model.CommittedEvent{}, fmt.Errorf("%w: %s", store.ErrOverlap, other.ID)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events(id, worker_id, task_id, start_ns, end_ns, data) VALUES(?, ?, ?, ?, ?, ?)`,
		ev.ID, strings.ToLower(ev.WorkerID), ev.TaskID, ev.Start.UnixNano(), ev.End.UnixNano(), string(b))
	if err != nil {
		return model.CommittedEvent{}, fmt.Errorf("insert event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.CommittedEvent{}, err
	}
	return ev, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event %s: %w", id, store.ErrNotFound)
	}
	return nil
}
