// Package store persists runs, their sweep grids and refinement history in
// a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/notargets/EMKernel/refine"
	"github.com/notargets/EMKernel/simulation"
	"github.com/notargets/EMKernel/sweep"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for an unknown run
var ErrNotFound = errors.New("run not found")

// fixed width so that text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a results database
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path; ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Path() string { return s.path }

func (s *Store) initSchema() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		config TEXT,
		ports INTEGER NOT NULL,
		elements INTEGER NOT NULL,
		refined INTEGER NOT NULL,
		outcome TEXT,
		warning TEXT,
		global_error REAL,
		interrupted INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS points (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx INTEGER NOT NULL,
		frequency REAL NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS sparams (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		i INTEGER NOT NULL,
		j INTEGER NOT NULL,
		re REAL NOT NULL,
		im REAL NOT NULL,
		PRIMARY KEY (run_id, idx, i, j),
		FOREIGN KEY (run_id, idx) REFERENCES points(run_id, idx) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS refinement (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		pass INTEGER NOT NULL,
		elements INTEGER NOT NULL,
		unknowns INTEGER NOT NULL,
		global_error REAL,
		delta_s REAL,
		marked INTEGER NOT NULL,
		accepted INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (run_id, pass)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Run is the persisted record of one simulation
type Run struct {
	ID      uuid.UUID
	Name    string
	Created time.Time
	Config  string // YAML of the configuration used
	Summary simulation.Summary
	Grid    *sweep.Grid
	History []refine.Iteration
}

// RunInfo lists a stored run
type RunInfo struct {
	ID          uuid.UUID
	Name        string
	Created     time.Time
	Points      int
	Failed      int
	Outcome     string
	Interrupted bool
}

// FromResult builds the record of a pipeline result
func FromResult(name, config string, res *simulation.Result) Run {
	r := Run{
		ID:      res.RunID,
		Name:    name,
		Created: res.Started,
		Config:  config,
		Summary: res.Summary(),
		Grid:    res.Grid,
	}
	if res.Refinement != nil {
		r.History = res.Refinement.History
	}
	return r
}

func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// SaveRun writes a run in a single transaction
func (s *Store) SaveRun(ctx context.Context, r Run) (err error) {
	if r.Grid == nil {
		return fmt.Errorf("run %s has no grid", r.ID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	sum := r.Summary
	var outcome any
	if sum.Refined {
		outcome = sum.Outcome.String()
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO runs
		(id, name, created_at, config, ports, elements, refined, outcome, warning, global_error, interrupted, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Name, r.Created.UTC().Format(timeLayout), r.Config, r.Grid.Ports, sum.Elements, sum.Refined,
		outcome, sum.Warning, nullable(sum.GlobalError), r.Grid.Interrupted, sum.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, p := range r.Grid.Points {
		var msg any
		if p.Err != nil {
			msg = p.Err.Error()
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO points (run_id, idx, frequency, status, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID.String(), p.Index, p.Frequency, p.Status.String(), msg, p.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert point %d: %w", p.Index, err)
		}
		for i, row := range p.S {
			for j, v := range row {
				if _, err = tx.ExecContext(ctx, `INSERT INTO sparams (run_id, idx, i, j, re, im) VALUES (?, ?, ?, ?, ?, ?)`,
					r.ID.String(), p.Index, i+1, j+1, real(v), imag(v)); err != nil {
					return fmt.Errorf("failed to insert S(%d,%d) of point %d: %w", i+1, j+1, p.Index, err)
				}
			}
		}
	}

	for _, it := range r.History {
		if _, err = tx.ExecContext(ctx, `INSERT INTO refinement
			(run_id, pass, elements, unknowns, global_error, delta_s, marked, accepted, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), it.Index, it.Elements, it.Unknowns, nullable(it.GlobalError), nullable(it.DeltaS),
			it.Marked, it.Accepted, it.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("failed to insert refinement pass %d: %w", it.Index, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Runs lists the stored runs, newest first
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.name, r.created_at, COALESCE(r.outcome, ''), r.interrupted,
			COUNT(p.idx), COALESCE(SUM(p.status = 'failed'), 0)
		FROM runs r LEFT JOIN points p ON p.run_id = r.id
		GROUP BY r.id ORDER BY r.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info        RunInfo
			id, created string
		)
		if err := rows.Scan(&id, &info.Name, &created, &info.Outcome, &info.Interrupted, &info.Points, &info.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if info.Created, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("corrupt run time %q: %w", created, err)
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("corrupt run id %q: %w", id, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func parseStatus(s string) (sweep.Status, error) {
	for _, st := range []sweep.Status{sweep.Pending, sweep.Solved, sweep.Failed, sweep.Skipped} {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown point status %q", s)
}

// LoadGrid rebuilds the sweep grid of a run. Point errors come back as
// plain errors carrying the stored message.
func (s *Store) LoadGrid(ctx context.Context, id uuid.UUID) (*sweep.Grid, error) {
	g := &sweep.Grid{}
	err := s.db.QueryRowContext(ctx, `SELECT ports, interrupted FROM runs WHERE id = ?`, id.String()).
		Scan(&g.Ports, &g.Interrupted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT idx, frequency, status, error, duration_ms
		FROM points WHERE run_id = ? ORDER BY idx`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query points: %w", err)
	}
	for rows.Next() {
		var (
			p      sweep.Point
			status string
			msg    sql.NullString
			ms     int64
		)
		if err := rows.Scan(&p.Index, &p.Frequency, &status, &msg, &ms); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan point: %w", err)
		}
		if p.Status, err = parseStatus(status); err != nil {
			rows.Close()
			return nil, err
		}
		if msg.Valid {
			p.Err = errors.New(msg.String)
		}
		p.Duration = time.Duration(ms) * time.Millisecond
		g.Points = append(g.Points, p)
		g.Frequencies = append(g.Frequencies, p.Frequency)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for k := range g.Points {
		if g.Points[k].Status != sweep.Solved {
			continue
		}
		S := make([][]complex128, g.Ports)
		for i := range S {
			S[i] = make([]complex128, g.Ports)
		}
		g.Points[k].S = S
	}
	rows, err = s.db.QueryContext(ctx, `SELECT idx, i, j, re, im FROM sparams WHERE run_id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query S-parameters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			idx, i, j int
			re, im    float64
		)
		if err := rows.Scan(&idx, &i, &j, &re, &im); err != nil {
			return nil, fmt.Errorf("failed to scan S-parameter: %w", err)
		}
		if idx < 0 || idx >= len(g.Points) || g.Points[idx].S == nil || i < 1 || j < 1 || i > g.Ports || j > g.Ports {
			return nil, fmt.Errorf("stray S(%d,%d) at point %d", i, j, idx)
		}
		g.Points[idx].S[i-1][j-1] = complex(re, im)
	}
	return g, rows.Err()
}

// History returns the refinement passes of a run
func (s *Store) History(ctx context.Context, id uuid.UUID) ([]refine.Iteration, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pass, elements, unknowns, global_error, delta_s, marked, accepted, duration_ms
		FROM refinement WHERE run_id = ? ORDER BY pass`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query refinement: %w", err)
	}
	defer rows.Close()
	var out []refine.Iteration
	for rows.Next() {
		var (
			it       refine.Iteration
			gerr, ds sql.NullFloat64
			ms       int64
		)
		if err := rows.Scan(&it.Index, &it.Elements, &it.Unknowns, &gerr, &ds, &it.Marked, &it.Accepted, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan refinement pass: %w", err)
		}
		it.GlobalError, it.DeltaS = math.NaN(), math.NaN()
		if gerr.Valid {
			it.GlobalError = gerr.Float64
		}
		if ds.Valid {
			it.DeltaS = ds.Float64
		}
		it.State = refine.ErrorEstimated
		it.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, it)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything attached to it
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
