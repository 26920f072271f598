package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/pipeline"
)

// DefaultLimit bounds list queries that give no limit.
const DefaultLimit = 20

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("history record not found")

// Run is a stored single-image run.
type Run struct {
	ID                  int64                     `json:"id"`
	Source              string                    `json:"source"`
	Variant             string                    `json:"variant"`
	ModelName           string                    `json:"model_name"`
	ConfidenceThreshold float64                   `json:"confidence_threshold"`
	OverlapThreshold    float64                   `json:"overlap_threshold"`
	TotalDetections     int                       `json:"total_detections"`
	HighestConfidence   float64                   `json:"highest_confidence"`
	Artifacts           pipeline.Artifacts        `json:"artifacts"`
	Summary             pipeline.DetectionSummary `json:"summary"`
	CreatedAt           time.Time                 `json:"created_at"`
}

// Comparison is a stored comparison of two runs.
type Comparison struct {
	ID              int64                      `json:"id"`
	FirstRunID      int64                      `json:"first_run_id"`
	SecondRunID     int64                      `json:"second_run_id"`
	DetectionDelta  int                        `json:"detection_delta"`
	ConfidenceDelta float64                    `json:"confidence_delta"`
	Interpretation  pipeline.Interpretation    `json:"interpretation"`
	Summary         pipeline.ComparisonSummary `json:"summary"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// Filter narrows run listings. Zero values match everything.
type Filter struct {
	Variant string
	Limit   int
}

// Store reads and writes run history.
type Store struct {
	db  *DB
	now func() time.Time
}

// NewStore creates a store over db.
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// RecordRun stores a run, its accepted detections and artifact paths.
func (s *Store) RecordRun(ctx context.Context, res *pipeline.Result, arts pipeline.Artifacts) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := s.insertRun(ctx, tx, res, arts, s.now())
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// RecordComparison stores both runs of a comparison and the comparison
// itself in one transaction. It returns the comparison ID.
func (s *Store) RecordComparison(ctx context.Context, cmp *pipeline.Comparison, arts [2]pipeline.Artifacts) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	summary, err := json.Marshal(cmp.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to encode comparison: %w", err)
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	first, err := s.insertRun(ctx, tx, cmp.First, arts[0], now)
	if err != nil {
		return 0, err
	}
	second, err := s.insertRun(ctx, tx, cmp.Second, arts[1], now)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO comparisons (first_run_id, second_run_id, detection_delta, confidence_delta, interpretation, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, first, second, cmp.Summary.DetectionDelta, cmp.Summary.ConfidenceDelta,
		string(cmp.Summary.Interpretation), string(summary), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to insert comparison: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit comparison: %w", err)
	}
	return id, nil
}

func (s *Store) insertRun(ctx context.Context, tx *sql.Tx, res *pipeline.Result, arts pipeline.Artifacts, now time.Time) (int64, error) {
	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to encode summary: %w", err)
	}

	sm := res.Summary
	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs (source, variant, model_name, confidence_threshold, overlap_threshold,
			total_detections, highest_confidence, annotated_path, mask_path, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.Source, sm.ModelVariant, sm.ModelName, sm.ConfidenceThreshold, sm.OverlapThreshold,
		sm.TotalDetections, sm.HighestConfidence, arts.Annotated, arts.Mask, string(summary), formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err := insertDetections(ctx, tx, id, res.Detections); err != nil {
		return 0, err
	}
	return id, nil
}

func insertDetections(ctx context.Context, tx *sql.Tx, runID int64, dets []detection.Detection) error {
	if len(dets) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_detections (run_id, label, x1, y1, x2, y2, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range dets {
		if _, err := stmt.ExecContext(ctx, runID, d.Label, d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.Confidence); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

const runColumns = `id, source, variant, model_name, confidence_threshold, overlap_threshold,
	total_detections, highest_confidence, annotated_path, mask_path, summary, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		summary string
		created string
	)
	err := sc.Scan(&r.ID, &r.Source, &r.Variant, &r.ModelName, &r.ConfidenceThreshold, &r.OverlapThreshold,
		&r.TotalDetections, &r.HighestConfidence, &r.Artifacts.Annotated, &r.Artifacts.Mask, &summary, &created)
	if err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
		return Run{}, fmt.Errorf("run %d: bad summary: %w", r.ID, err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return Run{}, fmt.Errorf("run %d: %w", r.ID, err)
	}
	return r, nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context, f Filter) ([]Run, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if f.Variant != "" {
		query += ` WHERE variant = ?`
		args = append(args, f.Variant)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limitOrDefault(f.Limit))

	rows, err := s.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns one run by ID.
func (s *Store) Run(ctx context.Context, id int64) (*Run, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	row := s.db.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Detections returns the accepted detections of a run in their original
// order.
func (s *Store) Detections(ctx context.Context, runID int64) ([]detection.Detection, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT label, x1, y1, x2, y2, confidence
		FROM run_detections WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	dets := []detection.Detection{}
	for rows.Next() {
		var d detection.Detection
		if err := rows.Scan(&d.Label, &d.Box.X1, &d.Box.Y1, &d.Box.X2, &d.Box.Y2, &d.Confidence); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		dets = append(dets, d)
	}
	return dets, rows.Err()
}

// Comparisons lists comparisons, newest first.
func (s *Store) Comparisons(ctx context.Context, limit int) ([]Comparison, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, first_run_id, second_run_id, detection_delta, confidence_delta, interpretation, summary, created_at
		FROM comparisons ORDER BY id DESC LIMIT ?
	`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	out := []Comparison{}
	for rows.Next() {
		var (
			c       Comparison
			interp  string
			summary string
			created string
		)
		if err := rows.Scan(&c.ID, &c.FirstRunID, &c.SecondRunID, &c.DetectionDelta, &c.ConfidenceDelta, &interp, &summary, &created); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		c.Interpretation = pipeline.Interpretation(interp)
		if err := json.Unmarshal([]byte(summary), &c.Summary); err != nil {
			return nil, fmt.Errorf("comparison %d: bad summary: %w", c.ID, err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("comparison %d: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Labels returns every distinct detection label on record, sorted.
func (s *Store) Labels(ctx context.Context) ([]string, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rows, err := s.db.conn.QueryContext(ctx, `SELECT DISTINCT label FROM run_detections ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to query labels: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// DeleteRun removes a run and its detections. Comparisons referencing the
// run are removed with it.
func (s *Store) DeleteRun(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	result, err := s.db.conn.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %d: %w", id, ErrNotFound)
	}
	return nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
