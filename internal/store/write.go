package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/variant"
)

// ErrRunNotFound reports an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// FileRef is one archived manifest entry.
type FileRef struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	CoarseChannel int    `json:"coarse_channel"`
}

// Run is one archived ablation run.
type Run struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	ManifestSource string        `json:"manifest_source"`
	ManifestHash   string        `json:"manifest_hash"`
	CatalogueHash  string        `json:"catalogue_hash"`
	Baseline       string        `json:"baseline"`
	Normalized     bool          `json:"normalized"`
	Device         string        `json:"device"`
	Library        string        `json:"library"`
	Host           string        `json:"host,omitempty"`
	Duration       time.Duration `json:"duration"`

	Variants []variant.Spec `json:"variants"`
	Files    []FileRef      `json:"files"`
	Matrix   *matrix.Matrix `json:"-"`
}

// Registry rebuilds the variant catalogue the run was measured with.
func (r *Run) Registry() (*variant.Registry, error) {
	return variant.New(r.Variants...)
}

// WriteRun archives r in one transaction and returns its ID. An empty ID is
// filled from the store's generator and a zero CreatedAt from its clock.
func (s *Store) WriteRun(ctx context.Context, r *Run) (string, error) {
	if r.Matrix == nil {
		return "", fmt.Errorf("write run: matrix is nil")
	}
	if r.ID == "" {
		r.ID = s.ids.Generate()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, manifest_source, manifest_hash, catalogue_hash, baseline, normalized, device, library, host, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.CreatedAt.UTC().Format(timeLayout),
		r.ManifestSource,
		r.ManifestHash,
		r.CatalogueHash,
		r.Baseline,
		boolInt(r.Normalized),
		r.Device,
		r.Library,
		r.Host,
		r.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}

	for i, spec := range r.Variants {
		data, err := marshalSpec(spec)
		if err != nil {
			return "", fmt.Errorf("write run: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_variants (run_id, position, name, spec) VALUES (?, ?, ?, ?)
		`, r.ID, i, spec.Name, data); err != nil {
			return "", fmt.Errorf("write run variant %s: %w", spec.Name, err)
		}
	}

	for i, f := range r.Files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_files (run_id, position, name, path, coarse_channel) VALUES (?, ?, ?, ?, ?)
		`, r.ID, i, f.Name, f.Path, f.CoarseChannel); err != nil {
			return "", fmt.Errorf("write run file %s: %w", f.Name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO measurements (run_id, variant, file, power, floor, error) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}
	defer stmt.Close()

	for _, v := range r.Matrix.Variants() {
		row, _ := r.Matrix.Row(v)
		for fi, file := range r.Matrix.Files() {
			c := row[fi]
			var args []any
			switch c.State {
			case matrix.Measured:
				args = []any{r.ID, v, file, realValue(c.Measurement.Power), realValue(c.Measurement.Floor), nil}
			case matrix.Failed:
				msg := "failed"
				if c.Err != nil && c.Err.Error() != "" {
					msg = c.Err.Error()
				}
				args = []any{r.ID, v, file, nil, nil, msg}
			default:
				continue
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return "", fmt.Errorf("write measurement %s/%s: %w", v, file, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write run: %w", err)
	}
	return r.ID, nil
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
