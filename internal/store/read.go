package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/noiseablate/internal/matrix"
)

// LatestRun is accepted by ReadRun in place of an ID.
const LatestRun = "latest"

// RunSummary is one line of the run history.
type RunSummary struct {
	ID             string        `json:"id"`
	CreatedAt      time.Time     `json:"created_at"`
	ManifestSource string        `json:"manifest_source"`
	Baseline       string        `json:"baseline"`
	Variants       int           `json:"variants"`
	Files          int           `json:"files"`
	Failed         int           `json:"failed"`
	Duration       time.Duration `json:"duration"`
}

// ReadRun loads an archived run with its matrix. id may be LatestRun.
func (s *Store) ReadRun(ctx context.Context, id string) (*Run, error) {
	if id == LatestRun {
		latest, err := s.latestID(ctx)
		if err != nil {
			return nil, err
		}
		id = latest
	}

	r := &Run{ID: id}
	var (
		created    string
		normalized int
		durationMS int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, manifest_source, manifest_hash, catalogue_hash, baseline, normalized, device, library, host, duration_ms
		FROM runs WHERE id = ?
	`, id).Scan(
		&created,
		&r.ManifestSource,
		&r.ManifestHash,
		&r.CatalogueHash,
		&r.Baseline,
		&normalized,
		&r.Device,
		&r.Library,
		&r.Host,
		&durationMS,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read run: %w", err)
	}
	if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, fmt.Errorf("read run: created_at: %w", err)
	}
	r.Normalized = normalized != 0
	r.Duration = time.Duration(durationMS) * time.Millisecond

	if err := s.readVariants(ctx, r); err != nil {
		return nil, err
	}
	if err := s.readFiles(ctx, r); err != nil {
		return nil, err
	}
	if err := s.readMeasurements(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) latestID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs ORDER BY created_at DESC, id COLLATE BINARY DESC LIMIT 1
	`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: archive is empty", ErrRunNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read latest run: %w", err)
	}
	return id, nil
}

func (s *Store) readVariants(ctx context.Context, r *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spec FROM run_variants WHERE run_id = ? ORDER BY position ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}
		spec, err := unmarshalSpec(data)
		if err != nil {
			return err
		}
		r.Variants = append(r.Variants, spec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate variants: %w", err)
	}
	return nil
}

func (s *Store) readFiles(ctx context.Context, r *Run) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, path, coarse_channel FROM run_files WHERE run_id = ? ORDER BY position ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var f FileRef
		if err := rows.Scan(&f.Name, &f.Path, &f.CoarseChannel); err != nil {
			return fmt.Errorf("scan file: %w", err)
		}
		r.Files = append(r.Files, f)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate files: %w", err)
	}
	return nil
}

// storedError is a failure read back from the archive.
type storedError string

func (e storedError) Error() string { return string(e) }

func (s *Store) readMeasurements(ctx context.Context, r *Run) error {
	variants := make([]string, len(r.Variants))
	for i, v := range r.Variants {
		variants[i] = v.Name
	}
	files := make([]string, len(r.Files))
	for i, f := range r.Files {
		files[i] = f.Name
	}
	m, err := matrix.New(variants, files)
	if err != nil {
		return fmt.Errorf("read run %s: %w", r.ID, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT variant, file, power, floor, error FROM measurements
		WHERE run_id = ?
		ORDER BY variant COLLATE BINARY ASC, file COLLATE BINARY ASC
	`, r.ID)
	if err != nil {
		return fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			v, f         string
			power, floor sql.NullFloat64
			msg          sql.NullString
		)
		if err := rows.Scan(&v, &f, &power, &floor, &msg); err != nil {
			return fmt.Errorf("scan measurement: %w", err)
		}
		if msg.Valid {
			err = m.Fail(v, f, storedError(msg.String))
		} else {
			err = m.Set(v, f, matrix.Measurement{Power: fromReal(power), Floor: fromReal(floor)})
		}
		if err != nil {
			return fmt.Errorf("read run %s: %w", r.ID, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate measurements: %w", err)
	}
	r.Matrix = m
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.manifest_source, r.baseline, r.duration_ms,
			(SELECT COUNT(*) FROM run_variants v WHERE v.run_id = r.id),
			(SELECT COUNT(*) FROM run_files f WHERE f.run_id = r.id),
			(SELECT COUNT(*) FROM measurements m WHERE m.run_id = r.id AND m.error IS NOT NULL)
		FROM runs r
		ORDER BY r.created_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := []RunSummary{}
	for rows.Next() {
		var (
			sum        RunSummary
			created    string
			durationMS int64
		)
		if err := rows.Scan(&sum.ID, &created, &sum.ManifestSource, &sum.Baseline, &durationMS,
			&sum.Variants, &sum.Files, &sum.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if sum.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("scan run: created_at: %w", err)
		}
		sum.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}
