package matrix

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrColumnMismatch reports variants with different populated file sets.
	ErrColumnMismatch = errors.New("column sets differ between variants")

	// ErrBaselineNotInMatrix reports a baseline name with no matrix row.
	ErrBaselineNotInMatrix = errors.New("baseline variant not in matrix")

	// ErrBaselineMissing reports a file the baseline has no measurement for.
	ErrBaselineMissing = errors.New("baseline measurement missing")
)

// ColumnMismatchError names the first cell that breaks column agreement.
type ColumnMismatchError struct {
	Variant   string
	Reference string
	File      string
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("%s: variant %q and %q disagree on file %q", ErrColumnMismatch, e.Variant, e.Reference, e.File)
}

func (e *ColumnMismatchError) Is(target error) bool {
	return target == ErrColumnMismatch
}

// BaselineMissingError names the file without a baseline measurement.
type BaselineMissingError struct {
	Baseline string
	File     string
	// Cause is the failure recorded in the baseline cell, nil when empty.
	Cause error
}

func (e *BaselineMissingError) Error() string {
	msg := fmt.Sprintf("baseline %q has no measurement for file %q", e.Baseline, e.File)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *BaselineMissingError) Is(target error) bool {
	return target == ErrBaselineMissing
}

func (e *BaselineMissingError) Unwrap() error {
	return e.Cause
}

// Validate checks that every variant populated the same set of files.
func (m *Matrix) Validate() error {
	if len(m.cells) == 0 {
		return nil
	}
	ref := m.cells[0]
	for vi := 1; vi < len(m.cells); vi++ {
		for fi, c := range m.cells[vi] {
			if c.Populated() != ref[fi].Populated() {
				return &ColumnMismatchError{Variant: m.variants[vi], Reference: m.variants[0], File: m.files[fi]}
			}
		}
	}
	return nil
}

// Normalize returns a new matrix where every measured cell is divided by the
// baseline's measurement for the same file. Failed and empty cells are
// carried over unchanged. A zero baseline value yields an infinity carrying
// the numerator's sign (+Inf for 0/0) rather than an error.
func (m *Matrix) Normalize(baseline string) (*Matrix, error) {
	bi, ok := m.vIndex[baseline]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBaselineNotInMatrix, baseline)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	base := m.cells[bi]
	for fi, c := range base {
		if c.State == Measured {
			continue
		}
		if m.columnPopulated(fi) {
			return nil, &BaselineMissingError{Baseline: baseline, File: m.files[fi], Cause: c.Err}
		}
	}

	out := m.Clone()
	for _, row := range out.cells {
		for fi := range row {
			if row[fi].State != Measured {
				continue
			}
			ref := base[fi].Measurement
			row[fi].Measurement = Measurement{
				Power: ratio(row[fi].Measurement.Power, ref.Power),
				Floor: ratio(row[fi].Measurement.Floor, ref.Floor),
			}
		}
	}
	return out, nil
}

// columnPopulated reports whether any variant measured or failed file fi.
// A failure counts: a file that failed everywhere still needs a baseline.
func (m *Matrix) columnPopulated(fi int) bool {
	for _, row := range m.cells {
		if row[fi].Populated() {
			return true
		}
	}
	return false
}

func ratio(num, den float64) float64 {
	if den != 0 {
		return num / den
	}
	if math.IsNaN(num) {
		return num
	}
	if num < 0 {
		return math.Inf(-1)
	}
	return math.Inf(1)
}
