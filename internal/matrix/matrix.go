// Package matrix holds the variant x file result matrix and its
// normalization against a baseline variant.
//
// Cells are stored densely and addressed through read-only indexes, so
// concurrent writers to distinct cells need no locking.
package matrix

import (
	"fmt"
)

// Measurement is the (power, floor) pair one variant produced for one file.
type Measurement struct {
	Power float64 `json:"power"`
	Floor float64 `json:"floor"`
}

// Quantity selects one half of a Measurement.
type Quantity string

const (
	Power Quantity = "power"
	Floor Quantity = "floor"
)

// Of returns the selected value of ms.
func (q Quantity) Of(ms Measurement) float64 {
	if q == Floor {
		return ms.Floor
	}
	return ms.Power
}

// State describes what a cell holds.
type State int

const (
	Empty State = iota
	Measured
	Failed
)

func (s State) String() string {
	switch s {
	case Measured:
		return "measured"
	case Failed:
		return "failed"
	default:
		return "empty"
	}
}

// Cell is one slot of the matrix.
type Cell struct {
	State       State
	Measurement Measurement
	Err         error
}

// Populated reports whether the cell was written, successfully or not.
func (c Cell) Populated() bool {
	return c.State != Empty
}

// Failure locates a failed cell.
type Failure struct {
	Variant string
	File    string
	Err     error
}

// Matrix maps variant name -> file name -> Cell with fixed row and column
// order.
type Matrix struct {
	variants []string
	files    []string
	vIndex   map[string]int
	fIndex   map[string]int
	cells    [][]Cell
}

// New allocates an empty matrix. Names must be non-empty and unique per axis.
func New(variants, files []string) (*Matrix, error) {
	vIndex, err := index("variant", variants)
	if err != nil {
		return nil, err
	}
	fIndex, err := index("file", files)
	if err != nil {
		return nil, err
	}
	cells := make([][]Cell, len(variants))
	for i := range cells {
		cells[i] = make([]Cell, len(files))
	}
	return &Matrix{
		variants: append([]string(nil), variants...),
		files:    append([]string(nil), files...),
		vIndex:   vIndex,
		fIndex:   fIndex,
		cells:    cells,
	}, nil
}

func index(axis string, names []string) (map[string]int, error) {
	out := make(map[string]int, len(names))
	for i, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%s name at position %d is empty", axis, i)
		}
		if _, dup := out[n]; dup {
			return nil, fmt.Errorf("duplicate %s name %q", axis, n)
		}
		out[n] = i
	}
	return out, nil
}

// Variants returns row names in order.
func (m *Matrix) Variants() []string {
	return append([]string(nil), m.variants...)
}

// Files returns column names in order.
func (m *Matrix) Files() []string {
	return append([]string(nil), m.files...)
}

// Shape returns the number of variants and files.
func (m *Matrix) Shape() (variants, files int) {
	return len(m.variants), len(m.files)
}

// HasVariant reports whether name is a row of the matrix.
func (m *Matrix) HasVariant(name string) bool {
	_, ok := m.vIndex[name]
	return ok
}

func (m *Matrix) locate(variant, file string) (int, int, error) {
	vi, ok := m.vIndex[variant]
	if !ok {
		return 0, 0, fmt.Errorf("variant %q not in matrix", variant)
	}
	fi, ok := m.fIndex[file]
	if !ok {
		return 0, 0, fmt.Errorf("file %q not in matrix", file)
	}
	return vi, fi, nil
}

// Set stores a measurement.
func (m *Matrix) Set(variant, file string, ms Measurement) error {
	vi, fi, err := m.locate(variant, file)
	if err != nil {
		return err
	}
	m.cells[vi][fi] = Cell{State: Measured, Measurement: ms}
	return nil
}

// Fail records a failed cell.
func (m *Matrix) Fail(variant, file string, cause error) error {
	vi, fi, err := m.locate(variant, file)
	if err != nil {
		return err
	}
	m.cells[vi][fi] = Cell{State: Failed, Err: cause}
	return nil
}

// Get returns the cell at (variant, file). ok is false when either name is
// unknown.
func (m *Matrix) Get(variant, file string) (Cell, bool) {
	vi, fi, err := m.locate(variant, file)
	if err != nil {
		return Cell{}, false
	}
	return m.cells[vi][fi], true
}

// Row returns a copy of one variant's cells in file order.
func (m *Matrix) Row(variant string) ([]Cell, bool) {
	vi, ok := m.vIndex[variant]
	if !ok {
		return nil, false
	}
	return append([]Cell(nil), m.cells[vi]...), true
}

// Complete reports whether every cell is populated.
func (m *Matrix) Complete() bool {
	for _, row := range m.cells {
		for _, c := range row {
			if !c.Populated() {
				return false
			}
		}
	}
	return true
}

// Failures lists failed cells in row-major order.
func (m *Matrix) Failures() []Failure {
	var out []Failure
	for vi, row := range m.cells {
		for fi, c := range row {
			if c.State == Failed {
				out = append(out, Failure{Variant: m.variants[vi], File: m.files[fi], Err: c.Err})
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{
		variants: m.variants,
		files:    m.files,
		vIndex:   m.vIndex,
		fIndex:   m.fIndex,
		cells:    make([][]Cell, len(m.cells)),
	}
	for i, row := range m.cells {
		out.cells[i] = append([]Cell(nil), row...)
	}
	return out
}
