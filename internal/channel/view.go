// Package channel holds the in-memory representation of one coarse channel:
// a rows x columns block of power samples, a parallel flag mask and the
// device the block is bound to.
package channel

import (
	"fmt"
)

// Meta carries the frequency/time axis description of a view.
type Meta struct {
	CoarseChannel int     `json:"coarse_channel"`
	FirstFreqMHz  float64 `json:"fch1"`
	FreqStepMHz   float64 `json:"foff"`
	SampleTimeSec float64 `json:"tsamp"`
	SourceName    string  `json:"source_name,omitempty"`
}

// Integrations estimates how many raw spectra were accumulated per sample
// from the time and frequency resolution. Returns 0 when unknown.
func (m Meta) Integrations() int {
	n := m.SampleTimeSec * m.FreqStepMHz * 1e6
	if n < 0 {
		n = -n
	}
	return int(n + 0.5)
}

// View is a rows x cols block stored row-major. Mask[i] marks Data[i] as
// flagged. Steps never mutate a view they receive; they return a new one.
type View struct {
	Rows   int
	Cols   int
	Data   []float32
	Mask   []bool
	Device Device
	Meta   Meta
}

// New allocates a zeroed, unflagged view bound to the CPU.
func New(rows, cols int) *View {
	return &View{
		Rows:   rows,
		Cols:   cols,
		Data:   make([]float32, rows*cols),
		Mask:   make([]bool, rows*cols),
		Device: CPU,
	}
}

// FromRows builds a view from equal-length rows.
func FromRows(rows [][]float32) (*View, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("view needs at least one row")
	}
	cols := len(rows[0])
	v := New(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", r, len(row), cols)
		}
		copy(v.Data[r*cols:], row)
	}
	return v, nil
}

// Validate checks buffer sizes against the declared shape.
func (v *View) Validate() error {
	if v.Rows <= 0 || v.Cols <= 0 {
		return fmt.Errorf("view shape %dx%d is empty", v.Rows, v.Cols)
	}
	if len(v.Data) != v.Rows*v.Cols {
		return fmt.Errorf("view data has %d samples, shape %dx%d needs %d", len(v.Data), v.Rows, v.Cols, v.Rows*v.Cols)
	}
	if len(v.Mask) != len(v.Data) {
		return fmt.Errorf("view mask has %d entries, data has %d", len(v.Mask), len(v.Data))
	}
	return nil
}

// Clone returns a deep copy.
func (v *View) Clone() *View {
	out := *v
	out.Data = append([]float32(nil), v.Data...)
	out.Mask = append([]bool(nil), v.Mask...)
	return &out
}

// WithMask returns a copy sharing Data with v but owning a fresh mask.
// Flaggers use it since they only touch the mask.
func (v *View) WithMask() *View {
	out := *v
	out.Mask = append([]bool(nil), v.Mask...)
	return &out
}

// At returns the sample at (row, col).
func (v *View) At(row, col int) float32 {
	return v.Data[row*v.Cols+col]
}

// Row returns the samples of one row. The slice aliases the view.
func (v *View) Row(r int) []float32 {
	return v.Data[r*v.Cols : (r+1)*v.Cols]
}

// Columns copies columns [lower, upper) into a new view.
func (v *View) Columns(lower, upper int) (*View, error) {
	if lower < 0 || upper > v.Cols || lower >= upper {
		return nil, fmt.Errorf("column range [%d, %d) outside view with %d columns", lower, upper, v.Cols)
	}
	width := upper - lower
	out := &View{
		Rows:   v.Rows,
		Cols:   width,
		Data:   make([]float32, v.Rows*width),
		Mask:   make([]bool, v.Rows*width),
		Device: v.Device,
		Meta:   v.Meta,
	}
	out.Meta.FirstFreqMHz = v.Meta.FirstFreqMHz + float64(lower)*v.Meta.FreqStepMHz
	for r := 0; r < v.Rows; r++ {
		copy(out.Data[r*width:], v.Data[r*v.Cols+lower:r*v.Cols+upper])
		copy(out.Mask[r*width:], v.Mask[r*v.Cols+lower:r*v.Cols+upper])
	}
	return out, nil
}

// FlagColumn marks every row of column c.
func (v *View) FlagColumn(c int) {
	for r := 0; r < v.Rows; r++ {
		v.Mask[r*v.Cols+c] = true
	}
}

// Flagged returns the number of masked samples.
func (v *View) Flagged() int {
	n := 0
	for _, m := range v.Mask {
		if m {
			n++
		}
	}
	return n
}

// Samples returns all samples as float64, optionally dropping flagged ones.
func (v *View) Samples(skipFlagged bool) []float64 {
	out := make([]float64, 0, len(v.Data))
	for i, x := range v.Data {
		if skipFlagged && v.Mask[i] {
			continue
		}
		out = append(out, float64(x))
	}
	return out
}

// BindDevice returns a copy bound to d. Data is shared until a step writes.
func (v *View) BindDevice(d Device) *View {
	out := *v
	out.Device = d
	return &out
}
