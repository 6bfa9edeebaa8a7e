// Package table renders a result matrix as a typeset comparison table: one
// row per variant with its category checkmarks, one column per file under a
// short letter code, plus a legend mapping codes to file names.
package table

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/variant"
)

// Style selects the output syntax.
type Style string

const (
	StyleLaTeX    Style = "latex"
	StyleMarkdown Style = "markdown"
)

// ParseStyle accepts "latex" (also the empty string) and "markdown".
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "latex", "tex":
		return StyleLaTeX, nil
	case "markdown", "md":
		return StyleMarkdown, nil
	default:
		return "", fmt.Errorf("unknown table style %q (want latex or markdown)", s)
	}
}

// Cell sentinels.
const (
	NaN   = "NaN"
	Blank = "--"
)

// Row is one rendered variant.
type Row struct {
	Variant    string             `json:"variant"`
	Label      string             `json:"label"`
	Categories variant.Categories `json:"categories"`
	Cells      []string           `json:"cells"`
}

// Table is a formatted, style-independent table.
type Table struct {
	Quantity matrix.Quantity `json:"quantity"`
	Codes    []string        `json:"codes"`
	Files    []string        `json:"files"`
	Rows     []Row           `json:"rows"`
}

// Build formats every cell of m for quantity q. Row labels and checkmarks
// come from reg; every matrix variant must be registered.
func Build(m *matrix.Matrix, reg *variant.Registry, q matrix.Quantity) (*Table, error) {
	files := m.Files()
	t := &Table{
		Quantity: q,
		Codes:    Codes(len(files)),
		Files:    files,
	}
	for _, name := range m.Variants() {
		spec, err := reg.Get(name)
		if err != nil {
			return nil, err
		}
		cells, _ := m.Row(name)
		row := Row{
			Variant:    name,
			Label:      spec.Label,
			Categories: spec.Categories(),
			Cells:      make([]string, len(cells)),
		}
		for i, c := range cells {
			row.Cells[i] = FormatCell(c, q)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// FormatCell renders one cell with three decimals. Failed cells print NaN.
func FormatCell(c matrix.Cell, q matrix.Quantity) string {
	switch c.State {
	case matrix.Failed:
		return NaN
	case matrix.Empty:
		return Blank
	}
	return FormatValue(q.Of(c.Measurement))
}

// FormatValue prints x with three decimals, NaN as "NaN" and infinities as
// "inf" / "-inf".
func FormatValue(x float64) string {
	switch {
	case math.IsNaN(x):
		return NaN
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	return strconv.FormatFloat(x, 'f', 3, 64)
}

// Render builds and writes the table in one call.
func Render(w io.Writer, m *matrix.Matrix, reg *variant.Registry, q matrix.Quantity, style Style) error {
	t, err := Build(m, reg, q)
	if err != nil {
		return err
	}
	return t.Write(w, style)
}

// Write emits the table in the given style.
func (t *Table) Write(w io.Writer, style Style) error {
	var b strings.Builder
	switch style {
	case StyleLaTeX, "":
		t.latex(&b)
	case StyleMarkdown:
		t.markdown(&b)
	default:
		return fmt.Errorf("unknown table style %q", style)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

const (
	latexHeader = " description    & rolloff    & spec kurt  & sigmaclip  & pfb correct&"
	latexMark   = " \\checkmark "
	latexEmpty  = "            "
	latexEOL    = "\\\\\n"
)

func (t *Table) latex(b *strings.Builder) {
	b.WriteString(latexHeader)
	for _, code := range t.Codes {
		fmt.Fprintf(b, "& %s     ", code)
	}
	b.WriteString(latexEOL)

	for _, row := range t.Rows {
		fmt.Fprintf(b, " %-16s", row.Label)
		for _, on := range marks(row.Categories) {
			b.WriteString("&")
			if on {
				b.WriteString(latexMark)
			} else {
				b.WriteString(latexEmpty)
			}
		}
		b.WriteString("&")
		for _, cell := range row.Cells {
			fmt.Fprintf(b, "& %s ", cell)
		}
		b.WriteString(latexEOL)
	}
}

func (t *Table) markdown(b *strings.Builder) {
	head := []string{"description", "rolloff", "spec kurt", "sigmaclip", "pfb correct"}
	head = append(head, t.Codes...)
	writeMarkdownRow(b, head)

	sep := make([]string, len(head))
	for i := range sep {
		if i < 5 {
			sep[i] = "---"
		} else {
			sep[i] = "--:"
		}
	}
	writeMarkdownRow(b, sep)

	for _, row := range t.Rows {
		cols := []string{row.Label}
		for _, on := range marks(row.Categories) {
			if on {
				cols = append(cols, "✓")
			} else {
				cols = append(cols, "")
			}
		}
		cols = append(cols, row.Cells...)
		writeMarkdownRow(b, cols)
	}
}

func writeMarkdownRow(b *strings.Builder, cols []string) {
	b.WriteString("|")
	for _, c := range cols {
		b.WriteString(" ")
		b.WriteString(c)
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func marks(c variant.Categories) [4]bool {
	return [4]bool{c.Rolloff, c.SpectralKurtosis, c.SigmaClip, c.Passband}
}
