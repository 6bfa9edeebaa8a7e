package table

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/noiseablate/internal/matrix"
)

// Code returns the column code of the i-th file: A..Z, then AA, AB, ...
func Code(i int) string {
	var b []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		b = append(b, byte('A'+(n-1)%26))
	}
	for l, r := 0, len(b)-1; l < r; l, r = l+1, r-1 {
		b[l], b[r] = b[r], b[l]
	}
	return string(b)
}

// Codes returns the first n column codes.
func Codes(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = Code(i)
	}
	return out
}

// Legend writes one "CODE: name" line per file.
func Legend(w io.Writer, files []string) error {
	var b strings.Builder
	for i, f := range files {
		fmt.Fprintf(&b, "%s: %s\n", Code(i), f)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Failures writes one line per failed cell. Nothing is written when there
// are none.
func Failures(w io.Writer, failures []matrix.Failure) error {
	var b strings.Builder
	for _, f := range failures {
		fmt.Fprintf(&b, "FAILED %s / %s: %v\n", f.Variant, f.File, f.Err)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
