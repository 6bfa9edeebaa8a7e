// Package testutil provides deterministic clocks and IDs, filterbank and
// manifest fixtures, and a fault-injecting library for tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/noiseablate/internal/filterbank"
)

// ScanSpec describes a synthetic filterbank file.
type ScanSpec struct {
	Source   string
	Spectra  int
	Channels int
	NIFs     int
	FCh1     float64
	FOff     float64
	TSamp    float64

	// Value returns sample (row, channel), row counting spectra*NIFs.
	// Defaults to Ripple.
	Value func(row, ch int) float32
}

// Ripple is a deterministic, non-constant sample pattern around 10.
func Ripple(row, ch int) float32 {
	return 10 + float32((row*7+ch*13)%5) - 2
}

// WriteScan writes a 32-bit filterbank into dir and returns its path.
func WriteScan(t testing.TB, dir, name string, s ScanSpec) string {
	t.Helper()
	if s.NIFs == 0 {
		s.NIFs = 1
	}
	if s.FCh1 == 0 {
		s.FCh1 = 1500
	}
	if s.FOff == 0 {
		s.FOff = -2.7939677238464355e-06
	}
	if s.TSamp == 0 {
		s.TSamp = 18.253611008
	}
	if s.Value == nil {
		s.Value = Ripple
	}
	if s.Source == "" {
		s.Source = strings.TrimSuffix(name, filepath.Ext(name))
	}
	rows := s.Spectra * s.NIFs
	data := make([]float32, 0, rows*s.Channels)
	for r := 0; r < rows; r++ {
		for c := 0; c < s.Channels; c++ {
			data = append(data, s.Value(r, c))
		}
	}
	path := filepath.Join(dir, name)
	err := filterbank.WriteFile(path, filterbank.Header{
		SourceName:  s.Source,
		TelescopeID: 6,
		DataType:    1,
		NChans:      int32(s.Channels),
		NIFs:        int32(s.NIFs),
		NBeams:      1,
		FCh1:        s.FCh1,
		FOff:        s.FOff,
		TStart:      60000,
		TSamp:       s.TSamp,
	}, data)
	require.NoError(t, err)
	return path
}

// ManifestEntry is one entry of a generated manifest.
type ManifestEntry struct {
	Key           string
	Name          string
	Path          string
	NFPC          int
	CoarseChannel int
	Lower, Upper  int
	Passband      []float64
}

// WriteManifest writes a YAML manifest with entries in the given order and
// returns its path.
func WriteManifest(t testing.TB, dir string, entries ...ManifestEntry) string {
	t.Helper()
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s:\n", e.Key)
		if e.Name != "" {
			fmt.Fprintf(&b, "  name: %q\n", e.Name)
		}
		fmt.Fprintf(&b, "  path: %q\n", e.Path)
		fmt.Fprintf(&b, "  nfpc: %d\n", e.NFPC)
		fmt.Fprintf(&b, "  coarse_channel: %d\n", e.CoarseChannel)
		fmt.Fprintf(&b, "  noise_slice: {lower: %d, upper: %d}\n", e.Lower, e.Upper)
		if len(e.Passband) > 0 {
			parts := make([]string, len(e.Passband))
			for i, x := range e.Passband {
				parts[i] = fmt.Sprint(x)
			}
			fmt.Fprintf(&b, "  pfb_shape: [%s]\n", strings.Join(parts, ", "))
		}
	}
	path := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}
