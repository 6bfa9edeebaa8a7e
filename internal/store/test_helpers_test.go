package store

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/testutil"
	"github.com/roach88/noiseablate/internal/variant"
)

// createTestStore opens a store in a temp dir with deterministic IDs and
// timestamps.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	opts = append([]Option{
		WithIDGenerator(testutil.NewFixedIDGenerator()),
		WithClock(testutil.NewDeterministicClock().Now),
	}, opts...)
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun builds a two-variant, two-file run with one failed cell,
// one NaN and one infinity.
func createTestRun(t *testing.T) *Run {
	t.Helper()
	all, err := variant.Default(variant.DefaultParams())
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	reg, err := all.Select("bliss_sk", "corrected_slice")
	if err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	files := []FileRef{
		{Name: "voyager", Path: "/data/voyager.fil", CoarseChannel: 0},
		{Name: "synthetic", Path: "/data/synthetic.fil", CoarseChannel: 3},
	}
	m, err := matrix.New(reg.Names(), []string{"voyager", "synthetic"})
	if err != nil {
		t.Fatalf("matrix.New() failed: %v", err)
	}
	mustNoError(t, m.Fail("bliss_sk", "voyager", errors.New("variant bliss_sk, entry voyager: step flag-spectral-kurtosis: boom")))
	mustNoError(t, m.Set("bliss_sk", "synthetic", matrix.Measurement{Power: math.NaN(), Floor: math.Inf(1)}))
	mustNoError(t, m.Set("corrected_slice", "voyager", matrix.Measurement{Power: 2, Floor: 10}))
	mustNoError(t, m.Set("corrected_slice", "synthetic", matrix.Measurement{Power: 0.5, Floor: 4}))

	return &Run{
		ManifestSource: "noise_files.yaml",
		ManifestHash:   "m-hash",
		CatalogueHash:  "c-hash",
		Baseline:       variant.DefaultBaseline,
		Normalized:     true,
		Device:         "cpu",
		Library:        "native",
		Variants:       reg.List(),
		Files:          files,
		Matrix:         m,
	}
}

func mustNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
