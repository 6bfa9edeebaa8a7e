package synth

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/manifest"
	"github.com/roach88/noiseablate/internal/noise"
)

func smallOptions() Options {
	o := DefaultOptions()
	o.Channels = 4096
	return o
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(smallOptions())
	require.NoError(t, err)
	b, err := Generate(smallOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)

	o := smallOptions()
	o.Seed = 7
	c, err := Generate(o)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerate_MatchesChiSquareMoments(t *testing.T) {
	o := smallOptions()
	data, err := Generate(o)
	require.NoError(t, err)
	require.Len(t, data, 16*4096)

	xs := make([]float64, len(data))
	for i, x := range data {
		xs[i] = float64(x)
	}
	mean, std := noise.MeanStd(xs)
	wantMean, wantStd := o.Expected()
	assert.Equal(t, 204, o.DegreesOfFreedom())
	assert.InDelta(t, wantMean, mean, 0.5)
	assert.InDelta(t, wantStd, std, 0.5)
}

func TestGenerate_Tone(t *testing.T) {
	o := smallOptions()
	plain, err := Generate(o)
	require.NoError(t, err)

	o.Tone = &Tone{Channel: 100, Drift: 2, SNR: 50}
	toned, err := Generate(o)
	require.NoError(t, err)

	_, std := o.Expected()
	for ts := 0; ts < o.Spectra; ts++ {
		i := ts*o.Channels + 100 + 2*ts
		assert.InDelta(t, float64(plain[i])+50*std, float64(toned[i]), 1e-2)
	}
	assert.Equal(t, plain[5], toned[5])
	assert.Equal(t, manifest.Range{Lower: 2048, Upper: 4096}, o.NoiseSlice())
}

func TestGenerate_RejectsBadOptions(t *testing.T) {
	for name, mutate := range map[string]func(*Options){
		"spectra":      func(o *Options) { o.Spectra = 0 },
		"channels":     func(o *Options) { o.Channels = -1 },
		"integrations": func(o *Options) { o.Integrations = 0 },
		"foff":         func(o *Options) { o.FOff = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			o := smallOptions()
			mutate(&o)
			_, err := Generate(o)
			assert.Error(t, err)
		})
	}
}

func TestWriteFile_LoadsThroughManifest(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	o := smallOptions()
	path := filepath.Join(dir, "chisq.fil")
	require.NoError(t, WriteFile(path, o))

	snippet, err := ManifestSnippet("synthetic", "chisq.fil", o)
	require.NoError(t, err)
	mpath := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(mpath, snippet, 0o644))

	m, err := manifest.Load(mpath)
	require.NoError(t, err)
	require.Len(t, m.Entries, 1)
	e := m.Entries[0]
	assert.Equal(t, DefaultSource, e.Name)
	assert.Equal(t, path, e.Path)
	assert.Equal(t, manifest.Range{Lower: 0, Upper: 2048}, e.SignalFree)

	scan, err := library.NewNative().OpenScan(ctx, e.Path, e.FineChannelsPerCoarse)
	require.NoError(t, err)
	defer scan.Close()
	v, err := scan.ReadChannel(ctx, e.CoarseChannel)
	require.NoError(t, err)
	assert.Equal(t, 16, v.Rows)
	assert.Equal(t, DefaultIntegrations, v.Meta.Integrations())
	assert.Equal(t, DefaultSource, v.Meta.SourceName)
}
