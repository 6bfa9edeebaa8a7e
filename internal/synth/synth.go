// Package synth writes synthetic filterbank recordings whose noise statistics
// are known exactly, for checking the estimators.
//
// Each sample is chi-square distributed with 4 degrees of freedom per
// accumulated spectrum (two polarizations, complex voltages), so a file with
// k = 4*integrations has mean k and standard deviation sqrt(2k).
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/noiseablate/internal/filterbank"
	"github.com/roach88/noiseablate/internal/manifest"
)

// Defaults follow the Voyager-1 single coarse channel product.
const (
	DefaultSpectra      = 16
	DefaultChannels     = 1 << 20
	DefaultIntegrations = 51
	DefaultSeed         = 42
	DefaultFCh1         = 8421.38671875
	DefaultFOff         = -2.7939677238464355e-06
	DefaultSource       = "synthetic noise"
)

// Tone is a narrowband signal drifting across channels.
type Tone struct {
	// Channel is the starting channel at spectrum 0.
	Channel float64

	// Drift is channels per spectrum.
	Drift float64

	// SNR is the tone amplitude in noise standard deviations.
	SNR float64
}

// Options configures Generate.
type Options struct {
	Spectra      int
	Channels     int
	Integrations int
	Seed         uint64
	FCh1         float64
	FOff         float64
	Source       string
	Tone         *Tone
}

// DefaultOptions returns the reference synthetic product.
func DefaultOptions() Options {
	return Options{
		Spectra:      DefaultSpectra,
		Channels:     DefaultChannels,
		Integrations: DefaultIntegrations,
		Seed:         DefaultSeed,
		FCh1:         DefaultFCh1,
		FOff:         DefaultFOff,
		Source:       DefaultSource,
	}
}

// DegreesOfFreedom returns 4*Integrations.
func (o Options) DegreesOfFreedom() int {
	return 4 * o.Integrations
}

// Expected returns the population mean and standard deviation of the noise.
func (o Options) Expected() (mean, std float64) {
	k := float64(o.DegreesOfFreedom())
	return k, math.Sqrt(2 * k)
}

// SampleTime is the integration time that makes Integrations spectra per
// sample at the channel width FOff.
func (o Options) SampleTime() float64 {
	return math.Abs(1/(o.FOff*1e6)) * float64(o.Integrations)
}

func (o Options) validate() error {
	switch {
	case o.Spectra <= 0:
		return fmt.Errorf("spectra must be positive, got %d", o.Spectra)
	case o.Channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", o.Channels)
	case o.Integrations <= 0:
		return fmt.Errorf("integrations must be positive, got %d", o.Integrations)
	case o.FOff == 0:
		return fmt.Errorf("foff must be non-zero")
	}
	return nil
}

// Header returns the filterbank header of the generated file.
func (o Options) Header() filterbank.Header {
	return filterbank.Header{
		SourceName:  o.Source,
		TelescopeID: 6,
		DataType:    1,
		NChans:      int32(o.Channels),
		NBits:       32,
		NIFs:        1,
		NBeams:      1,
		FCh1:        o.FCh1,
		FOff:        o.FOff,
		TStart:      59046.92680555556,
		TSamp:       o.SampleTime(),
	}
}

// Generate returns Spectra x Channels samples, row-major. Equal options
// produce equal data.
func Generate(o Options) ([]float32, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	dist := distuv.ChiSquared{
		K:   float64(o.DegreesOfFreedom()),
		Src: rand.NewPCG(o.Seed, o.Seed^0x9e3779b97f4a7c15),
	}
	data := make([]float32, o.Spectra*o.Channels)
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	if o.Tone != nil {
		_, std := o.Expected()
		amp := float32(o.Tone.SNR * std)
		for t := 0; t < o.Spectra; t++ {
			c := int(math.Round(o.Tone.Channel + o.Tone.Drift*float64(t)))
			if c >= 0 && c < o.Channels {
				data[t*o.Channels+c] += amp
			}
		}
	}
	return data, nil
}

// WriteFile generates a recording and writes it to path.
func WriteFile(path string, o Options) error {
	data, err := Generate(o)
	if err != nil {
		return err
	}
	return filterbank.WriteFile(path, o.Header(), data)
}

// NoiseSlice picks the half of the band the tone never enters. Without a tone
// it is the lower half.
func (o Options) NoiseSlice() manifest.Range {
	lower := manifest.Range{Lower: 0, Upper: o.Channels / 2}
	if o.Tone == nil {
		return lower
	}
	first := o.Tone.Channel
	last := o.Tone.Channel + o.Tone.Drift*float64(o.Spectra-1)
	if math.Min(first, last) < float64(o.Channels/2) {
		return manifest.Range{Lower: o.Channels / 2, Upper: o.Channels}
	}
	return lower
}

type manifestEntry struct {
	Name          string         `yaml:"name"`
	Path          string         `yaml:"path"`
	NFPC          int            `yaml:"nfpc"`
	CoarseChannel int            `yaml:"coarse_channel"`
	NoiseSlice    manifest.Range `yaml:"noise_slice"`
}

// ManifestSnippet returns a manifest entry describing the file at path.
func ManifestSnippet(key, path string, o Options) ([]byte, error) {
	return yaml.Marshal(map[string]manifestEntry{
		key: {
			Name:       o.Source,
			Path:       path,
			NFPC:       o.Channels,
			NoiseSlice: o.NoiseSlice(),
		},
	})
}
