package manifest

import (
	"github.com/roach88/noiseablate/internal/digest"
)

// Range is a half-open column range [Lower, Upper).
type Range struct {
	Lower int `yaml:"lower" json:"lower"`
	Upper int `yaml:"upper" json:"upper"`
}

// Width returns the number of columns in the range.
func (r Range) Width() int {
	return r.Upper - r.Lower
}

// Entry describes one recording to measure. Entries are immutable after Load.
type Entry struct {
	// Key is the manifest mapping key.
	Key string

	// Name labels the entry in tables and the archive.
	Name string

	// Path is the resolved data file location.
	Path string

	// FineChannelsPerCoarse is the channelization factor of the file.
	FineChannelsPerCoarse int

	// CoarseChannel selects the coarse channel to read.
	CoarseChannel int

	// SignalFree is the column range known to hold no signal.
	SignalFree Range

	// Passband holds the optional filterbank response used by passband
	// correction. Nil when the manifest has no pfb_shape for the entry.
	Passband []float64

	// Line is the manifest line of the entry key, 0 when unknown.
	Line int
}

// HasPassband reports whether passband correction can be applied.
func (e Entry) HasPassband() bool {
	return len(e.Passband) > 0
}

// Manifest is an ordered list of entries.
type Manifest struct {
	Source  string
	Entries []Entry
}

// Names returns entry display names in manifest order.
func (m *Manifest) Names() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Name
	}
	return out
}

// Fingerprint hashes the entry definitions. File contents are not read.
func (m *Manifest) Fingerprint() (string, error) {
	items := make([]any, len(m.Entries))
	for i, e := range m.Entries {
		item := map[string]any{
			"key":            e.Key,
			"name":           e.Name,
			"path":           e.Path,
			"nfpc":           e.FineChannelsPerCoarse,
			"coarse_channel": e.CoarseChannel,
			"noise_slice":    []any{e.SignalFree.Lower, e.SignalFree.Upper},
		}
		if e.HasPassband() {
			item["pfb_shape"] = e.Passband
		}
		items[i] = item
	}
	return digest.Sum(digest.DomainManifest, items)
}
