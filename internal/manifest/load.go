package manifest

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// document is the on-disk shape of one entry.
type document struct {
	Name          string    `yaml:"name"`
	Path          string    `yaml:"path"`
	NFPC          int       `yaml:"nfpc"`
	CoarseChannel int       `yaml:"coarse_channel"`
	NoiseSlice    Range     `yaml:"noise_slice"`
	PFBShape      []float64 `yaml:"pfb_shape"`
}

type loadOptions struct {
	source     string
	baseDir    string
	searchPath []string
}

// Option configures manifest loading.
type Option func(*loadOptions)

// WithSearchPath adds directories tried, in order, for relative data paths
// that do not exist next to the manifest.
func WithSearchPath(dirs ...string) Option {
	return func(o *loadOptions) {
		o.searchPath = append(o.searchPath, dirs...)
	}
}

// WithBaseDir sets the directory relative data paths resolve against.
func WithBaseDir(dir string) Option {
	return func(o *loadOptions) {
		o.baseDir = dir
	}
}

// WithSource names the input in error messages.
func WithSource(name string) Option {
	return func(o *loadOptions) {
		o.source = name
	}
}

// Load reads and validates a JSON or YAML manifest file.
// Relative data paths resolve against the manifest's directory.
func Load(path string, opts ...Option) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	all := append([]Option{WithSource(path), WithBaseDir(filepath.Dir(path))}, opts...)
	return Parse(data, all...)
}

// Parse validates manifest bytes. The whole document is rejected on the first
// problem; data files are never opened.
func Parse(data []byte, opts ...Option) (*Manifest, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	malformed := func(line int, entry, field, reason string) error {
		return &MalformedManifestError{File: o.source, Line: line, Entry: entry, Field: field, Reason: reason}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, malformed(0, "", "", err.Error())
	}
	if len(root.Content) == 0 {
		return nil, malformed(0, "", "", "manifest is empty")
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, malformed(top.Line, "", "", "top level must map entry keys to entries")
	}
	if len(top.Content) == 0 {
		return nil, malformed(top.Line, "", "", "manifest has no entries")
	}

	// Strict decode rejects unknown fields and type mismatches.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var docs map[string]document
	if err := dec.Decode(&docs); err != nil {
		return nil, malformed(0, "", "", err.Error())
	}

	lines := make(map[string]int, len(top.Content)/2)
	for i := 0; i+1 < len(top.Content); i += 2 {
		lines[top.Content[i].Value] = top.Content[i].Line
	}

	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, malformed(0, "", "", err.Error())
	}
	if err := validateSchema(generic); err != nil {
		err.File = o.source
		err.Line = lines[err.Entry]
		return nil, err
	}

	m := &Manifest{Source: o.source}
	seen := make(map[string]string, len(docs))
	for i := 0; i+1 < len(top.Content); i += 2 {
		key := top.Content[i].Value
		d := docs[key]
		name := d.Name
		if name == "" {
			name = key
		}
		if other, dup := seen[name]; dup {
			return nil, malformed(top.Content[i].Line, key, "name",
				fmt.Sprintf("display name %q already used by entry %q", name, other))
		}
		seen[name] = key

		m.Entries = append(m.Entries, Entry{
			Key:                   key,
			Name:                  name,
			Path:                  resolvePath(d.Path, o.baseDir, o.searchPath),
			FineChannelsPerCoarse: d.NFPC,
			CoarseChannel:         d.CoarseChannel,
			SignalFree:            d.NoiseSlice,
			Passband:              d.PFBShape,
			Line:                  top.Content[i].Line,
		})
	}
	return m, nil
}

// validateSchema unifies the document with #Manifest and reports the first
// violation.
func validateSchema(doc map[string]any) *MalformedManifestError {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return &MalformedManifestError{Reason: fmt.Sprintf("schema: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Manifest"))

	v := def.Unify(ctx.Encode(doc))
	err := v.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &MalformedManifestError{Reason: err.Error()}
	}
	first := errs[0]

	var path []string
	for _, p := range first.Path() {
		if !strings.HasPrefix(p, "#") {
			path = append(path, p)
		}
	}
	out := &MalformedManifestError{}
	if len(path) > 0 {
		out.Entry = path[0]
		out.Field = strings.Join(path[1:], ".")
	}

	format, args := first.Msg()
	reason := fmt.Sprintf(format, args...)
	if strings.HasPrefix(reason, "incomplete value") {
		reason = "required field is missing"
	}
	out.Reason = reason
	return out
}

func resolvePath(p, baseDir string, search []string) string {
	if filepath.IsAbs(p) {
		return p
	}
	first := filepath.Join(baseDir, p)
	if len(search) == 0 {
		return first
	}
	if _, err := os.Stat(first); err == nil {
		return first
	}
	for _, dir := range search {
		candidate := filepath.Join(dir, p)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return first
}
