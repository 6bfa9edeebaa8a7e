package variant

import (
	"errors"
	"fmt"

	"github.com/roach88/noiseablate/internal/digest"
)

// ErrUnknownVariant is matched by every *UnknownVariantError.
var ErrUnknownVariant = errors.New("unknown variant")

// UnknownVariantError reports a lookup of a variant that is not registered.
type UnknownVariantError struct {
	Name string
}

func (e *UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown variant %q", e.Name)
}

func (e *UnknownVariantError) Is(target error) bool {
	return target == ErrUnknownVariant
}

// IsUnknownVariant reports whether err is an unknown variant lookup.
func IsUnknownVariant(err error) bool {
	var uv *UnknownVariantError
	return errors.As(err, &uv)
}

// Registry is an ordered, immutable catalogue of variants.
// Safe for concurrent reads.
type Registry struct {
	specs []Spec
	index map[string]int
}

// New builds a registry in the given order. Duplicate names and invalid
// definitions are rejected.
func New(specs ...Spec) (*Registry, error) {
	r := &Registry{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := r.index[s.Name]; dup {
			return nil, fmt.Errorf("duplicate variant %q", s.Name)
		}
		r.index[s.Name] = len(r.specs)
		r.specs = append(r.specs, s.clone())
	}
	return r, nil
}

// List returns the variants in catalogue order.
func (r *Registry) List() []Spec {
	out := make([]Spec, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.clone()
	}
	return out
}

// Names returns variant names in catalogue order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.specs))
	for i, s := range r.specs {
		out[i] = s.Name
	}
	return out
}

// Len returns the number of registered variants.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Get looks up a variant by name.
func (r *Registry) Get(name string) (Spec, error) {
	i, ok := r.index[name]
	if !ok {
		return Spec{}, &UnknownVariantError{Name: name}
	}
	return r.specs[i].clone(), nil
}

// Select returns a sub-catalogue containing the named variants, kept in
// catalogue order regardless of argument order.
func (r *Registry) Select(names ...string) (*Registry, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.index[n]; !ok {
			return nil, &UnknownVariantError{Name: n}
		}
		want[n] = true
	}
	var picked []Spec
	for _, s := range r.specs {
		if want[s.Name] {
			picked = append(picked, s)
		}
	}
	return New(picked...)
}

// Fingerprint returns a content hash of the catalogue definition.
func (r *Registry) Fingerprint() (string, error) {
	items := make([]any, len(r.specs))
	for i, s := range r.specs {
		steps := make([]any, len(s.Steps))
		for j, st := range s.Steps {
			steps[j] = map[string]any{
				"kind":             string(st.Kind),
				"rolloff_fraction": st.RolloffFraction,
				"sk":               []float64{st.SK.Lower, st.SK.Upper},
				"clip":             []any{st.Clip.Iterations, st.Clip.Lower, st.Clip.Upper},
			}
		}
		items[i] = map[string]any{
			"name":   s.Name,
			"label":  s.Label,
			"method": string(s.Method),
			"region": string(s.Region),
			"steps":  steps,
			"clip":   []any{s.Clip.Sigma, s.Clip.MaxIters, s.Clip.Center},
		}
	}
	return digest.Sum(digest.DomainCatalogue, items)
}
