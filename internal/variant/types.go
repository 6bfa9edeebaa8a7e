package variant

import (
	"fmt"
)

// StepKind names one preprocessing or flagging step.
type StepKind string

// Step kinds understood by the runner.
const (
	StepNone                     StepKind = "none"
	StepPassbandCorrect          StepKind = "passband-correct"
	StepFlagRolloff              StepKind = "flag-rolloff"
	StepFlagSpectralKurtosis     StepKind = "flag-spectral-kurtosis"
	StepFlagSigmaClip            StepKind = "flag-sigma-clip"
	StepFlagSpectralKurtosisClip StepKind = "flag-spectral-kurtosis+sigma-clip"
)

// Method selects how the final view is reduced to a measurement.
type Method string

const (
	// MethodRaw takes population std and mean of the raw samples.
	MethodRaw Method = "raw"

	// MethodLibrary uses the library's masked noise estimator.
	MethodLibrary Method = "library"

	// MethodTurboSETI reproduces turboSETI's percentile-trimmed statistics.
	MethodTurboSETI Method = "turboseti"

	// MethodSetigen reproduces setigen's sigma-clipped statistics.
	MethodSetigen Method = "setigen"
)

// Region selects which columns a raw measurement covers.
type Region string

const (
	RegionFull       Region = "full"
	RegionSignalFree Region = "signal-free"
)

// SpectralKurtosis holds the accepted SK band. Columns whose estimator falls
// outside [Lower, Upper] are flagged.
type SpectralKurtosis struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SigmaClip parameterizes iterative sigma-clip flagging.
type SigmaClip struct {
	Iterations int     `json:"iterations"`
	Lower      float64 `json:"lower"`
	Upper      float64 `json:"upper"`
}

// Clip parameterizes the setigen-style sigma clip estimator.
// MaxIters <= 0 clips until convergence.
type Clip struct {
	Sigma    float64 `json:"sigma"`
	MaxIters int     `json:"max_iters"`
	Center   string  `json:"center"` // "median" | "mean"
}

// Step is one entry in a variant's preprocessing chain.
type Step struct {
	Kind            StepKind         `json:"kind"`
	RolloffFraction float64          `json:"rolloff_fraction,omitempty"`
	SK              SpectralKurtosis `json:"sk"`
	Clip            SigmaClip        `json:"clip"`
}

// Validate checks that the step carries usable parameters for its kind.
func (s Step) Validate() error {
	switch s.Kind {
	case StepNone, StepPassbandCorrect:
		return nil
	case StepFlagRolloff:
		if s.RolloffFraction <= 0 || s.RolloffFraction >= 0.5 {
			return fmt.Errorf("rolloff fraction must be in (0, 0.5), got %v", s.RolloffFraction)
		}
	case StepFlagSpectralKurtosis:
		return s.SK.validate()
	case StepFlagSigmaClip:
		return s.Clip.validate()
	case StepFlagSpectralKurtosisClip:
		if err := s.SK.validate(); err != nil {
			return err
		}
		return s.Clip.validate()
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
	return nil
}

func (sk SpectralKurtosis) validate() error {
	if sk.Lower < 0 || sk.Upper <= sk.Lower {
		return fmt.Errorf("spectral kurtosis band [%v, %v] is empty", sk.Lower, sk.Upper)
	}
	return nil
}

func (c SigmaClip) validate() error {
	if c.Iterations <= 0 {
		return fmt.Errorf("sigma clip iterations must be positive, got %d", c.Iterations)
	}
	if c.Lower <= 0 || c.Upper <= 0 {
		return fmt.Errorf("sigma clip thresholds must be positive, got (%v, %v)", c.Lower, c.Upper)
	}
	return nil
}

// Categories records which ablation axes a variant exercises.
type Categories struct {
	Rolloff          bool `json:"rolloff"`
	SpectralKurtosis bool `json:"spectral_kurtosis"`
	SigmaClip        bool `json:"sigma_clip"`
	Passband         bool `json:"passband"`
}

// Spec is an ablation variant: a named chain of steps plus a measurement method.
type Spec struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Steps  []Step `json:"steps"`
	Method Method `json:"method"`

	// Region applies to MethodRaw only.
	Region Region `json:"region,omitempty"`

	// Clip applies to MethodSetigen only.
	Clip Clip `json:"clip"`
}

// Categories derives the checkmark columns from the step chain.
func (s Spec) Categories() Categories {
	var c Categories
	for _, st := range s.Steps {
		switch st.Kind {
		case StepPassbandCorrect:
			c.Passband = true
		case StepFlagRolloff:
			c.Rolloff = true
		case StepFlagSpectralKurtosis:
			c.SpectralKurtosis = true
		case StepFlagSigmaClip:
			c.SigmaClip = true
		case StepFlagSpectralKurtosisClip:
			c.SpectralKurtosis = true
			c.SigmaClip = true
		}
	}
	return c
}

// Validate checks the variant definition.
func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("variant name is empty")
	}
	switch s.Method {
	case MethodRaw:
		if s.Region != RegionFull && s.Region != RegionSignalFree {
			return fmt.Errorf("variant %s: unknown region %q", s.Name, s.Region)
		}
	case MethodLibrary, MethodTurboSETI:
	case MethodSetigen:
		if s.Clip.Sigma <= 0 {
			return fmt.Errorf("variant %s: clip sigma must be positive", s.Name)
		}
		if s.Clip.Center != "median" && s.Clip.Center != "mean" {
			return fmt.Errorf("variant %s: clip center must be median or mean, got %q", s.Name, s.Clip.Center)
		}
	default:
		return fmt.Errorf("variant %s: unknown method %q", s.Name, s.Method)
	}
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("variant %s: steps[%d]: %w", s.Name, i, err)
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate the catalogue.
func (s Spec) clone() Spec {
	out := s
	out.Steps = append([]Step(nil), s.Steps...)
	return out
}
