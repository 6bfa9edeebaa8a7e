package variant

// DefaultBaseline is the variant every other variant is normalized against.
const DefaultBaseline = "corrected_slice"

// Params holds the numeric parameters shared by the default catalogue.
type Params struct {
	RolloffFraction float64
	SK              SpectralKurtosis
	SigmaClip       SigmaClip
	Setigen         Clip
}

// DefaultParams returns the parameters of the published ablation study.
func DefaultParams() Params {
	return Params{
		RolloffFraction: 0.25,
		SK:              SpectralKurtosis{Lower: 0.05, Upper: 25},
		SigmaClip:       SigmaClip{Iterations: 3, Lower: 4, Upper: 5},
		Setigen:         Clip{Sigma: 3, MaxIters: 5, Center: "median"},
	}
}

// Default builds the fifteen-variant ablation catalogue.
func Default(p Params) (*Registry, error) {
	none := Step{Kind: StepNone}
	passband := Step{Kind: StepPassbandCorrect}
	rolloff := Step{Kind: StepFlagRolloff, RolloffFraction: p.RolloffFraction}
	sk := Step{Kind: StepFlagSpectralKurtosis, SK: p.SK}
	clip := Step{Kind: StepFlagSigmaClip, Clip: p.SigmaClip}
	skClip := Step{Kind: StepFlagSpectralKurtosisClip, SK: p.SK, Clip: p.SigmaClip}

	lib := func(name, label string, steps ...Step) Spec {
		return Spec{Name: name, Label: label, Method: MethodLibrary, Steps: steps}
	}

	return New(
		Spec{Name: "baseline", Label: "baseline", Method: MethodRaw, Region: RegionFull, Steps: []Step{none}},
		Spec{Name: "ts_equiv", Label: "turboseti", Method: MethodTurboSETI, Steps: []Step{none}},
		Spec{Name: "setigen_equiv", Label: "setigen", Method: MethodSetigen, Clip: p.Setigen, Steps: []Step{none}},
		Spec{Name: "baseline_slice", Label: "noise slice", Method: MethodRaw, Region: RegionSignalFree, Steps: []Step{none}},
		lib("bliss_unflagged", "bliss base", none),
		lib("bliss_rolloff", "", rolloff),
		lib("bliss_sk", "", sk),
		lib("bliss_sigmaclip", "", clip),
		lib("bliss_sk_sigmaclip", "", skClip),
		Spec{Name: DefaultBaseline, Label: "corrected slice", Method: MethodRaw, Region: RegionSignalFree, Steps: []Step{passband}},
		lib("bliss_corrected_unflagged", "", passband),
		lib("bliss_corrected_rolloff", "", passband, rolloff),
		lib("bliss_corrected_sk", "", passband, sk),
		lib("bliss_corrected_sigmaclip", "", passband, clip),
		lib("bliss_corrected_sk_sigmaclip", "", passband, skClip),
	)
}
