package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/manifest"
	"github.com/roach88/noiseablate/internal/matrix"
	"github.com/roach88/noiseablate/internal/noise"
	"github.com/roach88/noiseablate/internal/variant"
)

// Runner executes a variant catalogue against manifest entries.
type Runner struct {
	lib  library.Library
	reg  *variant.Registry
	opts options
	slot *semaphore.Weighted
}

// Result is the raw, un-normalized outcome of a run.
type Result struct {
	Matrix   *matrix.Matrix
	Started  time.Time
	Duration time.Duration
}

// Failures lists failed cells in variant-major order.
func (r *Result) Failures() []matrix.Failure {
	return r.Matrix.Failures()
}

// New builds a Runner.
func New(lib library.Library, reg *variant.Registry, opts ...Option) *Runner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner{
		lib:  lib,
		reg:  reg,
		opts: o,
		slot: semaphore.NewWeighted(o.deviceSlots),
	}
}

// Run measures every (variant, entry) pair. The returned matrix has one row
// per registered variant and one column per entry; every cell is either a
// measurement or a failure. The error is non-nil only for invalid input or
// context cancellation.
func (r *Runner) Run(ctx context.Context, entries []manifest.Entry) (*Result, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no manifest entries to run")
	}
	files := make([]string, len(entries))
	for i, e := range entries {
		files[i] = e.Name
	}
	specs := r.reg.List()
	m, err := matrix.New(r.reg.Names(), files)
	if err != nil {
		return nil, err
	}

	log := r.opts.logger
	started := time.Now()
	log.Info("run started",
		"variants", len(specs),
		"entries", len(entries),
		"workers", r.opts.workers,
		"device", r.opts.device.String(),
	)

	bases := make([]*channel.View, len(entries))
	loadErrs := make([]error, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.workers)
	for i, e := range entries {
		g.Go(func() error {
			t0 := time.Now()
			bases[i], loadErrs[i] = r.load(gctx, e)
			r.opts.recorder.ObserveLoad(e.Name, time.Since(t0), loadErrs[i])
			if loadErrs[i] != nil {
				log.Warn("entry load failed", "entry", e.Name, "path", e.Path, "error", loadErrs[i])
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.opts.workers)
	for _, spec := range specs {
		for i, e := range entries {
			g.Go(func() error {
				t0 := time.Now()
				ms, err := r.cell(gctx, spec, e, bases[i], loadErrs[i])
				r.opts.recorder.ObserveCell(spec.Name, e.Name, time.Since(t0), err)
				if err != nil {
					log.Warn("cell failed", "variant", spec.Name, "entry", e.Name, "error", err)
					return m.Fail(spec.Name, e.Name, err)
				}
				log.Debug("cell measured",
					"variant", spec.Name,
					"entry", e.Name,
					"power", ms.Power,
					"floor", ms.Floor,
				)
				return m.Set(spec.Name, e.Name, ms)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Matrix: m, Started: started, Duration: time.Since(started)}
	log.Info("run finished",
		"cells", len(specs)*len(entries),
		"failed", len(res.Failures()),
		"duration", res.Duration,
	)
	return res, nil
}

// load opens the entry's recording and reads its target channel.
func (r *Runner) load(ctx context.Context, e manifest.Entry) (*channel.View, error) {
	scan, err := r.open(ctx, e)
	if err != nil {
		return nil, &loadError{step: StepOpenScan, cause: err}
	}
	defer scan.Close()

	v, err := scan.ReadChannel(ctx, e.CoarseChannel)
	if err != nil {
		return nil, &loadError{step: StepReadChannel, cause: err}
	}
	if e.SignalFree.Upper > v.Cols {
		return nil, &loadError{
			step:  StepReadChannel,
			cause: fmt.Errorf("signal-free range [%d, %d) exceeds %d columns", e.SignalFree.Lower, e.SignalFree.Upper, v.Cols),
		}
	}
	return v, nil
}

func (r *Runner) open(ctx context.Context, e manifest.Entry) (library.Scan, error) {
	var lastErr error
	for attempt := 0; attempt <= r.opts.openRetries; attempt++ {
		if attempt > 0 {
			r.opts.logger.Debug("retrying scan open", "entry", e.Name, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.opts.retryDelay):
			}
		}
		scan, err := r.lib.OpenScan(ctx, e.Path, e.FineChannelsPerCoarse)
		if err == nil {
			return scan, nil
		}
		lastErr = err
		if errors.Is(err, fs.ErrNotExist) || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// cell runs one variant against one entry and returns its measurement.
func (r *Runner) cell(ctx context.Context, spec variant.Spec, e manifest.Entry, base *channel.View, loadErr error) (matrix.Measurement, error) {
	fail := func(step string, cause error) (matrix.Measurement, error) {
		return matrix.Measurement{}, &StepFailedError{Variant: spec.Name, Entry: e.Name, Step: step, Cause: cause}
	}
	if loadErr != nil {
		var le *loadError
		if errors.As(loadErr, &le) {
			return fail(le.step, le.cause)
		}
		return fail(StepOpenScan, loadErr)
	}

	if err := r.slot.Acquire(ctx, 1); err != nil {
		return fail(StepBindDevice, err)
	}
	defer r.slot.Release(1)

	v, err := r.lib.BindDevice(ctx, base.Clone(), r.opts.device)
	if err != nil {
		return fail(StepBindDevice, err)
	}
	for _, st := range spec.Steps {
		v, err = r.apply(ctx, v, st, e)
		if err != nil {
			return fail(string(st.Kind), err)
		}
	}
	ms, err := r.measure(ctx, v, spec, e)
	if err != nil {
		return fail(StepMeasure, err)
	}
	return ms, nil
}

func (r *Runner) apply(ctx context.Context, v *channel.View, st variant.Step, e manifest.Entry) (*channel.View, error) {
	switch st.Kind {
	case variant.StepNone:
		return v, nil
	case variant.StepPassbandCorrect:
		if !e.HasPassband() {
			return v, nil
		}
		return r.lib.CorrectPassband(ctx, v, e.Passband)
	case variant.StepFlagRolloff:
		return r.lib.FlagRolloff(ctx, v, st.RolloffFraction)
	case variant.StepFlagSpectralKurtosis:
		return r.lib.FlagSpectralKurtosis(ctx, v, st.SK.Lower, st.SK.Upper)
	case variant.StepFlagSigmaClip:
		return r.lib.FlagSigmaClip(ctx, v, st.Clip.Iterations, st.Clip.Lower, st.Clip.Upper)
	case variant.StepFlagSpectralKurtosisClip:
		v, err := r.lib.FlagSpectralKurtosis(ctx, v, st.SK.Lower, st.SK.Upper)
		if err != nil {
			return nil, err
		}
		return r.lib.FlagSigmaClip(ctx, v, st.Clip.Iterations, st.Clip.Lower, st.Clip.Upper)
	default:
		return nil, fmt.Errorf("unknown step kind %q", st.Kind)
	}
}

func (r *Runner) measure(ctx context.Context, v *channel.View, spec variant.Spec, e manifest.Entry) (matrix.Measurement, error) {
	var (
		s   noise.Stats
		err error
	)
	switch spec.Method {
	case variant.MethodRaw:
		region := v
		if spec.Region == variant.RegionSignalFree {
			region, err = v.Columns(e.SignalFree.Lower, e.SignalFree.Upper)
			if err != nil {
				return matrix.Measurement{}, err
			}
		}
		s, err = noise.Raw(region.Samples(false))
	case variant.MethodLibrary:
		s, err = r.lib.EstimateNoise(ctx, v, noise.Options{UseMask: true, Method: r.opts.estimator})
	case variant.MethodTurboSETI:
		s, err = noise.TurboSETI(v)
	case variant.MethodSetigen:
		s, err = noise.Setigen(v, noise.ClipOptions{
			Sigma:    spec.Clip.Sigma,
			MaxIters: spec.Clip.MaxIters,
			Center:   spec.Clip.Center,
		})
	default:
		err = fmt.Errorf("unknown method %q", spec.Method)
	}
	if err != nil {
		return matrix.Measurement{}, err
	}
	return matrix.Measurement{Power: s.Power, Floor: s.Floor}, nil
}
