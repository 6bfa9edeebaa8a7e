package testutil

import (
	"context"
	"sync"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/noise"
)

// Library operation names passed to FaultyLibrary.Fault.
const (
	OpOpenScan             = "OpenScan"
	OpBindDevice           = "BindDevice"
	OpFlagRolloff          = "FlagRolloff"
	OpFlagSpectralKurtosis = "FlagSpectralKurtosis"
	OpFlagSigmaClip        = "FlagSigmaClip"
	OpCorrectPassband      = "CorrectPassband"
	OpEstimateNoise        = "EstimateNoise"
)

// FaultyLibrary wraps a Library and fails selected calls.
//
// Fault is consulted before every delegated call with the operation name,
// the scan path (OpenScan only) and the input view (nil for OpenScan).
// A non-nil return is reported instead of calling through.
type FaultyLibrary struct {
	library.Library
	Fault func(op, path string, v *channel.View) error

	mu    sync.Mutex
	calls map[string]int
}

// NewFaultyLibrary wraps lib.
func NewFaultyLibrary(lib library.Library, fault func(op, path string, v *channel.View) error) *FaultyLibrary {
	return &FaultyLibrary{Library: lib, Fault: fault, calls: map[string]int{}}
}

// Calls returns how many times op was invoked, faulted or not.
func (f *FaultyLibrary) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyLibrary) check(op, path string, v *channel.View) error {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
	if f.Fault == nil {
		return nil
	}
	return f.Fault(op, path, v)
}

func (f *FaultyLibrary) OpenScan(ctx context.Context, path string, nfpc int) (library.Scan, error) {
	if err := f.check(OpOpenScan, path, nil); err != nil {
		return nil, err
	}
	return f.Library.OpenScan(ctx, path, nfpc)
}

func (f *FaultyLibrary) BindDevice(ctx context.Context, v *channel.View, d channel.Device) (*channel.View, error) {
	if err := f.check(OpBindDevice, "", v); err != nil {
		return nil, err
	}
	return f.Library.BindDevice(ctx, v, d)
}

func (f *FaultyLibrary) FlagRolloff(ctx context.Context, v *channel.View, fraction float64) (*channel.View, error) {
	if err := f.check(OpFlagRolloff, "", v); err != nil {
		return nil, err
	}
	return f.Library.FlagRolloff(ctx, v, fraction)
}

func (f *FaultyLibrary) FlagSpectralKurtosis(ctx context.Context, v *channel.View, lower, upper float64) (*channel.View, error) {
	if err := f.check(OpFlagSpectralKurtosis, "", v); err != nil {
		return nil, err
	}
	return f.Library.FlagSpectralKurtosis(ctx, v, lower, upper)
}

func (f *FaultyLibrary) FlagSigmaClip(ctx context.Context, v *channel.View, iterations int, lower, upper float64) (*channel.View, error) {
	if err := f.check(OpFlagSigmaClip, "", v); err != nil {
		return nil, err
	}
	return f.Library.FlagSigmaClip(ctx, v, iterations, lower, upper)
}

func (f *FaultyLibrary) CorrectPassband(ctx context.Context, v *channel.View, coefficients []float64) (*channel.View, error) {
	if err := f.check(OpCorrectPassband, "", v); err != nil {
		return nil, err
	}
	return f.Library.CorrectPassband(ctx, v, coefficients)
}

func (f *FaultyLibrary) EstimateNoise(ctx context.Context, v *channel.View, opts noise.Options) (noise.Stats, error) {
	if err := f.check(OpEstimateNoise, "", v); err != nil {
		return noise.Stats{}, err
	}
	return f.Library.EstimateNoise(ctx, v, opts)
}
