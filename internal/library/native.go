package library

import (
	"context"
	"fmt"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/filterbank"
	"github.com/roach88/noiseablate/internal/flagging"
	"github.com/roach88/noiseablate/internal/noise"
)

// Native runs every operation in-process on the CPU.
type Native struct {
	integrations int
}

// NativeOption configures Native.
type NativeOption func(*Native)

// WithIntegrations fixes the number of accumulated spectra per sample used by
// spectral kurtosis. Zero derives it from the view's time and frequency
// resolution.
func WithIntegrations(n int) NativeOption {
	return func(l *Native) {
		if n >= 0 {
			l.integrations = n
		}
	}
}

// NewNative builds the in-process library.
func NewNative(opts ...NativeOption) *Native {
	l := &Native{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ Library = (*Native)(nil)

// OpenScan opens a SIGPROC filterbank file.
func (l *Native) OpenScan(ctx context.Context, path string, nfpc int) (Scan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nfpc <= 0 {
		return nil, fmt.Errorf("fine channels per coarse channel must be positive, got %d", nfpc)
	}
	f, err := filterbank.Open(path)
	if err != nil {
		return nil, err
	}
	if int(f.Header.NChans) < nfpc {
		f.Close()
		return nil, fmt.Errorf("%s has %d channels, fewer than one coarse channel of %d", path, f.Header.NChans, nfpc)
	}
	return &nativeScan{file: f, nfpc: nfpc}, nil
}

type nativeScan struct {
	file *filterbank.File
	nfpc int
}

func (s *nativeScan) CoarseChannels() int {
	return int(s.file.Header.NChans) / s.nfpc
}

func (s *nativeScan) ReadChannel(ctx context.Context, index int) (*channel.View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= s.CoarseChannels() {
		return nil, &ChannelRangeError{Index: index, Count: s.CoarseChannels()}
	}
	data, err := s.file.ReadChannels(index*s.nfpc, s.nfpc)
	if err != nil {
		return nil, err
	}
	h := s.file.Header
	rows := len(data) / s.nfpc
	return &channel.View{
		Rows:   rows,
		Cols:   s.nfpc,
		Data:   data,
		Mask:   make([]bool, len(data)),
		Device: channel.CPU,
		Meta: channel.Meta{
			CoarseChannel: index,
			FirstFreqMHz:  h.FCh1 + float64(index*s.nfpc)*h.FOff,
			FreqStepMHz:   h.FOff,
			SampleTimeSec: h.TSamp,
			SourceName:    h.SourceName,
		},
	}, nil
}

func (s *nativeScan) Close() error {
	return s.file.Close()
}

// BindDevice accepts host devices only.
func (l *Native) BindDevice(ctx context.Context, v *channel.View, d channel.Device) (*channel.View, error) {
	if d.IsAccelerator() {
		return nil, fmt.Errorf("%w: %s (in-process library runs on cpu)", ErrDeviceUnavailable, d)
	}
	return v.BindDevice(d), nil
}

func (l *Native) check(ctx context.Context, v *channel.View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.Device.IsAccelerator() {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, v.Device)
	}
	return v.Validate()
}

func (l *Native) FlagRolloff(ctx context.Context, v *channel.View, fraction float64) (*channel.View, error) {
	if err := l.check(ctx, v); err != nil {
		return nil, err
	}
	return flagging.Rolloff(v, fraction)
}

func (l *Native) FlagSpectralKurtosis(ctx context.Context, v *channel.View, lower, upper float64) (*channel.View, error) {
	if err := l.check(ctx, v); err != nil {
		return nil, err
	}
	n := l.integrations
	if n == 0 {
		n = v.Meta.Integrations()
	}
	return flagging.SpectralKurtosis(v, lower, upper, n)
}

func (l *Native) FlagSigmaClip(ctx context.Context, v *channel.View, iterations int, lower, upper float64) (*channel.View, error) {
	if err := l.check(ctx, v); err != nil {
		return nil, err
	}
	return flagging.SigmaClip(v, iterations, lower, upper)
}

func (l *Native) CorrectPassband(ctx context.Context, v *channel.View, coefficients []float64) (*channel.View, error) {
	if err := l.check(ctx, v); err != nil {
		return nil, err
	}
	return flagging.Passband(v, coefficients)
}

func (l *Native) EstimateNoise(ctx context.Context, v *channel.View, opts noise.Options) (noise.Stats, error) {
	if err := l.check(ctx, v); err != nil {
		return noise.Stats{}, err
	}
	return noise.Estimate(v, opts)
}
