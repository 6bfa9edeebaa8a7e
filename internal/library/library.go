// Package library defines the contract of the signal-processing library the
// harness drives, and ships an in-process implementation of it.
//
// Every operation that transforms a view returns a new view; callers may
// keep using the input.
package library

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/noise"
)

// ErrDeviceUnavailable reports a view bound to a device the library cannot use.
var ErrDeviceUnavailable = errors.New("device unavailable")

// ErrChannelOutOfRange reports a coarse channel index past the end of a scan.
var ErrChannelOutOfRange = errors.New("coarse channel out of range")

// Scan is an opened recording.
type Scan interface {
	// CoarseChannels returns how many coarse channels the recording holds.
	CoarseChannels() int

	// ReadChannel loads one coarse channel as a CPU-bound view.
	ReadChannel(ctx context.Context, index int) (*channel.View, error)

	Close() error
}

// Library is the set of operations a pipeline step may call.
type Library interface {
	OpenScan(ctx context.Context, path string, fineChannelsPerCoarse int) (Scan, error)

	// BindDevice places a view on a compute device.
	BindDevice(ctx context.Context, v *channel.View, d channel.Device) (*channel.View, error)

	FlagRolloff(ctx context.Context, v *channel.View, fraction float64) (*channel.View, error)
	FlagSpectralKurtosis(ctx context.Context, v *channel.View, lower, upper float64) (*channel.View, error)
	FlagSigmaClip(ctx context.Context, v *channel.View, iterations int, lower, upper float64) (*channel.View, error)
	CorrectPassband(ctx context.Context, v *channel.View, coefficients []float64) (*channel.View, error)

	EstimateNoise(ctx context.Context, v *channel.View, opts noise.Options) (noise.Stats, error)
}

// ChannelRangeError reports a channel index outside a scan.
type ChannelRangeError struct {
	Index int
	Count int
}

func (e *ChannelRangeError) Error() string {
	return fmt.Sprintf("coarse channel %d out of range (scan has %d)", e.Index, e.Count)
}

func (e *ChannelRangeError) Is(target error) bool {
	return target == ErrChannelOutOfRange
}
