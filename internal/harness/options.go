package harness

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/noise"
)

// Recorder receives timing and outcome of loads and cells.
type Recorder interface {
	ObserveLoad(entry string, elapsed time.Duration, err error)
	ObserveCell(variant, entry string, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(string, time.Duration, error)         {}
func (nopRecorder) ObserveCell(string, string, time.Duration, error) {}

type options struct {
	logger      *slog.Logger
	workers     int
	device      channel.Device
	deviceSlots int64
	openRetries int
	retryDelay  time.Duration
	estimator   noise.Method
	recorder    Recorder
}

func defaultOptions() options {
	return options{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		workers:     1,
		device:      channel.CPU,
		deviceSlots: 1,
		retryDelay:  200 * time.Millisecond,
		estimator:   noise.MethodStddev,
		recorder:    nopRecorder{},
	}
}

// Option configures a Runner.
type Option func(*options)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithWorkers bounds how many tasks run at once. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.workers = n
	}
}

// WithDevice selects the device every task binds its view to.
func WithDevice(d channel.Device) Option {
	return func(o *options) {
		o.device = d
	}
}

// WithDeviceSlots bounds how many tasks may hold the device at once.
func WithDeviceSlots(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.deviceSlots = int64(n)
	}
}

// WithOpenRetries retries a failed scan open up to n more times, waiting
// delay between attempts. Missing files are not retried.
func WithOpenRetries(n int, delay time.Duration) Option {
	return func(o *options) {
		if n < 0 {
			n = 0
		}
		o.openRetries = n
		o.retryDelay = delay
	}
}

// WithEstimatorMethod selects the statistic of the library noise estimator.
func WithEstimatorMethod(m noise.Method) Option {
	return func(o *options) {
		if m != "" {
			o.estimator = m
		}
	}
}

// WithRecorder installs a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}
