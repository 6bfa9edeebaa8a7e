package remote

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/noise"
)

// DefaultMaxMessageBytes bounds a single view frame. A 1M-channel coarse
// channel with 16 spectra is about 80 MiB.
const DefaultMaxMessageBytes = 128 << 20

// Client implements library.Library against a remote Server.
type Client struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

var _ library.Library = (*Client)(nil)

// ClientOption configures Dial.
type ClientOption func(*clientConfig)

type clientConfig struct {
	maxBytes int
	timeout  time.Duration
	dial     []grpc.DialOption
}

// WithMaxMessageBytes raises the per-message size limit in both directions.
func WithMaxMessageBytes(n int) ClientOption {
	return func(c *clientConfig) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithCallTimeout bounds every call. Zero leaves calls bounded by the
// caller's context only.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *clientConfig) { c.dial = append(c.dial, opts...) }
}

// Dial connects to a library server at addr. The connection is established
// lazily on the first call.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	cfg := clientConfig{maxBytes: DefaultMaxMessageBytes}
	for _, opt := range opts {
		opt(&cfg)
	}
	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.maxBytes),
			grpc.MaxCallSendMsgSize(cfg.maxBytes),
		),
	}, cfg.dial...)
	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, timeout: cfg.timeout}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out proto.Message) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	if err := c.conn.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return fromStatus(method, err)
	}
	return nil
}

func (c *Client) OpenScan(ctx context.Context, path string, nfpc int) (library.Scan, error) {
	in, err := structpb.NewStruct(map[string]any{"path": path, "nfpc": nfpc})
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, MethodOpenScan, in, out); err != nil {
		return nil, err
	}
	f := out.GetFields()
	return &remoteScan{
		client:   c,
		id:       f["scan"].GetStringValue(),
		channels: int(f["coarse_channels"].GetNumberValue()),
	}, nil
}

type remoteScan struct {
	client   *Client
	id       string
	channels int
}

func (s *remoteScan) CoarseChannels() int { return s.channels }

func (s *remoteScan) ReadChannel(ctx context.Context, index int) (*channel.View, error) {
	in, err := structpb.NewStruct(map[string]any{"scan": s.id, "index": index})
	if err != nil {
		return nil, err
	}
	out := &wrapperspb.BytesValue{}
	if err := s.client.invoke(ctx, MethodReadChannel, in, out); err != nil {
		return nil, err
	}
	return decodeView(out.GetValue())
}

func (s *remoteScan) Close() error {
	in, err := structpb.NewStruct(map[string]any{"scan": s.id})
	if err != nil {
		return err
	}
	return s.client.invoke(context.Background(), MethodCloseScan, in, &emptypb.Empty{})
}

func (c *Client) step(ctx context.Context, method string, params map[string]any, v *channel.View) (*channel.View, error) {
	frame, err := encodeCall(params, v)
	if err != nil {
		return nil, err
	}
	out := &wrapperspb.BytesValue{}
	if err := c.invoke(ctx, method, wrapperspb.Bytes(frame), out); err != nil {
		return nil, err
	}
	return decodeView(out.GetValue())
}

func (c *Client) BindDevice(ctx context.Context, v *channel.View, d channel.Device) (*channel.View, error) {
	return c.step(ctx, MethodBindDevice, map[string]any{"device": d.String()}, v)
}

func (c *Client) FlagRolloff(ctx context.Context, v *channel.View, fraction float64) (*channel.View, error) {
	return c.step(ctx, MethodFlagRolloff, map[string]any{"fraction": fraction}, v)
}

func (c *Client) FlagSpectralKurtosis(ctx context.Context, v *channel.View, lower, upper float64) (*channel.View, error) {
	return c.step(ctx, MethodFlagSpectralKurtosis, map[string]any{"lower": lower, "upper": upper}, v)
}

func (c *Client) FlagSigmaClip(ctx context.Context, v *channel.View, iterations int, lower, upper float64) (*channel.View, error) {
	return c.step(ctx, MethodFlagSigmaClip, map[string]any{
		"iterations": iterations,
		"lower":      lower,
		"upper":      upper,
	}, v)
}

func (c *Client) CorrectPassband(ctx context.Context, v *channel.View, coefficients []float64) (*channel.View, error) {
	list := make([]any, len(coefficients))
	for i, x := range coefficients {
		list[i] = x
	}
	return c.step(ctx, MethodCorrectPassband, map[string]any{"coefficients": list}, v)
}

func (c *Client) EstimateNoise(ctx context.Context, v *channel.View, opts noise.Options) (noise.Stats, error) {
	frame, err := encodeCall(map[string]any{
		"use_mask": opts.UseMask,
		"method":   string(opts.Method),
	}, v)
	if err != nil {
		return noise.Stats{}, err
	}
	out := &structpb.Struct{}
	if err := c.invoke(ctx, MethodEstimateNoise, wrapperspb.Bytes(frame), out); err != nil {
		return noise.Stats{}, err
	}
	f := out.GetFields()
	return noise.Stats{Power: f["power"].GetNumberValue(), Floor: f["floor"].GetNumberValue()}, nil
}

// fromStatus restores the library sentinels a server mapped onto codes.
func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	var sentinel error
	switch st.Code() {
	case codes.Canceled:
		sentinel = context.Canceled
	case codes.DeadlineExceeded:
		sentinel = context.DeadlineExceeded
	case codes.NotFound:
		sentinel = fs.ErrNotExist
	case codes.OutOfRange:
		sentinel = library.ErrChannelOutOfRange
	case codes.FailedPrecondition:
		sentinel = library.ErrDeviceUnavailable
	case codes.Aborted:
		sentinel = noise.ErrNoSamples
	default:
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return fmt.Errorf("%s rpc: %s: %w", method, st.Message(), sentinel)
}
