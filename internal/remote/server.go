package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/roach88/noiseablate/internal/channel"
	"github.com/roach88/noiseablate/internal/library"
	"github.com/roach88/noiseablate/internal/noise"
)

var _ libraryService = (*Server)(nil)

// Server exposes a library.Library to remote clients. Opened scans are held
// until the client closes them or the server stops.
type Server struct {
	lib    library.Library
	logger *slog.Logger
	grpc   *grpc.Server

	mu    sync.Mutex
	scans map[string]library.Scan
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the request logger.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer wraps lib. grpcOpts are passed to grpc.NewServer.
func NewServer(lib library.Library, opts []ServerOption, grpcOpts ...grpc.ServerOption) *Server {
	s := &Server{
		lib:    lib,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		scans:  make(map[string]library.Scan),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.grpc = grpc.NewServer(append(grpcOpts, grpc.ChainUnaryInterceptor(s.logCalls))...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("library service listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop drains in-flight calls and closes every open scan.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sc := range s.scans {
		sc.Close()
		delete(s.scans, id)
	}
}

// OpenScans returns the number of scans held for clients.
func (s *Server) OpenScans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Debug("library call failed", "method", info.FullMethod, "error", err)
	} else {
		s.logger.Debug("library call", "method", info.FullMethod)
	}
	return resp, err
}

func (s *Server) openScan(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	sc, err := s.lib.OpenScan(ctx, f["path"].GetStringValue(), int(f["nfpc"].GetNumberValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		sc.Close()
		return nil, status.Errorf(codes.Internal, "scan id: %v", err)
	}
	s.mu.Lock()
	s.scans[id.String()] = sc
	s.mu.Unlock()

	out, err := structpb.NewStruct(map[string]any{
		"scan":            id.String(),
		"coarse_channels": sc.CoarseChannels(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) scan(in *structpb.Struct) (string, library.Scan, error) {
	id := in.GetFields()["scan"].GetStringValue()
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scans[id]
	if !ok {
		return id, nil, status.Errorf(codes.NotFound, "scan %q is not open", id)
	}
	return id, sc, nil
}

func (s *Server) readChannel(ctx context.Context, in *structpb.Struct) (*wrapperspb.BytesValue, error) {
	_, sc, err := s.scan(in)
	if err != nil {
		return nil, err
	}
	v, err := sc.ReadChannel(ctx, int(in.GetFields()["index"].GetNumberValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return viewReply(v)
}

func (s *Server) closeScan(_ context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	id, sc, err := s.scan(in)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	delete(s.scans, id)
	s.mu.Unlock()
	if err := sc.Close(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) step(ctx context.Context, method string, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	params, v, err := decodeCall(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p := params.GetFields()

	var out *channel.View
	switch method {
	case MethodBindDevice:
		d, perr := channel.ParseDevice(p["device"].GetStringValue())
		if perr != nil {
			return nil, status.Error(codes.InvalidArgument, perr.Error())
		}
		out, err = s.lib.BindDevice(ctx, v, d)
	case MethodFlagRolloff:
		out, err = s.lib.FlagRolloff(ctx, v, p["fraction"].GetNumberValue())
	case MethodFlagSpectralKurtosis:
		out, err = s.lib.FlagSpectralKurtosis(ctx, v, p["lower"].GetNumberValue(), p["upper"].GetNumberValue())
	case MethodFlagSigmaClip:
		out, err = s.lib.FlagSigmaClip(ctx, v, int(p["iterations"].GetNumberValue()),
			p["lower"].GetNumberValue(), p["upper"].GetNumberValue())
	case MethodCorrectPassband:
		vals := p["coefficients"].GetListValue().GetValues()
		coeffs := make([]float64, len(vals))
		for i, c := range vals {
			coeffs[i] = c.GetNumberValue()
		}
		out, err = s.lib.CorrectPassband(ctx, v, coeffs)
	default:
		return nil, status.Errorf(codes.Unimplemented, "unknown step %s", method)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return viewReply(out)
}

func (s *Server) estimateNoise(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	params, v, err := decodeCall(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	p := params.GetFields()
	st, err := s.lib.EstimateNoise(ctx, v, noise.Options{
		UseMask: p["use_mask"].GetBoolValue(),
		Method:  noise.Method(p["method"].GetStringValue()),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(map[string]any{"power": st.Power, "floor": st.Floor})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func viewReply(v *channel.View) (*wrapperspb.BytesValue, error) {
	frame, err := encodeView(v)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encode view: %v", err))
	}
	return wrapperspb.Bytes(frame), nil
}

// toStatus maps library errors onto gRPC codes the client maps back.
func toStatus(err error) error {
	code := codes.Unknown
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, fs.ErrNotExist):
		code = codes.NotFound
	case errors.Is(err, library.ErrChannelOutOfRange):
		code = codes.OutOfRange
	case errors.Is(err, library.ErrDeviceUnavailable):
		code = codes.FailedPrecondition
	case errors.Is(err, noise.ErrNoSamples):
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}
