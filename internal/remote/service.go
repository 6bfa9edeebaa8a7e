// Package remote serves a library.Library over gRPC and provides a client
// that satisfies the same interface.
//
// The service is described by hand and carries protobuf well-known types, so
// no generated code is needed. Views travel as wrapperspb.BytesValue frames
// and scalar arguments as structpb.Struct.
package remote

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "noiseablate.library.v1.Library"

// Method names.
const (
	MethodOpenScan             = "OpenScan"
	MethodReadChannel          = "ReadChannel"
	MethodCloseScan            = "CloseScan"
	MethodBindDevice           = "BindDevice"
	MethodFlagRolloff          = "FlagRolloff"
	MethodFlagSpectralKurtosis = "FlagSpectralKurtosis"
	MethodFlagSigmaClip        = "FlagSigmaClip"
	MethodCorrectPassband      = "CorrectPassband"
	MethodEstimateNoise        = "EstimateNoise"
)

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// libraryService is the handler type checked by grpc.Server.RegisterService.
type libraryService interface {
	openScan(context.Context, *structpb.Struct) (*structpb.Struct, error)
	readChannel(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	closeScan(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	step(context.Context, string, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	estimateNoise(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(libraryService, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			svc := srv.(libraryService)
			if interceptor == nil {
				return call(svc, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(svc, ctx, req.(Req))
			})
		},
	}
}

func stepMethod(name string) grpc.MethodDesc {
	return unary(name, newBytes, func(s libraryService, ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
		return s.step(ctx, name, in)
	})
}

func newStruct() *structpb.Struct      { return &structpb.Struct{} }
func newBytes() *wrapperspb.BytesValue { return &wrapperspb.BytesValue{} }

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*libraryService)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodOpenScan, newStruct, libraryService.openScan),
		unary(MethodReadChannel, newStruct, libraryService.readChannel),
		unary(MethodCloseScan, newStruct, libraryService.closeScan),
		stepMethod(MethodBindDevice),
		stepMethod(MethodFlagRolloff),
		stepMethod(MethodFlagSpectralKurtosis),
		stepMethod(MethodFlagSigmaClip),
		stepMethod(MethodCorrectPassband),
		unary(MethodEstimateNoise, newBytes, libraryService.estimateNoise),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "noiseablate/library/v1/library.proto",
}
