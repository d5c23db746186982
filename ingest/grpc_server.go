package ingest

import (
	"context"

	"google.golang.org/grpc"

	"scouter/transport"
)

// GRPCServer implements the ingestion RPC by hand, since there is no
// compiled .proto to generate a server stub from: it registers a
// grpc.ServiceDesc whose single method decodes through the same jsonCodec
// transport.GRPCProducer forces on the client side.
type GRPCServer struct {
	pipeline *Pipeline
}

// NewGRPCServer builds a GRPCServer around pipeline.
func NewGRPCServer(pipeline *Pipeline) *GRPCServer {
	return &GRPCServer{pipeline: pipeline}
}

// Register attaches the ingestion service to an existing *grpc.Server,
// the same server embedding pattern pkg/server.GRPCServer.GetEngine()
// exposes to its own RegisterXxxServer calls.
func (s *GRPCServer) Register(server *grpc.Server) {
	server.RegisterService(&serviceDesc, s)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: transport.IngestServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: transport.IngestMethodName,
			Handler:    sendHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ingest/grpc_server.go",
}

func sendHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req transport.BatchRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		batch := req.(*transport.BatchRequest)
		accepted, err := srv.(*GRPCServer).pipeline.Ingest(ctx, batch.Records)
		ack := &transport.BatchAck{Accepted: accepted}
		if err != nil {
			ack.Error = err.Error()
		}
		return ack, nil
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + transport.IngestServiceName + "/" + transport.IngestMethodName}
	return interceptor(ctx, &req, info, handler)
}
