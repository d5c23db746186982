package registry

import (
	"context"

	"google.golang.org/grpc"

	"scouter/pkg/apperror"
	"scouter/profile"
)

// ProfileServiceName and its methods name the hand-registered gRPC control
// plane ingest.GRPCServer's sibling: there is no compiled .proto behind it
// either, so requests cross the wire through the same jsonCodec
// transport/grpc.go registers globally.
const (
	ProfileServiceName = "scouter.profile.v1.ProfileService"
	registerMethod     = "Register"
	getMethod          = "Get"
	patchStatusMethod  = "PatchStatus"
)

// GRPCServer implements the profile-registration control plane RPCs by
// hand, the same way ingest.GRPCServer implements the data-plane Send RPC.
type GRPCServer struct {
	registrar *Registrar
}

// NewGRPCServer builds a GRPCServer around registrar.
func NewGRPCServer(registrar *Registrar) *GRPCServer {
	return &GRPCServer{registrar: registrar}
}

// Register attaches the profile service to an existing *grpc.Server.
func (s *GRPCServer) Register(server *grpc.Server) {
	server.RegisterService(&profileServiceDesc, s)
}

var profileServiceDesc = grpc.ServiceDesc{
	ServiceName: ProfileServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: registerMethod, Handler: registerRPCHandler},
		{MethodName: getMethod, Handler: getRPCHandler},
		{MethodName: patchStatusMethod, Handler: patchStatusRPCHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "registry/grpc_server.go",
}

type registerResponse struct {
	Profile *profile.Profile `json:"profile,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func registerRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req RegisterRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		in := req.(*RegisterRequest)
		p, err := srv.(*GRPCServer).registrar.Register(ctx, *in)
		resp := &registerResponse{Profile: p}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp, nil
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ProfileServiceName + "/" + registerMethod}
	return interceptor(ctx, &req, info, handler)
}

type getRequest struct {
	UID      string `json:"uid,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

type getResponse struct {
	Profile  *profile.Profile   `json:"profile,omitempty"`
	Profiles []*profile.Profile `json:"profiles,omitempty"`
	Error    string             `json:"error,omitempty"`
}

func getRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req getRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		in := req.(*getRequest)
		registrar := srv.(*GRPCServer).registrar
		resp := &getResponse{}
		var err error
		switch {
		case in.UID != "":
			resp.Profile, err = registrar.Get(ctx, in.UID)
		case in.EntityID != "":
			resp.Profiles, err = registrar.ListByEntity(ctx, in.EntityID)
		default:
			err = apperror.New(apperror.CodeInvalidArgument, "uid or entity_id is required")
		}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp, nil
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ProfileServiceName + "/" + getMethod}
	return interceptor(ctx, &req, info, handler)
}

type patchStatusRequest struct {
	UID    string `json:"uid"`
	Active bool   `json:"active"`
}

func patchStatusRPCHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req patchStatusRequest
	if err := dec(&req); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		in := req.(*patchStatusRequest)
		p, err := srv.(*GRPCServer).registrar.SetActive(ctx, in.UID, in.Active)
		resp := &registerResponse{Profile: p}
		if err != nil {
			resp.Error = err.Error()
		}
		return resp, nil
	}
	if interceptor == nil {
		return handler(ctx, &req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ProfileServiceName + "/" + patchStatusMethod}
	return interceptor(ctx, &req, info, handler)
}
