// Package grpc exposes the FileKeeper services over gRPC. Messages are the
// plain structs of internal/api carried by its JSON codec; the service
// descriptor is written by hand.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/ratelimit"
	"github.com/dmitrijs2005/filekeeper/internal/server/services"
	"google.golang.org/grpc"
)

// MaxMessageSize bounds a single request or response, file bytes included.
const MaxMessageSize = 64 << 20

type GRPCServer struct {
	address   string
	users     *services.UserService
	artifacts *services.ArtifactService
	spaces    *services.SpaceService
	audit     *services.AuditService
	limiter   *ratelimit.Limiter
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(address string, logger logging.Logger, users *services.UserService, artifacts *services.ArtifactService,
	spaces *services.SpaceService, audit *services.AuditService, limiter *ratelimit.Limiter, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   address,
		users:     users,
		artifacts: artifacts,
		spaces:    spaces,
		audit:     audit,
		limiter:   limiter,
		logger:    logger.With("module", "grpc_server"),
		jwtSecret: []byte(secretKey),
	}
}

// newServer builds the grpc.Server with the interceptor chain and the
// service registered.
func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ForceServerCodec(api.Codec{}),
		grpc.MaxRecvMsgSize(MaxMessageSize),
		grpc.MaxSendMsgSize(MaxMessageSize),
		grpc.ChainUnaryInterceptor(s.admissionInterceptor, s.accessTokenInterceptor),
	)
	srv.RegisterService(&serviceDesc, s)
	return srv
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	return srv.Serve(listen)
}

// fileKeeper is the handler type checked by grpc.RegisterService.
type fileKeeper interface {
	Ping(context.Context, *api.Empty) (*api.PingResponse, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: api.ServiceName,
	HandlerType: (*fileKeeper)(nil),
	Methods: []grpc.MethodDesc{
		unary(api.MethodPing, (*GRPCServer).Ping),
		unary(api.MethodLogin, (*GRPCServer).Login),
		unary(api.MethodRefresh, (*GRPCServer).Refresh),
		unary(api.MethodLogout, (*GRPCServer).Logout),
		unary(api.MethodRegister, (*GRPCServer).Register),
		unary(api.MethodUpload, (*GRPCServer).Upload),
		unary(api.MethodDownload, (*GRPCServer).Download),
		unary(api.MethodDuplicate, (*GRPCServer).Duplicate),
		unary(api.MethodCreateVersion, (*GRPCServer).CreateVersion),
		unary(api.MethodVersions, (*GRPCServer).Versions),
		unary(api.MethodDelete, (*GRPCServer).Delete),
		unary(api.MethodList, (*GRPCServer).List),
		unary(api.MethodUpdate, (*GRPCServer).Update),
		unary(api.MethodQuota, (*GRPCServer).Quota),
		unary(api.MethodAudit, (*GRPCServer).Audit),
		unary(api.MethodAuditCounts, (*GRPCServer).AuditCounts),
		unary(api.MethodCreateSpace, (*GRPCServer).CreateSpace),
		unary(api.MethodAddMember, (*GRPCServer).AddMember),
		unary(api.MethodRemoveMember, (*GRPCServer).RemoveMember),
		unary(api.MethodTransferOwnership, (*GRPCServer).TransferOwnership),
		unary(api.MethodDeleteSpace, (*GRPCServer).DeleteSpace),
		unary(api.MethodListSpaces, (*GRPCServer).ListSpaces),
		unary(api.MethodSetTwoFactorSeed, (*GRPCServer).SetTwoFactorSeed),
		unary(api.MethodGetTwoFactorSeed, (*GRPCServer).GetTwoFactorSeed),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "filekeeper",
}

// unary adapts a typed handler method to a grpc.MethodDesc, running it
// through the server's interceptor chain.
func unary[Req, Resp any](name string, h func(*GRPCServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*GRPCServer)
			if interceptor == nil {
				return h(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: api.FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h(s, ctx, req.(*Req))
			})
		},
	}
}
