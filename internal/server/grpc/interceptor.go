package grpc

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/api"
	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/netx"
	"github.com/dmitrijs2005/filekeeper/internal/ratelimit"
	"github.com/dmitrijs2005/filekeeper/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

// UserIDKey holds the authenticated user ID in the handler context.
const UserIDKey ctxKey = "userID"

// Login draws from its own bucket inside the user service.
var unmetered = map[string]bool{
	api.FullMethod(api.MethodLogin): true,
}

var public = map[string]bool{
	api.FullMethod(api.MethodLogin):   true,
	api.FullMethod(api.MethodRefresh): true,
	api.FullMethod(api.MethodPing):    true,
}

// admissionInterceptor charges every call but Login to the API bucket of
// the caller's address.
func (s *GRPCServer) admissionInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !unmetered[info.FullMethod] {
		host := netx.PeerHost(ctx)
		if !s.limiter.TryConsume(host, ratelimit.BucketAPI) {
			s.logger.Warn(ctx, "call rejected", "peer", host, "method", info.FullMethod)
			return nil, status.Error(codes.ResourceExhausted, common.ErrRateLimited.Error())
		}
	}
	return handler(ctx, req)
}

// accessTokenInterceptor requires a valid access token on every call but
// the public ones and stores its user ID under UserIDKey.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if public[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.VerifyAccessToken(accessToken, s.jwtSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, err.Error())
	}

	return handler(context.WithValue(ctx, UserIDKey, userID), req)
}

// userIDFromContext returns the caller set by accessTokenInterceptor.
func userIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(UserIDKey).(string)
	if !ok || id == "" {
		return "", status.Error(codes.Unauthenticated, "no user in context")
	}
	return id, nil
}
