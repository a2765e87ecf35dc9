package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC status codes. Internal failures are
// logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	msg := err.Error()

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, common.ErrRateLimited):
		code, msg = codes.ResourceExhausted, common.ErrRateLimited.Error()
	case errors.Is(err, common.ErrQuotaExceeded):
		code = codes.ResourceExhausted
	case errors.Is(err, common.ErrStorageIO):
		code, msg = codes.Unavailable, common.ErrStorageIO.Error()
	case errors.Is(err, common.ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrorNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrorForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrAuthentication),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		code = codes.Unauthenticated
	default:
		code, msg = codes.Internal, common.ErrorInternal.Error()
	}

	if code == codes.Internal || code == codes.Unavailable {
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
	} else {
		s.logger.Debug(ctx, "request rejected", "method", method, "code", code.String(), "error", err)
	}
	return status.Error(code, msg)
}
