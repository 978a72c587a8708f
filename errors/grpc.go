package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError converts a domain error into a gRPC status error.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok && Code(err) == CodeInternal {
		return err
	}
	switch Code(err) {
	case CodeNotAuthenticated:
		return status.Error(codes.Unauthenticated, err.Error())
	case CodeNotFound:
		return status.Error(codes.NotFound, err.Error())
	case CodeValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case CodeStoreFailure:
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
