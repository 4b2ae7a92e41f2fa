package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/biccshop/checkout/internal/repositories"
)

// WrapError converts a Firestore failure into a repositories.StoreError so the checkout
// services see the same kinds from Firestore as from memory, redis and postgres.
// Context cancellation is returned unchanged, and errors that already carry a kind keep it.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	code := status.Code(err)
	switch code {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return repositories.NewStoreError(op, kindOf(code), err)
}

// kindOf maps gRPC codes onto store kinds. A duplicate order id arrives as AlreadyExists
// and lost transaction races as Aborted; both are conflicts.
func kindOf(code codes.Code) repositories.ErrorKind {
	switch code {
	case codes.NotFound:
		return repositories.ErrorKindNotFound
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return repositories.ErrorKindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		return repositories.ErrorKindUnavailable
	default:
		return repositories.ErrorKindUnknown
	}
}
