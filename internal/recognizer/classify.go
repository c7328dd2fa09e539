package recognizer

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rbright/livescribe/internal/capability"
)

// Classify maps a run failure to a capability error code. Explicitly coded errors win; gRPC
// statuses are translated; anything else is a network failure.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var coded *capability.Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}
	if errors.Is(err, context.Canceled) {
		return capability.CodeAborted
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return capability.CodeNetwork
	}

	st, ok := status.FromError(err)
	if !ok {
		return capability.CodeNetwork
	}
	return codeForStatus(st.Code())
}

func codeForStatus(code codes.Code) string {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded:
		return capability.CodeNetwork
	case codes.PermissionDenied, codes.Unauthenticated:
		return capability.CodeServiceNotAllowed
	case codes.OutOfRange:
		return capability.CodeNoSpeech
	case codes.Canceled:
		return capability.CodeAborted
	case codes.InvalidArgument:
		return capability.CodeLanguageNotSupported
	default:
		return capability.CodeNetwork
	}
}
