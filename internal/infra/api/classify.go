package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/vietddude/ratesync/internal/core/domain"
)

// ClassifyHTTP maps upstream call errors to failure kinds.
func ClassifyHTTP(err error) domain.FailureKind {
	if err == nil {
		return domain.FailureUnknown
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return domain.FailureTransientNetwork
		default:
			return domain.FailurePermanent
		}
	}

	if errors.Is(err, context.Canceled) {
		return domain.FailurePermanent
	}

	if errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, context.DeadlineExceeded) {
		return domain.FailureTransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.FailureTransientNetwork
	}

	return domain.FailureUnknown
}
