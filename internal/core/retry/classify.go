package retry

import (
	"context"
	"errors"

	"github.com/vietddude/ratesync/internal/core/domain"
)

// Classifier maps an error to a failure kind.
type Classifier func(err error) domain.FailureKind

// KindError attaches a failure kind to an error.
type KindError struct {
	Kind domain.FailureKind
	Err  error
}

func (e *KindError) Error() string { return e.Err.Error() }
func (e *KindError) Unwrap() error { return e.Err }

// WithKind marks err as being of the given kind. A nil err stays nil.
func WithKind(kind domain.FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return WithKind(domain.FailurePermanent, err)
}

// KindOf returns the kind carried by err, if any. Discards classify as
// validation failures and context errors as permanent.
func KindOf(err error) (domain.FailureKind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	var discard *domain.Discard
	if errors.As(err, &discard) {
		return domain.FailurePermanentValidation, true
	}
	if errors.Is(err, context.Canceled) {
		return domain.FailurePermanent, true
	}
	return "", false
}

// Chain tries each classifier in order and returns the first kind that is
// not Unknown. Kinds carried by the error itself win.
func Chain(classifiers ...Classifier) Classifier {
	return func(err error) domain.FailureKind {
		if kind, ok := KindOf(err); ok {
			return kind
		}
		for _, c := range classifiers {
			if kind := c(err); kind != domain.FailureUnknown && kind != "" {
				return kind
			}
		}
		return domain.FailureUnknown
	}
}
