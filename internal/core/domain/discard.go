package domain

import "fmt"

type DiscardReason string

const (
	ReasonMissingKey  DiscardReason = "missing_key"
	ReasonInvalid     DiscardReason = "invalid"
	ReasonUnsupported DiscardReason = "unsupported"
)

// Discard is returned by a transform for a record that must not be persisted.
// It is a validation failure and is never retried.
type Discard struct {
	Reason DiscardReason
	Detail string
}

func (d *Discard) Error() string {
	if d.Detail == "" {
		return fmt.Sprintf("record discarded: %s", d.Reason)
	}
	return fmt.Sprintf("record discarded: %s: %s", d.Reason, d.Detail)
}

// NewDiscard builds a discard with a formatted detail.
func NewDiscard(reason DiscardReason, format string, args ...any) *Discard {
	return &Discard{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
