package domain

// FailureKind classifies an error for retry decisions.
type FailureKind string

const (
	FailureUnknown              FailureKind = "unknown"
	FailureTransientNetwork     FailureKind = "transient_network"
	FailureTransientStorage     FailureKind = "transient_storage"
	FailurePermanentValidation  FailureKind = "permanent_validation"
	FailurePermanentPersistence FailureKind = "permanent_persistence"
	FailurePermanent            FailureKind = "permanent"
)

// IsTransient reports whether the failure may clear up on its own.
func (k FailureKind) IsTransient() bool {
	return k == FailureTransientNetwork || k == FailureTransientStorage
}
