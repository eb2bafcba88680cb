package domain

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

type ApprovalStatus string

const (
	PendingApproval   ApprovalStatus = "pending_approval"
	Approved          ApprovalStatus = "approved"
	Rejected          ApprovalStatus = "rejected"
	ApprovalCancelled ApprovalStatus = "cancelled"

	// A worker has claimed the job and drives the change.
	Executing ApprovalStatus = "executing"

	Succeeded      ApprovalStatus = "succeeded"
	ApprovalFailed ApprovalStatus = "failed"
)

func (as ApprovalStatus) String() string {
	return string(as)
}

func AsApprovalStatus(s string) (ApprovalStatus, error) {
	switch s {
	case string(PendingApproval):
		return PendingApproval, nil
	case string(Approved):
		return Approved, nil
	case string(Rejected):
		return Rejected, nil
	case string(ApprovalCancelled):
		return ApprovalCancelled, nil
	case string(Executing):
		return Executing, nil
	case string(Succeeded):
		return Succeeded, nil
	case string(ApprovalFailed):
		return ApprovalFailed, nil
	default:
		return "", fmt.Errorf("'%s' is not ApprovalStatus", s)
	}
}

func (as ApprovalStatus) Terminal() bool {
	switch as {
	case Rejected, ApprovalCancelled, Succeeded, ApprovalFailed:
		return true
	default:
		return false
	}
}

// CanTransit reports whether as -> next is a defined transition.
//
//	pending_approval -> approved | rejected | cancelled
//	approved         -> executing
//	executing        -> succeeded | failed
func (as ApprovalStatus) CanTransit(next ApprovalStatus) bool {
	switch as {
	case PendingApproval:
		return next == Approved || next == Rejected || next == ApprovalCancelled
	case Approved:
		return next == Executing
	case Executing:
		return next == Succeeded || next == ApprovalFailed
	default:
		return false
	}
}

// Approval is the admin decision overlay on a WorkRecord (1:1).
//
// ModifiedConfig, when set, replaces the record's payload wholesale for
// validation and execution. It is never merged into the payload.
type Approval struct {
	RecordId string

	Status ApprovalStatus

	// Full-replacement configuration, as JSON. nil means "use the payload".
	ModifiedConfig []byte

	// Execution target chosen by the approver.
	ClusterId    string
	StorageClass string

	// Point-in-time copy of the referenced size definition, captured in the
	// approval transaction. Later edits to the definition do not reach here.
	SizeSnapshot []byte

	// Advisory findings shown to the approver. They never block.
	Warnings []string

	DecidedBy    string
	DecisionNote string
	DecidedAt    *time.Time

	UpdatedAt time.Time
}

func (a *Approval) Equal(o *Approval) bool {
	if (a == nil) || (o == nil) {
		return (a == nil) && (o == nil)
	}
	if len(a.Warnings) != len(o.Warnings) {
		return false
	}
	for i := range a.Warnings {
		if a.Warnings[i] != o.Warnings[i] {
			return false
		}
	}
	return a.RecordId == o.RecordId &&
		a.Status == o.Status &&
		bytes.Equal(a.ModifiedConfig, o.ModifiedConfig) &&
		a.ClusterId == o.ClusterId &&
		a.StorageClass == o.StorageClass &&
		bytes.Equal(a.SizeSnapshot, o.SizeSnapshot) &&
		a.DecidedBy == o.DecidedBy &&
		a.DecisionNote == o.DecisionNote &&
		timePEq(a.DecidedAt, o.DecidedAt)
}

// EffectiveConfig returns the configuration to validate and execute.
//
// When ModifiedConfig is set it is the whole answer. Fields present only in
// the payload are dropped, not merged in; a merge cannot express deletion
// and silently keeps siblings the approver meant to remove.
func (a *Approval) EffectiveConfig(record *WorkRecord) []byte {
	if a != nil && a.ModifiedConfig != nil {
		return a.ModifiedConfig
	}
	if record == nil {
		return nil
	}
	return record.Payload
}

var ErrInvalidApprovalStateChanging = errors.New("cannot change approval state")

func NewErrInvalidApprovalStateChanging(from, to ApprovalStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidApprovalStateChanging, from, to)
}
