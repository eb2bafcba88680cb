package domain

import (
	"bytes"
	"errors"
	"fmt"
	"time"
)

// RecordType tags what change a WorkRecord requests.
type RecordType string

const (
	VMCreate  RecordType = "vm.create"
	VMModify  RecordType = "vm.modify"
	VMDelete  RecordType = "vm.delete"
	VMStart   RecordType = "vm.start"
	VMStop    RecordType = "vm.stop"
	VMRestart RecordType = "vm.restart"
)

func (rt RecordType) String() string {
	return string(rt)
}

func AsRecordType(s string) (RecordType, error) {
	switch s {
	case string(VMCreate):
		return VMCreate, nil
	case string(VMModify):
		return VMModify, nil
	case string(VMDelete):
		return VMDelete, nil
	case string(VMStart):
		return VMStart, nil
	case string(VMStop):
		return VMStop, nil
	case string(VMRestart):
		return VMRestart, nil
	default:
		return "", fmt.Errorf("'%s' is not RecordType", s)
	}
}

type RecordStatus string

const (
	// This record is submitted and waits for an admin decision.
	RecordPending RecordStatus = "pending"

	// This record has been approved and its job is queued or running.
	RecordProcessing RecordStatus = "processing"

	// This record's requested change has been applied to the target cluster.
	RecordCompleted RecordStatus = "completed"

	// This record's requested change was attempted and did not succeed.
	RecordFailed RecordStatus = "failed"

	// This record was rejected or withdrawn before execution.
	RecordCancelled RecordStatus = "cancelled"
)

func (rs RecordStatus) String() string {
	return string(rs)
}

func AsRecordStatus(s string) (RecordStatus, error) {
	switch s {
	case string(RecordPending):
		return RecordPending, nil
	case string(RecordProcessing):
		return RecordProcessing, nil
	case string(RecordCompleted):
		return RecordCompleted, nil
	case string(RecordFailed):
		return RecordFailed, nil
	case string(RecordCancelled):
		return RecordCancelled, nil
	default:
		return "", fmt.Errorf("'%s' is not RecordStatus", s)
	}
}

// Terminal statuses never transit to another one.
func (rs RecordStatus) Terminal() bool {
	switch rs {
	case RecordCompleted, RecordFailed, RecordCancelled:
		return true
	default:
		return false
	}
}

// CanTransit reports whether rs -> next is a defined transition.
//
//	pending    -> processing | cancelled
//	processing -> completed | failed
func (rs RecordStatus) CanTransit(next RecordStatus) bool {
	switch rs {
	case RecordPending:
		return next == RecordProcessing || next == RecordCancelled
	case RecordProcessing:
		return next == RecordCompleted || next == RecordFailed
	default:
		return false
	}
}

// WorkRecord is the durable record of "what was requested".
//
// Payload is write-once. It is set at creation and the persistence layer
// rejects any update touching it. Admin overrides live in Approval, never
// here.
type WorkRecord struct {
	Id string

	Type RecordType

	// Id of the VM this record targets. Empty until the target exists.
	VMId string

	// Originally-submitted configuration, as JSON. Immutable.
	Payload []byte

	RequestedBy string

	Status RecordStatus

	// Detail of the terminal failure, if any.
	ErrorDetail string

	CreatedAt   time.Time
	ProcessedAt *time.Time
	ArchivedAt  *time.Time
}

func (r *WorkRecord) Equal(o *WorkRecord) bool {
	if (r == nil) || (o == nil) {
		return (r == nil) && (o == nil)
	}
	return r.Id == o.Id &&
		r.Type == o.Type &&
		r.VMId == o.VMId &&
		bytes.Equal(r.Payload, o.Payload) &&
		r.RequestedBy == o.RequestedBy &&
		r.Status == o.Status &&
		r.ErrorDetail == o.ErrorDetail &&
		r.CreatedAt.Equal(o.CreatedAt) &&
		timePEq(r.ProcessedAt, o.ProcessedAt) &&
		timePEq(r.ArchivedAt, o.ArchivedAt)
}

func timePEq(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// parameter to query records.
//
// Empty dimensions do not narrow results.
type RecordFindQuery struct {
	Type        []RecordType
	Status      []RecordStatus
	RequestedBy string
	VMId        string

	// match if record's created time is equal or later than this.
	CreatedSince *time.Time

	// match if record's created time is earlier than this.
	CreatedUntil *time.Time
}

var (
	ErrMissing = errors.New("missing")

	// the operation would touch a write-once payload
	ErrPayloadImmutable = errors.New("work record payload is immutable")

	ErrInvalidRecordStateChanging = errors.New("cannot change record state")
)

func NewErrInvalidRecordStateChanging(from, to RecordStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidRecordStateChanging, from, to)
}
