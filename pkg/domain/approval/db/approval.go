package db

import (
	"context"

	"github.com/cloudpasture/shepherd/pkg/domain"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
)

// Decision carries what an admin decided about a record.
type Decision struct {
	DecidedBy string
	Note      string

	// Full-replacement configuration. nil leaves the original payload in
	// force; non-nil replaces it wholesale (never merged).
	ModifiedConfig []byte

	// Execution target. Approve only.
	ClusterId    string
	StorageClass string

	// Name of the size definition to snapshot into the overlay.
	// Approve only.
	SizeName string

	// Advisory findings computed during validation. Shown, not blocking.
	Warnings []string
}

type Interface interface {
	// create a work record together with its pending approval, in one
	// transaction. Neither is observable without the other.
	Submit(ctx context.Context, spec recorddb.NewWorkRecord) (domain.WorkRecord, domain.Approval, error)

	// Retrieve approvals, mapping recordId -> Approval.
	Get(ctx context.Context, recordId []string) (map[string]domain.Approval, error)

	// Approve moves pending_approval -> approved and, in the same
	// transaction:
	//
	// - snapshots the referenced size definition into the overlay,
	//
	// - enqueues exactly one job referencing the record.
	//
	// An approved-but-unqueued overlay is structurally unreachable: if any
	// step fails, nothing happened.
	//
	// Returns ErrInvalidApprovalStateChanging when the overlay is not
	// pending_approval, ErrMissing when record or size is gone.
	Approve(ctx context.Context, recordId string, decision Decision) (domain.Approval, error)

	// Reject moves pending_approval -> rejected and cancels the record.
	Reject(ctx context.Context, recordId string, decision Decision) error

	// Cancel moves pending_approval -> cancelled and cancels the record.
	// Used when the requester withdraws.
	Cancel(ctx context.Context, recordId string, decision Decision) error
}
