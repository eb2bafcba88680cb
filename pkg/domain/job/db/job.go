package db

import (
	"context"

	"github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
)

type Interface interface {
	// enqueue a job referencing recordId within tx.
	//
	// This is the only way execution becomes possible. It is called from
	// exactly one place: the approval transition, inside its transaction,
	// so an approved-but-unqueued record is unreachable.
	//
	// Returns:
	//
	// - domain.ErrJobNotApproved when the record's approval is not
	// "approved" (insert is guarded in SQL, not only by convention),
	//
	// - domain.ErrJobAlreadyExists when a live job already references the
	// record (partial unique index).
	Enqueue(ctx context.Context, tx pool.Tx, recordId string, kind domain.RecordType) (domain.Job, error)

	// Retrieve jobs, mapping jobId -> Job.
	Get(ctx context.Context, jobId []string) (map[string]domain.Job, error)

	// find jobs referencing the record, newest first.
	FindByRecord(ctx context.Context, recordId string) ([]domain.Job, error)

	// pick one due job, claim it, run task, and settle job, record and
	// approval by the returned Outcome, all in one transaction.
	//
	// Claiming moves the approval approved -> executing and the record
	// pending -> processing (both no-ops on a retry attempt).
	//
	// task receives the claimed job, attempts already counting the current
	// one. A non-nil error from task rolls the claim back entirely.
	//
	// Returns the cursor pointing the picked job, and whether some job was
	// picked and settled.
	PickAndComplete(ctx context.Context, cursor domain.JobCursor, task func(domain.Job) (Outcome, error)) (domain.JobCursor, bool, error)
}

// Outcome tells the dispatcher how to settle a claimed job.
type Outcome struct {
	// JobDone: the job is consumed; the outcome, good or bad, lives on
	// the work record.
	//
	// JobCancelled: the referenced record is semantically absent. Never
	// retried.
	//
	// JobQueued: transient fault. The job returns to the queue with the
	// dispatcher's backoff applied.
	JobStatus domain.JobStatus

	// when not empty, the record and the approval transit together with
	// the job, in the same transaction.
	RecordStatus   domain.RecordStatus
	ApprovalStatus domain.ApprovalStatus

	// stored on the record for terminal failures.
	ErrorDetail string
}
