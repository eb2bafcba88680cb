// Package execution drains the job queue.
//
// Each cycle claims at most one due job, re-reads the record and its
// approval, and applies the requested change to the chosen cluster. The
// claim, the execution outcome, and the record/approval transitions settle
// in one transaction; a crash mid-flight returns the job to the queue.
package execution

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cloudpasture/shepherd/cmd/loops/recurring"
	"github.com/cloudpasture/shepherd/pkg/domain"
	approvaldb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	"github.com/cloudpasture/shepherd/pkg/domain/cluster/k8s"
	jobdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
)

// Seed returns the initial cursor: no job picked yet.
// Empty kinds means "any".
func Seed(kinds []domain.RecordType) domain.JobCursor {
	return domain.JobCursor{Kind: kinds}
}

// Executors resolves the executor for a cluster chosen at approval.
//
// A nil executor (unknown cluster id) is a configuration fault of this
// worker, not of the job.
type Executors map[string]k8s.Executor

func Task(
	logger *log.Logger,
	jobs jobdb.Interface,
	records recorddb.Interface,
	approvals approvaldb.Interface,
	executors Executors,
	maxAttempts int,
	taskTimeout time.Duration,
) recurring.Task[domain.JobCursor] {
	return func(ctx context.Context, cursor domain.JobCursor) (domain.JobCursor, bool, error) {
		next, picked, err := jobs.PickAndComplete(
			ctx, cursor,
			func(job domain.Job) (jobdb.Outcome, error) {
				outcome, err := executeOne(
					ctx, logger, records, approvals, executors, maxAttempts, taskTimeout, job,
				)
				if err != nil {
					return jobdb.Outcome{}, err
				}
				return outcome, nil
			},
		)
		return next, picked, err
	}
}

func executeOne(
	ctx context.Context,
	logger *log.Logger,
	records recorddb.Interface,
	approvals approvaldb.Interface,
	executors Executors,
	maxAttempts int,
	taskTimeout time.Duration,
	job domain.Job,
) (jobdb.Outcome, error) {
	foundRecords, err := records.Get(ctx, []string{job.RecordId})
	if err != nil {
		return jobdb.Outcome{}, err
	}
	record, ok := foundRecords[job.RecordId]
	if !ok {
		// the claim check points at nothing. consume the job, touch nothing else.
		logger.Printf("job %s: record %s is gone. cancelled.", job.Id, job.RecordId)
		return jobdb.Outcome{JobStatus: domain.JobCancelled}, nil
	}
	overlays, err := approvals.Get(ctx, []string{job.RecordId})
	if err != nil {
		return jobdb.Outcome{}, err
	}
	approval, ok := overlays[job.RecordId]
	if !ok {
		logger.Printf("job %s: approval for record %s is gone. cancelled.", job.Id, job.RecordId)
		return jobdb.Outcome{JobStatus: domain.JobCancelled}, nil
	}

	executor, ok := executors[approval.ClusterId]
	if !ok {
		// this worker does not know the cluster. leave the job for one which does.
		logger.Printf(
			"job %s: no executor for cluster %s. requeued.", job.Id, approval.ClusterId,
		)
		return jobdb.Outcome{JobStatus: domain.JobQueued}, nil
	}

	effective := approval.EffectiveConfig(&record)
	order, err := composeOrder(effective, approval)
	if err != nil {
		// a broken effective config never executes, no matter how often we retry.
		return failed(record, fmt.Sprintf("effective configuration is broken: %s", err)), nil
	}

	execCtx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	if err := executor.Execute(execCtx, record.Type, order); err != nil {
		if maxAttempts <= job.Attempts {
			logger.Printf(
				"job %s: attempt %d/%d failed: %s. giving up.",
				job.Id, job.Attempts, maxAttempts, err,
			)
			return failed(record, err.Error()), nil
		}
		logger.Printf(
			"job %s: attempt %d/%d failed: %s. requeued.",
			job.Id, job.Attempts, maxAttempts, err,
		)
		return jobdb.Outcome{JobStatus: domain.JobQueued}, nil
	}

	return jobdb.Outcome{
		JobStatus:      domain.JobDone,
		RecordStatus:   domain.RecordCompleted,
		ApprovalStatus: domain.Succeeded,
	}, nil
}

func failed(record domain.WorkRecord, detail string) jobdb.Outcome {
	return jobdb.Outcome{
		JobStatus:      domain.JobDone,
		RecordStatus:   domain.RecordFailed,
		ApprovalStatus: domain.ApprovalFailed,
		ErrorDetail:    detail,
	}
}

func composeOrder(effective []byte, approval domain.Approval) (k8s.VMOrder, error) {
	var doc struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	}
	if err := json.Unmarshal(effective, &doc); err != nil {
		return k8s.VMOrder{}, err
	}
	if doc.Name == "" {
		return k8s.VMOrder{}, fmt.Errorf(`"name" is required to execute`)
	}

	return k8s.VMOrder{
		Name:         doc.Name,
		Namespace:    doc.Namespace,
		Config:       effective,
		SizeSnapshot: approval.SizeSnapshot,
		StorageClass: approval.StorageClass,
	}, nil
}
