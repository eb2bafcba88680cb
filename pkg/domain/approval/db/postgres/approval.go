package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	kdberr "github.com/cloudpasture/shepherd/pkg/domain/errors/dberrors"
	jobdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
	recordpg "github.com/cloudpasture/shepherd/pkg/domain/record/db/postgres"
)

// a struct for DB operations related to Approval
type approvalPG struct { // implements kdb.Interface
	pool    kpool.Pool
	records recorddb.Interface
	jobs    jobdb.Interface
}

type Option func(*approvalPG) *approvalPG

func WithRecords(r recorddb.Interface) Option {
	return func(a *approvalPG) *approvalPG {
		a.records = r
		return a
	}
}

func WithJobs(j jobdb.Interface) Option {
	return func(a *approvalPG) *approvalPG {
		a.jobs = j
		return a
	}
}

func New(pool kpool.Pool, options ...Option) *approvalPG {
	a := &approvalPG{pool: pool}
	for _, o := range options {
		a = o(a)
	}
	if a.records == nil {
		a.records = recordpg.New(pool)
	}
	return a
}

var _ kdb.Interface = &approvalPG{}

func (m *approvalPG) Submit(ctx context.Context, spec recorddb.NewWorkRecord) (domain.WorkRecord, domain.Approval, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.WorkRecord{}, domain.Approval{}, err
	}
	defer tx.Rollback(ctx)

	rec, err := m.records.Create(ctx, tx, spec)
	if err != nil {
		return domain.WorkRecord{}, domain.Approval{}, err
	}

	app := domain.Approval{
		RecordId: rec.Id,
		Status:   domain.PendingApproval,
	}
	if err := tx.QueryRow(
		ctx,
		`insert into "approval" ("record_id") values ($1) returning "updated_at"`,
		rec.Id,
	).Scan(&app.UpdatedAt); err != nil {
		return domain.WorkRecord{}, domain.Approval{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.WorkRecord{}, domain.Approval{}, err
	}
	return rec, app, nil
}

func (m *approvalPG) Get(ctx context.Context, recordId []string) (map[string]domain.Approval, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "record_id", "status", "modified_config", "cluster_id",
		       "storage_class", "size_snapshot", "warnings",
		       "decided_by", "decision_note", "decided_at", "updated_at"
		from "approval"
		where "record_id" = any($1)
		`,
		recordId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Approval{}
	for rows.Next() {
		var (
			a        domain.Approval
			status   string
			warnings []byte
		)
		if err := rows.Scan(
			&a.RecordId, &status, &a.ModifiedConfig, &a.ClusterId,
			&a.StorageClass, &a.SizeSnapshot, &warnings,
			&a.DecidedBy, &a.DecisionNote, &a.DecidedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if a.Status, err = domain.AsApprovalStatus(status); err != nil {
			return nil, err
		}
		if warnings != nil {
			if err := json.Unmarshal(warnings, &a.Warnings); err != nil {
				return nil, err
			}
		}
		result[a.RecordId] = a
	}
	return result, nil
}

// guard the transition current -> next with a row lock.
func lockAndCheck(ctx context.Context, tx kpool.Tx, recordId string, next domain.ApprovalStatus) (domain.ApprovalStatus, error) {
	var current string
	if err := tx.QueryRow(
		ctx,
		`select "status" from "approval" where "record_id" = $1 for update`,
		recordId,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", kdberr.Missing{Table: "approval", Identity: recordId}
		}
		return "", err
	}

	currentStatus, err := domain.AsApprovalStatus(current)
	if err != nil {
		return "", err
	}
	if !currentStatus.CanTransit(next) {
		return "", domain.NewErrInvalidApprovalStateChanging(currentStatus, next)
	}
	return currentStatus, nil
}

// sizeSnapshot is the JSON shape of a size definition frozen at approval.
type sizeSnapshot struct {
	Id              string          `json:"id"`
	Name            string          `json:"name"`
	DisplayName     string          `json:"display_name,omitempty"`
	CPUCores        int             `json:"cpu_cores"`
	MemoryMB        int             `json:"memory_mb"`
	DiskGB          int             `json:"disk_gb,omitempty"`
	CPURequest      int             `json:"cpu_request,omitempty"`
	MemoryRequestMB int             `json:"memory_request_mb,omitempty"`
	DedicatedCPU    bool            `json:"dedicated_cpu"`
	RequiresGPU     bool            `json:"requires_gpu"`
	GPUDevice       string          `json:"gpu_device,omitempty"`
	RequiresSRIOV   bool            `json:"requires_sriov"`
	HugepageSize    string          `json:"hugepage_size,omitempty"`
	Extras          json.RawMessage `json:"extras,omitempty"`
}

// read the size definition within tx and freeze it as JSON.
//
// Reading inside the approval transaction is what makes the snapshot a
// point-in-time copy: edits committed later never reach this overlay.
func snapshotSize(ctx context.Context, tx kpool.Tx, sizeName string) ([]byte, error) {
	var s sizeSnapshot
	if err := tx.QueryRow(
		ctx,
		`
		select "id", "name", "display_name", "cpu_cores", "memory_mb",
		       "disk_gb", "cpu_request", "memory_request_mb", "dedicated_cpu",
		       "requires_gpu", "gpu_device", "requires_sriov", "hugepage_size",
		       "extras"
		from "instance_size"
		where "name" = $1 and "enabled"
		`,
		sizeName,
	).Scan(
		&s.Id, &s.Name, &s.DisplayName, &s.CPUCores, &s.MemoryMB,
		&s.DiskGB, &s.CPURequest, &s.MemoryRequestMB, &s.DedicatedCPU,
		&s.RequiresGPU, &s.GPUDevice, &s.RequiresSRIOV, &s.HugepageSize,
		&s.Extras,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, kdberr.Missing{Table: "instance_size", Identity: sizeName}
		}
		return nil, err
	}
	return json.Marshal(s)
}

func (m *approvalPG) Approve(ctx context.Context, recordId string, decision kdb.Decision) (domain.Approval, error) {
	if m.jobs == nil {
		return domain.Approval{}, fmt.Errorf("approval store has no job queue to dispatch to")
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return domain.Approval{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := lockAndCheck(ctx, tx, recordId, domain.Approved); err != nil {
		return domain.Approval{}, err
	}

	var kind string
	if err := tx.QueryRow(
		ctx,
		`select "record_type" from "work_record" where "record_id" = $1`,
		recordId,
	).Scan(&kind); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Approval{}, kdberr.Missing{Table: "work_record", Identity: recordId}
		}
		return domain.Approval{}, err
	}
	recordType, err := domain.AsRecordType(kind)
	if err != nil {
		return domain.Approval{}, err
	}

	var snapshot []byte
	if decision.SizeName != "" {
		if snapshot, err = snapshotSize(ctx, tx, decision.SizeName); err != nil {
			return domain.Approval{}, err
		}
	}

	var warnings []byte
	if 0 < len(decision.Warnings) {
		if warnings, err = json.Marshal(decision.Warnings); err != nil {
			return domain.Approval{}, err
		}
	}

	app := domain.Approval{
		RecordId:       recordId,
		Status:         domain.Approved,
		ModifiedConfig: decision.ModifiedConfig,
		ClusterId:      decision.ClusterId,
		StorageClass:   decision.StorageClass,
		SizeSnapshot:   snapshot,
		Warnings:       decision.Warnings,
		DecidedBy:      decision.DecidedBy,
		DecisionNote:   decision.Note,
	}
	if err := tx.QueryRow(
		ctx,
		`
		update "approval"
		set "status" = 'approved',
		    "modified_config" = $1,
		    "cluster_id" = $2,
		    "storage_class" = $3,
		    "size_snapshot" = $4,
		    "warnings" = $5,
		    "decided_by" = $6,
		    "decision_note" = $7,
		    "decided_at" = now(),
		    "updated_at" = now()
		where "record_id" = $8
		returning "decided_at", "updated_at"
		`,
		decision.ModifiedConfig, decision.ClusterId, decision.StorageClass,
		snapshot, warnings, decision.DecidedBy, decision.Note, recordId,
	).Scan(&app.DecidedAt, &app.UpdatedAt); err != nil {
		return domain.Approval{}, err
	}

	// The record enters processing with the same commit that queues its
	// job; readers never observe approved + pending together. The claim
	// transition in the dispatcher stays a no-op for this record.
	if err := recordpg.SetStatusTx(
		ctx, tx, recordId, domain.RecordProcessing, "",
	); err != nil {
		return domain.Approval{}, err
	}

	if _, err := m.jobs.Enqueue(ctx, tx, recordId, recordType); err != nil {
		return domain.Approval{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Approval{}, err
	}
	return app, nil
}

func (m *approvalPG) Reject(ctx context.Context, recordId string, decision kdb.Decision) error {
	return m.close(ctx, recordId, domain.Rejected, decision)
}

func (m *approvalPG) Cancel(ctx context.Context, recordId string, decision kdb.Decision) error {
	return m.close(ctx, recordId, domain.ApprovalCancelled, decision)
}

func (m *approvalPG) close(ctx context.Context, recordId string, next domain.ApprovalStatus, decision kdb.Decision) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := lockAndCheck(ctx, tx, recordId, next); err != nil {
		return err
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "approval"
		set "status" = $1,
		    "decided_by" = $2,
		    "decision_note" = $3,
		    "decided_at" = now(),
		    "updated_at" = now()
		where "record_id" = $4
		`,
		string(next), decision.DecidedBy, decision.Note, recordId,
	); err != nil {
		return err
	}

	if err := recordpg.SetStatusTx(
		ctx, tx, recordId, domain.RecordCancelled, decision.Note,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// SetStatusTx performs a guarded transition within a sibling's transaction.
//
// Used by the job dispatcher settling executing -> succeeded | failed
// together with the job row.
func SetStatusTx(ctx context.Context, tx kpool.Tx, recordId string, next domain.ApprovalStatus) error {
	if _, err := lockAndCheck(ctx, tx, recordId, next); err != nil {
		return err
	}
	_, err := tx.Exec(
		ctx,
		`update "approval" set "status" = $1, "updated_at" = now() where "record_id" = $2`,
		string(next), recordId,
	)
	return err
}
