package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	poolmock "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool/mock"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	approvalpg "github.com/cloudpasture/shepherd/pkg/domain/approval/db/postgres"
	jobmock "github.com/cloudpasture/shepherd/pkg/domain/job/db/mock"
)

func poolWith(tx *poolmock.Tx) *poolmock.Pool {
	pool := poolmock.NewPool()
	pool.Impl.Begin = func(ctx context.Context) (kpool.Tx, error) {
		return tx, nil
	}
	return pool
}

func stmtOf(list []poolmock.Statement, fragment string) (poolmock.Statement, bool) {
	for _, s := range list {
		if strings.Contains(s.SQL, fragment) {
			return s, true
		}
	}
	return poolmock.Statement{}, false
}

func TestApprovalPG_Approve(t *testing.T) {
	ctx := context.Background()

	decidedAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	// scripts the statements Approve issues, in their fixed order.
	newApproveTx := func(approvalStatus, recordStatus string) *poolmock.Tx {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			switch {
			case strings.Contains(sql, `from "approval"`):
				return poolmock.Row{Values: []interface{}{approvalStatus}}
			case strings.Contains(sql, `select "record_type"`):
				return poolmock.Row{Values: []interface{}{"vm.create"}}
			case strings.Contains(sql, `from "instance_size"`):
				return poolmock.Row{Values: []interface{}{
					"size-1", "m.large", "Large", 4, 8192,
					50, 2, 4096, false,
					false, "", false, "",
					nil,
				}}
			case strings.Contains(sql, `update "approval"`):
				return poolmock.Row{Values: []interface{}{&decidedAt, decidedAt}}
			case strings.Contains(sql, `from "work_record"`):
				return poolmock.Row{Values: []interface{}{recordStatus}}
			default:
				return poolmock.Row{Err: errors.New("unexpected query: " + sql)}
			}
		}
		tx.Impl.Exec = func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 1"), nil
		}
		return tx
	}

	t.Run("it marks the record processing in the approving transaction", func(t *testing.T) {
		tx := newApproveTx("pending_approval", "pending")
		jobs := jobmock.NewJobInterface()
		jobs.Impl.Enqueue = func(ctx context.Context, jtx kpool.Tx, recordId string, kind domain.RecordType) (domain.Job, error) {
			return domain.Job{Id: "job-1", RecordId: recordId, Kind: kind}, nil
		}

		testee := approvalpg.New(poolWith(tx), approvalpg.WithJobs(jobs))
		app, err := testee.Approve(ctx, "rec-1", kdb.Decision{
			DecidedBy: "admin:bob", ClusterId: "prod-tokyo",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if app.Status != domain.Approved {
			t.Errorf("approval status: %s != approved", app.Status)
		}

		update, ok := stmtOf(tx.Calls.Exec, `update "work_record"`)
		if !ok {
			t.Fatal("the record is left pending in the approving transaction")
		}
		if update.Args[0] != string(domain.RecordProcessing) {
			t.Errorf("record transits to %v, not processing", update.Args[0])
		}

		if len(jobs.Calls.Enqueue) != 1 {
			t.Fatalf("enqueue is called %d times", len(jobs.Calls.Enqueue))
		}
		if jobs.Calls.Enqueue[0].RecordId != "rec-1" ||
			jobs.Calls.Enqueue[0].Kind != domain.VMCreate {
			t.Errorf("unexpected enqueue: %+v", jobs.Calls.Enqueue[0])
		}

		if !tx.Committed {
			t.Error("the transaction is not committed")
		}
	})

	t.Run("it freezes the size definition read in the same transaction", func(t *testing.T) {
		tx := newApproveTx("pending_approval", "pending")
		jobs := jobmock.NewJobInterface()
		jobs.Impl.Enqueue = func(ctx context.Context, jtx kpool.Tx, recordId string, kind domain.RecordType) (domain.Job, error) {
			return domain.Job{Id: "job-1"}, nil
		}

		testee := approvalpg.New(poolWith(tx), approvalpg.WithJobs(jobs))
		app, err := testee.Approve(ctx, "rec-1", kdb.Decision{
			DecidedBy: "admin:bob", SizeName: "m.large",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := stmtOf(tx.Calls.QueryRow, `from "instance_size"`); !ok {
			t.Fatal("the size definition is not read within the transaction")
		}

		var snapshot struct {
			Name     string `json:"name"`
			CPUCores int    `json:"cpu_cores"`
			DiskGB   int    `json:"disk_gb"`
		}
		if err := json.Unmarshal(app.SizeSnapshot, &snapshot); err != nil {
			t.Fatalf("snapshot is not json: %v", err)
		}
		if snapshot.Name != "m.large" || snapshot.CPUCores != 4 || snapshot.DiskGB != 50 {
			t.Errorf("unexpected snapshot: %+v", snapshot)
		}
	})

	t.Run("it rolls everything back when enqueueing fails", func(t *testing.T) {
		tx := newApproveTx("pending_approval", "pending")
		jobs := jobmock.NewJobInterface()
		expected := errors.New("queue is broken")
		jobs.Impl.Enqueue = func(ctx context.Context, jtx kpool.Tx, recordId string, kind domain.RecordType) (domain.Job, error) {
			return domain.Job{}, expected
		}

		testee := approvalpg.New(poolWith(tx), approvalpg.WithJobs(jobs))
		if _, err := testee.Approve(ctx, "rec-1", kdb.Decision{DecidedBy: "admin:bob"}); !errors.Is(err, expected) {
			t.Fatalf("unexpected error: %v", err)
		}

		if tx.Committed {
			t.Error("the transaction should not be committed")
		}
		if !tx.RolledBack {
			t.Error("the transaction should be rolled back")
		}
	})

	t.Run("it refuses an already decided approval", func(t *testing.T) {
		tx := newApproveTx("rejected", "cancelled")
		jobs := jobmock.NewJobInterface()

		testee := approvalpg.New(poolWith(tx), approvalpg.WithJobs(jobs))
		_, err := testee.Approve(ctx, "rec-1", kdb.Decision{DecidedBy: "admin:bob"})
		if !errors.Is(err, domain.ErrInvalidApprovalStateChanging) {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(tx.Calls.Exec) != 0 {
			t.Errorf("nothing should be written: %v", tx.Calls.Exec)
		}
		if len(jobs.Calls.Enqueue) != 0 {
			t.Error("nothing should be enqueued")
		}
		if tx.Committed {
			t.Error("the transaction should not be committed")
		}
	})
}

func TestApprovalPG_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("it cancels the record in the rejecting transaction", func(t *testing.T) {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			switch {
			case strings.Contains(sql, `from "approval"`):
				return poolmock.Row{Values: []interface{}{"pending_approval"}}
			case strings.Contains(sql, `from "work_record"`):
				return poolmock.Row{Values: []interface{}{"pending"}}
			default:
				return poolmock.Row{Err: errors.New("unexpected query: " + sql)}
			}
		}
		tx.Impl.Exec = func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 1"), nil
		}

		testee := approvalpg.New(poolWith(tx), approvalpg.WithJobs(jobmock.NewJobInterface()))
		err := testee.Reject(ctx, "rec-1", kdb.Decision{
			DecidedBy: "admin:bob", Note: "quota exceeded",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		appUpdate, ok := stmtOf(tx.Calls.Exec, `update "approval"`)
		if !ok {
			t.Fatal("the approval is not updated")
		}
		if appUpdate.Args[0] != string(domain.Rejected) {
			t.Errorf("approval transits to %v, not rejected", appUpdate.Args[0])
		}

		recUpdate, ok := stmtOf(tx.Calls.Exec, `update "work_record"`)
		if !ok {
			t.Fatal("the record is not cancelled in the rejecting transaction")
		}
		if recUpdate.Args[0] != string(domain.RecordCancelled) {
			t.Errorf("record transits to %v, not cancelled", recUpdate.Args[0])
		}
		if recUpdate.Args[1] != "quota exceeded" {
			t.Errorf("the decision note should land in error_detail: %v", recUpdate.Args[1])
		}

		if !tx.Committed {
			t.Error("the transaction is not committed")
		}
	})
}
