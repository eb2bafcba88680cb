package postgres_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	poolmock "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool/mock"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
	jobpg "github.com/cloudpasture/shepherd/pkg/domain/job/db/postgres"
)

func poolWith(tx *poolmock.Tx) *poolmock.Pool {
	pool := poolmock.NewPool()
	pool.Impl.Begin = func(ctx context.Context) (kpool.Tx, error) {
		return tx, nil
	}
	return pool
}

func execOf(list []poolmock.Statement, fragment string, firstArg interface{}) (poolmock.Statement, bool) {
	for _, s := range list {
		if strings.Contains(s.SQL, fragment) && 0 < len(s.Args) && s.Args[0] == firstArg {
			return s, true
		}
	}
	return poolmock.Statement{}, false
}

func TestJobPG_Enqueue(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	t.Run("it enqueues a job for an approved record", func(t *testing.T) {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			return poolmock.Row{Values: []interface{}{at, at, at}}
		}

		testee := jobpg.New(poolmock.NewPool())
		job, err := testee.Enqueue(ctx, tx, "rec-1", domain.VMCreate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if job.RecordId != "rec-1" || job.Kind != domain.VMCreate ||
			job.Status != domain.JobQueued {
			t.Errorf("unexpected job: %+v", job)
		}
		if !job.CreatedAt.Equal(at) || !job.NextAttemptAt.Equal(at) {
			t.Errorf("unexpected timestamps: %+v", job)
		}
	})

	t.Run("it refuses a record without an approved overlay", func(t *testing.T) {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			return poolmock.Row{Err: pgx.ErrNoRows}
		}

		testee := jobpg.New(poolmock.NewPool())
		if _, err := testee.Enqueue(ctx, tx, "rec-1", domain.VMCreate); !errors.Is(err, domain.ErrJobNotApproved) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("it refuses a second live job for the same record", func(t *testing.T) {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			return poolmock.Row{Err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}}
		}

		testee := jobpg.New(poolmock.NewPool())
		if _, err := testee.Enqueue(ctx, tx, "rec-1", domain.VMCreate); !errors.Is(err, domain.ErrJobAlreadyExists) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestJobPG_PickAndComplete(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	// scripts one due job "job-1" for record "rec-1", with the status reads
	// the settling transitions perform afterwards.
	newPickTx := func() *poolmock.Tx {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			switch {
			case strings.Contains(sql, `select "job_id"`):
				return poolmock.Row{Values: []interface{}{"job-1"}}
			case strings.Contains(sql, `update "job"`):
				return poolmock.Row{Values: []interface{}{
					"job-1", "rec-1", "vm.create", "claimed",
					1, at, at, at,
				}}
			case strings.Contains(sql, `from "work_record"`):
				return poolmock.Row{Values: []interface{}{"processing"}}
			case strings.Contains(sql, `from "approval"`):
				return poolmock.Row{Values: []interface{}{"executing"}}
			default:
				return poolmock.Row{Err: errors.New("unexpected query: " + sql)}
			}
		}
		tx.Impl.Exec = func(sql string, args []interface{}) (pgconn.CommandTag, error) {
			return pgconn.CommandTag("UPDATE 1"), nil
		}
		return tx
	}

	t.Run("it settles job, record and approval in one transaction", func(t *testing.T) {
		tx := newPickTx()
		testee := jobpg.New(poolWith(tx))

		var got domain.Job
		cursor, picked, err := testee.PickAndComplete(
			ctx, domain.JobCursor{},
			func(job domain.Job) (kdb.Outcome, error) {
				got = job
				return kdb.Outcome{
					JobStatus:      domain.JobDone,
					RecordStatus:   domain.RecordCompleted,
					ApprovalStatus: domain.Succeeded,
				}, nil
			},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !picked {
			t.Fatal("a due job should be picked")
		}
		if cursor.Head != "job-1" {
			t.Errorf("cursor head: %s != job-1", cursor.Head)
		}
		if got.Id != "job-1" || got.RecordId != "rec-1" || got.Attempts != 1 {
			t.Errorf("unexpected claimed job: %+v", got)
		}

		if _, ok := execOf(tx.Calls.Exec, `update "job"`, "done"); !ok {
			t.Error("the job is not settled as done")
		}
		if _, ok := execOf(tx.Calls.Exec, `update "work_record"`, "completed"); !ok {
			t.Error("the record is not completed with the job")
		}
		if _, ok := execOf(tx.Calls.Exec, `update "approval"`, "succeeded"); !ok {
			t.Error("the approval is not settled with the job")
		}
		if !tx.Committed {
			t.Error("the transaction is not committed")
		}
	})

	t.Run("it requeues a retryable job with backoff", func(t *testing.T) {
		tx := newPickTx()
		backoff := 42 * time.Second
		testee := jobpg.New(poolWith(tx), jobpg.WithBackoff(
			func(attempts int) time.Duration { return backoff },
		))

		_, picked, err := testee.PickAndComplete(
			ctx, domain.JobCursor{},
			func(job domain.Job) (kdb.Outcome, error) {
				return kdb.Outcome{JobStatus: domain.JobQueued}, nil
			},
		)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !picked {
			t.Fatal("a due job should be picked")
		}

		requeue, ok := execOf(tx.Calls.Exec, `"next_attempt_at" = now() + $1`, backoff)
		if !ok {
			t.Fatalf("the job is not requeued: %v", tx.Calls.Exec)
		}
		if requeue.Args[1] != "job-1" {
			t.Errorf("unexpected requeue target: %v", requeue.Args[1])
		}
		if !tx.Committed {
			t.Error("the transaction is not committed")
		}
	})

	t.Run("it does nothing when no job is due", func(t *testing.T) {
		tx := poolmock.NewTx()
		tx.Impl.QueryRow = func(sql string, args []interface{}) pgx.Row {
			return poolmock.Row{Err: pgx.ErrNoRows}
		}
		testee := jobpg.New(poolWith(tx))

		cursor := domain.JobCursor{Head: "job-0"}
		next, picked, err := testee.PickAndComplete(
			ctx, cursor,
			func(job domain.Job) (kdb.Outcome, error) {
				t.Fatal("no task should run")
				return kdb.Outcome{}, nil
			},
		)
		if err != nil || picked {
			t.Fatalf("nothing should happen: picked = %v, err = %v", picked, err)
		}
		if !next.Equal(cursor) {
			t.Errorf("the cursor should not move: %+v", next)
		}
	})

	t.Run("a failing task rolls the claim back", func(t *testing.T) {
		tx := newPickTx()
		testee := jobpg.New(poolWith(tx))

		expected := errors.New("worker crashed")
		_, _, err := testee.PickAndComplete(
			ctx, domain.JobCursor{},
			func(job domain.Job) (kdb.Outcome, error) {
				return kdb.Outcome{}, expected
			},
		)
		if !errors.Is(err, expected) {
			t.Fatalf("unexpected error: %v", err)
		}
		if tx.Committed {
			t.Error("the transaction should not be committed")
		}
		if !tx.RolledBack {
			t.Error("the transaction should be rolled back")
		}
	})
}
