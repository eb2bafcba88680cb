package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	approvalpg "github.com/cloudpasture/shepherd/pkg/domain/approval/db/postgres"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
	recordpg "github.com/cloudpasture/shepherd/pkg/domain/record/db/postgres"
)

// Backoff decides how long a returned job stays out of reach, given how
// many attempts it took so far.
type Backoff func(attempts int) time.Duration

// DefaultBackoff doubles from 30s per attempt, capped at 15 minutes.
func DefaultBackoff() Backoff {
	return func(attempts int) time.Duration {
		d := 30 * time.Second
		for i := 1; i < attempts; i++ {
			d *= 2
			if 15*time.Minute <= d {
				return 15 * time.Minute
			}
		}
		return d
	}
}

// a struct for DB operations related to Job
type jobPG struct { // implements kdb.Interface
	pool    kpool.Pool
	backoff Backoff
}

type Option func(*jobPG) *jobPG

func WithBackoff(b Backoff) Option {
	return func(j *jobPG) *jobPG {
		j.backoff = b
		return j
	}
}

func New(pool kpool.Pool, options ...Option) *jobPG {
	j := &jobPG{
		pool:    pool,
		backoff: DefaultBackoff(),
	}
	for _, o := range options {
		j = o(j)
	}
	return j
}

var _ kdb.Interface = &jobPG{}

func (m *jobPG) Enqueue(ctx context.Context, tx kpool.Tx, recordId string, kind domain.RecordType) (domain.Job, error) {
	jobId := uuid.NewString()

	job := domain.Job{
		Id:       jobId,
		RecordId: recordId,
		Kind:     kind,
		Status:   domain.JobQueued,
	}

	// The insert itself proves the approval is "approved": without such a
	// row, no job row appears.
	if err := tx.QueryRow(
		ctx,
		`
		insert into "job" ("job_id", "record_id", "kind")
		select $1, "record_id", $2
		from "approval"
		where "record_id" = $3 and "status" = 'approved'
		returning "created_at", "updated_at", "next_attempt_at"
		`,
		jobId, string(kind), recordId,
	).Scan(&job.CreatedAt, &job.UpdatedAt, &job.NextAttemptAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Job{}, fmt.Errorf("%w: record %s", domain.ErrJobNotApproved, recordId)
		}
		if pgerr := new(pgconn.PgError); errors.As(err, &pgerr) &&
			pgerr.Code == pgerrcode.UniqueViolation {
			return domain.Job{}, fmt.Errorf("%w: record %s", domain.ErrJobAlreadyExists, recordId)
		}
		return domain.Job{}, err
	}

	return job, nil
}

func (m *jobPG) Get(ctx context.Context, jobId []string) (map[string]domain.Job, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "job_id", "record_id", "kind", "status",
		       "attempts", "next_attempt_at", "created_at", "updated_at"
		from "job"
		where "job_id" = any($1)
		`,
		jobId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result[j.Id] = j
	}
	return result, nil
}

func (m *jobPG) FindByRecord(ctx context.Context, recordId string) ([]domain.Job, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "job_id", "record_id", "kind", "status",
		       "attempts", "next_attempt_at", "created_at", "updated_at"
		from "job"
		where "record_id" = $1
		order by "created_at" desc
		`,
		recordId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []domain.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		j      domain.Job
		kind   string
		status string
	)
	if err := row.Scan(
		&j.Id, &j.RecordId, &kind, &status,
		&j.Attempts, &j.NextAttemptAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return domain.Job{}, err
	}

	var err error
	if j.Kind, err = domain.AsRecordType(kind); err != nil {
		return domain.Job{}, err
	}
	if j.Status, err = domain.AsJobStatus(status); err != nil {
		return domain.Job{}, err
	}
	return j, nil
}

func (m *jobPG) PickAndComplete(
	ctx context.Context, cursor domain.JobCursor,
	task func(domain.Job) (kdb.Outcome, error),
) (domain.JobCursor, bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return cursor, false, err
	}
	defer tx.Rollback(ctx)

	kinds := make([]string, len(cursor.Kind))
	for i, k := range cursor.Kind {
		kinds[i] = string(k)
	}

	// claim one due job. The job picked last time goes to the back of the
	// line so one poisoned job cannot starve its siblings.
	var jobId string
	if err := tx.QueryRow(
		ctx,
		`
		select "job_id" from "job"
		where "status" = 'queued'
		  and "next_attempt_at" <= now()
		  and (cardinality($1::varchar[]) = 0 or "kind" = any($1))
		order by "job_id" = $2, "next_attempt_at", "job_id"
		for update skip locked
		limit 1
		`,
		kinds, cursor.Head,
	).Scan(&jobId); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cursor, false, nil // nothing to do
		}
		return cursor, false, err
	}

	row := tx.QueryRow(
		ctx,
		`
		update "job"
		set "status" = 'claimed', "attempts" = "attempts" + 1, "updated_at" = now()
		where "job_id" = $1
		returning "job_id", "record_id", "kind", "status",
		          "attempts", "next_attempt_at", "created_at", "updated_at"
		`,
		jobId,
	)
	job, err := scanJob(row)
	if err != nil {
		return cursor, false, err
	}

	nextCursor := domain.JobCursor{Head: job.Id, Kind: cursor.Kind}

	// Claiming is the execution transition. Both updates are no-ops when a
	// retry attempt finds them already done.
	if _, err := tx.Exec(
		ctx,
		`update "approval" set "status" = 'executing', "updated_at" = now()
		 where "record_id" = $1 and "status" = 'approved'`,
		job.RecordId,
	); err != nil {
		return nextCursor, false, err
	}
	if _, err := tx.Exec(
		ctx,
		`update "work_record" set "status" = 'processing'
		 where "record_id" = $1 and "status" = 'pending'`,
		job.RecordId,
	); err != nil {
		return nextCursor, false, err
	}

	outcome, err := task(job)
	if err != nil {
		return nextCursor, false, err // rollback: the claim never happened
	}

	switch outcome.JobStatus {
	case domain.JobQueued:
		if _, err := tx.Exec(
			ctx,
			`
			update "job"
			set "status" = 'queued', "next_attempt_at" = now() + $1, "updated_at" = now()
			where "job_id" = $2
			`,
			m.backoff(job.Attempts), job.Id,
		); err != nil {
			return nextCursor, false, err
		}
	case domain.JobDone, domain.JobCancelled:
		if _, err := tx.Exec(
			ctx,
			`update "job" set "status" = $1, "updated_at" = now() where "job_id" = $2`,
			string(outcome.JobStatus), job.Id,
		); err != nil {
			return nextCursor, false, err
		}
	default:
		return nextCursor, false, fmt.Errorf("job %s cannot be settled as %s", job.Id, outcome.JobStatus)
	}

	if outcome.RecordStatus != "" {
		if err := recordpg.SetStatusTx(ctx, tx, job.RecordId, outcome.RecordStatus, outcome.ErrorDetail); err != nil {
			return nextCursor, false, err
		}
	}
	if outcome.ApprovalStatus != "" {
		if err := approvalpg.SetStatusTx(ctx, tx, job.RecordId, outcome.ApprovalStatus); err != nil {
			return nextCursor, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nextCursor, false, err
	}
	return nextCursor, true, nil
}
