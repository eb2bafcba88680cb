package mock

import (
	"context"
	"errors"

	"github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	dbmock "github.com/cloudpasture/shepherd/pkg/domain/internal/db/mock"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/job/db"
)

type JobInterface struct {
	Impl struct {
		Enqueue         func(ctx context.Context, tx pool.Tx, recordId string, kind domain.RecordType) (domain.Job, error)
		Get             func(ctx context.Context, jobId []string) (map[string]domain.Job, error)
		FindByRecord    func(ctx context.Context, recordId string) ([]domain.Job, error)
		PickAndComplete func(ctx context.Context, cursor domain.JobCursor, task func(domain.Job) (kdb.Outcome, error)) (domain.JobCursor, bool, error)
	}

	Calls struct {
		Enqueue dbmock.CallLog[struct {
			RecordId string
			Kind     domain.RecordType
		}]
		Get             dbmock.CallLog[[]string]
		FindByRecord    dbmock.CallLog[string]
		PickAndComplete dbmock.CallLog[domain.JobCursor]
	}
}

func NewJobInterface() *JobInterface {
	return &JobInterface{}
}

var _ kdb.Interface = &JobInterface{}

func (m *JobInterface) Enqueue(ctx context.Context, tx pool.Tx, recordId string, kind domain.RecordType) (domain.Job, error) {
	m.Calls.Enqueue = append(m.Calls.Enqueue, struct {
		RecordId string
		Kind     domain.RecordType
	}{RecordId: recordId, Kind: kind})
	if m.Impl.Enqueue != nil {
		return m.Impl.Enqueue(ctx, tx, recordId, kind)
	}

	panic(errors.New("it should not be called"))
}

func (m *JobInterface) Get(ctx context.Context, jobId []string) (map[string]domain.Job, error) {
	m.Calls.Get = append(m.Calls.Get, jobId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, jobId)
	}

	panic(errors.New("it should not be called"))
}

func (m *JobInterface) FindByRecord(ctx context.Context, recordId string) ([]domain.Job, error) {
	m.Calls.FindByRecord = append(m.Calls.FindByRecord, recordId)
	if m.Impl.FindByRecord != nil {
		return m.Impl.FindByRecord(ctx, recordId)
	}

	panic(errors.New("it should not be called"))
}

func (m *JobInterface) PickAndComplete(ctx context.Context, cursor domain.JobCursor, task func(domain.Job) (kdb.Outcome, error)) (domain.JobCursor, bool, error) {
	m.Calls.PickAndComplete = append(m.Calls.PickAndComplete, cursor)
	if m.Impl.PickAndComplete != nil {
		return m.Impl.PickAndComplete(ctx, cursor, task)
	}

	panic(errors.New("it should not be called"))
}
