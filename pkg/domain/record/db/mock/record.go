package mock

import (
	"context"
	"errors"

	"github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	dbmock "github.com/cloudpasture/shepherd/pkg/domain/internal/db/mock"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
)

type RecordInterface struct {
	Impl struct {
		Create    func(ctx context.Context, tx pool.Tx, spec kdb.NewWorkRecord) (domain.WorkRecord, error)
		Get       func(ctx context.Context, recordId []string) (map[string]domain.WorkRecord, error)
		Find      func(ctx context.Context, query domain.RecordFindQuery) ([]string, error)
		SetStatus func(ctx context.Context, recordId string, newStatus domain.RecordStatus, errorDetail string) error
		Update    func(ctx context.Context, recordId string, mutation kdb.RecordMutation) error
	}

	Calls struct {
		Create    dbmock.CallLog[kdb.NewWorkRecord]
		Get       dbmock.CallLog[[]string]
		Find      dbmock.CallLog[domain.RecordFindQuery]
		SetStatus dbmock.CallLog[struct {
			RecordId    string
			NewStatus   domain.RecordStatus
			ErrorDetail string
		}]
		Update dbmock.CallLog[struct {
			RecordId string
			Mutation kdb.RecordMutation
		}]
	}
}

func NewRecordInterface() *RecordInterface {
	return &RecordInterface{}
}

var _ kdb.Interface = &RecordInterface{}

func (m *RecordInterface) Create(ctx context.Context, tx pool.Tx, spec kdb.NewWorkRecord) (domain.WorkRecord, error) {
	m.Calls.Create = append(m.Calls.Create, spec)
	if m.Impl.Create != nil {
		return m.Impl.Create(ctx, tx, spec)
	}

	panic(errors.New("it should not be called"))
}

func (m *RecordInterface) Get(ctx context.Context, recordId []string) (map[string]domain.WorkRecord, error) {
	m.Calls.Get = append(m.Calls.Get, recordId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, recordId)
	}

	panic(errors.New("it should not be called"))
}

func (m *RecordInterface) Find(ctx context.Context, query domain.RecordFindQuery) ([]string, error) {
	m.Calls.Find = append(m.Calls.Find, query)
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, query)
	}

	panic(errors.New("it should not be called"))
}

func (m *RecordInterface) SetStatus(ctx context.Context, recordId string, newStatus domain.RecordStatus, errorDetail string) error {
	m.Calls.SetStatus = append(m.Calls.SetStatus, struct {
		RecordId    string
		NewStatus   domain.RecordStatus
		ErrorDetail string
	}{RecordId: recordId, NewStatus: newStatus, ErrorDetail: errorDetail})
	if m.Impl.SetStatus != nil {
		return m.Impl.SetStatus(ctx, recordId, newStatus, errorDetail)
	}

	panic(errors.New("it should not be called"))
}

func (m *RecordInterface) Update(ctx context.Context, recordId string, mutation kdb.RecordMutation) error {
	m.Calls.Update = append(m.Calls.Update, struct {
		RecordId string
		Mutation kdb.RecordMutation
	}{RecordId: recordId, Mutation: mutation})
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, recordId, mutation)
	}

	panic(errors.New("it should not be called"))
}
