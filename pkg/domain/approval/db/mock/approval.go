package mock

import (
	"context"
	"errors"

	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/approval/db"
	dbmock "github.com/cloudpasture/shepherd/pkg/domain/internal/db/mock"
	recorddb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
)

type ApprovalInterface struct {
	Impl struct {
		Submit  func(ctx context.Context, spec recorddb.NewWorkRecord) (domain.WorkRecord, domain.Approval, error)
		Get     func(ctx context.Context, recordId []string) (map[string]domain.Approval, error)
		Approve func(ctx context.Context, recordId string, decision kdb.Decision) (domain.Approval, error)
		Reject  func(ctx context.Context, recordId string, decision kdb.Decision) error
		Cancel  func(ctx context.Context, recordId string, decision kdb.Decision) error
	}

	Calls struct {
		Submit  dbmock.CallLog[recorddb.NewWorkRecord]
		Get     dbmock.CallLog[[]string]
		Approve dbmock.CallLog[struct {
			RecordId string
			Decision kdb.Decision
		}]
		Reject dbmock.CallLog[struct {
			RecordId string
			Decision kdb.Decision
		}]
		Cancel dbmock.CallLog[struct {
			RecordId string
			Decision kdb.Decision
		}]
	}
}

func NewApprovalInterface() *ApprovalInterface {
	return &ApprovalInterface{}
}

var _ kdb.Interface = &ApprovalInterface{}

func (m *ApprovalInterface) Submit(ctx context.Context, spec recorddb.NewWorkRecord) (domain.WorkRecord, domain.Approval, error) {
	m.Calls.Submit = append(m.Calls.Submit, spec)
	if m.Impl.Submit != nil {
		return m.Impl.Submit(ctx, spec)
	}

	panic(errors.New("it should not be called"))
}

func (m *ApprovalInterface) Get(ctx context.Context, recordId []string) (map[string]domain.Approval, error) {
	m.Calls.Get = append(m.Calls.Get, recordId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, recordId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ApprovalInterface) Approve(ctx context.Context, recordId string, decision kdb.Decision) (domain.Approval, error) {
	m.Calls.Approve = append(m.Calls.Approve, struct {
		RecordId string
		Decision kdb.Decision
	}{RecordId: recordId, Decision: decision})
	if m.Impl.Approve != nil {
		return m.Impl.Approve(ctx, recordId, decision)
	}

	panic(errors.New("it should not be called"))
}

func (m *ApprovalInterface) Reject(ctx context.Context, recordId string, decision kdb.Decision) error {
	m.Calls.Reject = append(m.Calls.Reject, struct {
		RecordId string
		Decision kdb.Decision
	}{RecordId: recordId, Decision: decision})
	if m.Impl.Reject != nil {
		return m.Impl.Reject(ctx, recordId, decision)
	}

	panic(errors.New("it should not be called"))
}

func (m *ApprovalInterface) Cancel(ctx context.Context, recordId string, decision kdb.Decision) error {
	m.Calls.Cancel = append(m.Calls.Cancel, struct {
		RecordId string
		Decision kdb.Decision
	}{RecordId: recordId, Decision: decision})
	if m.Impl.Cancel != nil {
		return m.Impl.Cancel(ctx, recordId, decision)
	}

	panic(errors.New("it should not be called"))
}
