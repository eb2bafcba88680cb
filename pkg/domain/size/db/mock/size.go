package mock

import (
	"context"
	"errors"

	"github.com/cloudpasture/shepherd/pkg/domain"
	dbmock "github.com/cloudpasture/shepherd/pkg/domain/internal/db/mock"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/size/db"
)

type SizeInterface struct {
	Impl struct {
		Create     func(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error)
		Update     func(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error)
		Deactivate func(ctx context.Context, name string) error
		GetByName  func(ctx context.Context, name string) (domain.SizeDefinition, error)
		List       func(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error)
	}

	Calls struct {
		Create     dbmock.CallLog[domain.SizeDefinition]
		Update     dbmock.CallLog[struct {
			Name string
			Spec domain.SizeDefinition
		}]
		Deactivate dbmock.CallLog[string]
		GetByName  dbmock.CallLog[string]
		List       dbmock.CallLog[bool]
	}
}

func NewSizeInterface() *SizeInterface {
	return &SizeInterface{}
}

var _ kdb.Interface = &SizeInterface{}

func (m *SizeInterface) Create(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
	m.Calls.Create = append(m.Calls.Create, spec)
	if m.Impl.Create != nil {
		return m.Impl.Create(ctx, spec)
	}

	panic(errors.New("it should not be called"))
}

func (m *SizeInterface) Update(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
	m.Calls.Update = append(m.Calls.Update, struct {
		Name string
		Spec domain.SizeDefinition
	}{Name: name, Spec: spec})
	if m.Impl.Update != nil {
		return m.Impl.Update(ctx, name, spec)
	}

	panic(errors.New("it should not be called"))
}

func (m *SizeInterface) Deactivate(ctx context.Context, name string) error {
	m.Calls.Deactivate = append(m.Calls.Deactivate, name)
	if m.Impl.Deactivate != nil {
		return m.Impl.Deactivate(ctx, name)
	}

	panic(errors.New("it should not be called"))
}

func (m *SizeInterface) GetByName(ctx context.Context, name string) (domain.SizeDefinition, error) {
	m.Calls.GetByName = append(m.Calls.GetByName, name)
	if m.Impl.GetByName != nil {
		return m.Impl.GetByName(ctx, name)
	}

	panic(errors.New("it should not be called"))
}

func (m *SizeInterface) List(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error) {
	m.Calls.List = append(m.Calls.List, enabledOnly)
	if m.Impl.List != nil {
		return m.Impl.List(ctx, enabledOnly)
	}

	panic(errors.New("it should not be called"))
}
