package mock

import (
	"context"
	"errors"

	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	dbmock "github.com/cloudpasture/shepherd/pkg/domain/internal/db/mock"
)

type ClusterInterface struct {
	Impl struct {
		Upsert func(ctx context.Context, snapshot domain.CapabilitySnapshot) error
		Get    func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error)
		List   func(ctx context.Context) ([]domain.CapabilitySnapshot, error)
	}

	Calls struct {
		Upsert dbmock.CallLog[domain.CapabilitySnapshot]
		Get    dbmock.CallLog[string]
		List   dbmock.CallLog[struct{}]
	}
}

func NewClusterInterface() *ClusterInterface {
	return &ClusterInterface{}
}

var _ kdb.Interface = &ClusterInterface{}

func (m *ClusterInterface) Upsert(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
	m.Calls.Upsert = append(m.Calls.Upsert, snapshot)
	if m.Impl.Upsert != nil {
		return m.Impl.Upsert(ctx, snapshot)
	}

	panic(errors.New("it should not be called"))
}

func (m *ClusterInterface) Get(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
	m.Calls.Get = append(m.Calls.Get, clusterId)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, clusterId)
	}

	panic(errors.New("it should not be called"))
}

func (m *ClusterInterface) List(ctx context.Context) ([]domain.CapabilitySnapshot, error) {
	m.Calls.List = append(m.Calls.List, struct{}{})
	if m.Impl.List != nil {
		return m.Impl.List(ctx)
	}

	panic(errors.New("it should not be called"))
}
