package mock

import (
	"context"
	"errors"

	kubecore "k8s.io/api/core/v1"
	kubestorage "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/cloudpasture/shepherd/pkg/domain"
	k8s "github.com/cloudpasture/shepherd/pkg/domain/cluster/k8s"
)

type MockCluster struct {
	Impl struct {
		ServerVersion      func(ctx context.Context) (string, error)
		ListNodes          func(ctx context.Context) ([]kubecore.Node, error)
		ListStorageClasses func(ctx context.Context) ([]kubestorage.StorageClass, error)

		GetVM            func(ctx context.Context, namespace string, name string) (*unstructured.Unstructured, error)
		CreateVM         func(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error)
		UpdateVM         func(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error)
		DeleteVM         func(ctx context.Context, namespace string, name string) error
		PatchVM          func(ctx context.Context, namespace string, name string, patch []byte) (*unstructured.Unstructured, error)
		DeleteVMInstance func(ctx context.Context, namespace string, name string) error
	}
}

func NewCluster() *MockCluster {
	return &MockCluster{}
}

var _ k8s.Cluster = &MockCluster{}

func (m *MockCluster) ServerVersion(ctx context.Context) (string, error) {
	if m.Impl.ServerVersion != nil {
		return m.Impl.ServerVersion(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) ListNodes(ctx context.Context) ([]kubecore.Node, error) {
	if m.Impl.ListNodes != nil {
		return m.Impl.ListNodes(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) ListStorageClasses(ctx context.Context) ([]kubestorage.StorageClass, error) {
	if m.Impl.ListStorageClasses != nil {
		return m.Impl.ListStorageClasses(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) GetVM(ctx context.Context, namespace string, name string) (*unstructured.Unstructured, error) {
	if m.Impl.GetVM != nil {
		return m.Impl.GetVM(ctx, namespace, name)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) CreateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if m.Impl.CreateVM != nil {
		return m.Impl.CreateVM(ctx, namespace, vm)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) UpdateVM(ctx context.Context, namespace string, vm *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if m.Impl.UpdateVM != nil {
		return m.Impl.UpdateVM(ctx, namespace, vm)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) DeleteVM(ctx context.Context, namespace string, name string) error {
	if m.Impl.DeleteVM != nil {
		return m.Impl.DeleteVM(ctx, namespace, name)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) PatchVM(ctx context.Context, namespace string, name string, patch []byte) (*unstructured.Unstructured, error) {
	if m.Impl.PatchVM != nil {
		return m.Impl.PatchVM(ctx, namespace, name, patch)
	}

	panic(errors.New("it should not be called"))
}

func (m *MockCluster) DeleteVMInstance(ctx context.Context, namespace string, name string) error {
	if m.Impl.DeleteVMInstance != nil {
		return m.Impl.DeleteVMInstance(ctx, namespace, name)
	}

	panic(errors.New("it should not be called"))
}

type MockExecutor struct {
	Impl struct {
		Execute func(ctx context.Context, op domain.RecordType, order k8s.VMOrder) error
	}

	Calls struct {
		Execute []struct {
			Op    domain.RecordType
			Order k8s.VMOrder
		}
	}
}

func NewExecutor() *MockExecutor {
	return &MockExecutor{}
}

var _ k8s.Executor = &MockExecutor{}

func (m *MockExecutor) Execute(ctx context.Context, op domain.RecordType, order k8s.VMOrder) error {
	m.Calls.Execute = append(m.Calls.Execute, struct {
		Op    domain.RecordType
		Order k8s.VMOrder
	}{Op: op, Order: order})
	if m.Impl.Execute != nil {
		return m.Impl.Execute(ctx, op, order)
	}

	panic(errors.New("it should not be called"))
}
