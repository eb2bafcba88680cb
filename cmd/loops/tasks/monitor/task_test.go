package monitor_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	kubecore "k8s.io/api/core/v1"
	kubestorage "k8s.io/api/storage/v1"
	kuberesource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/cloudpasture/shepherd/cmd/loops/hook"
	"github.com/cloudpasture/shepherd/cmd/loops/tasks/monitor"
	"github.com/cloudpasture/shepherd/pkg/domain"
	clustermock "github.com/cloudpasture/shepherd/pkg/domain/cluster/db/mock"
	k8smock "github.com/cloudpasture/shepherd/pkg/domain/cluster/k8s/mock"
	dberrors "github.com/cloudpasture/shepherd/pkg/domain/errors/dberrors"
)

func silent() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// answering fakes a cluster reporting version and one GPU node.
func answering(version string) *k8smock.MockCluster {
	cl := k8smock.NewCluster()
	cl.Impl.ServerVersion = func(ctx context.Context) (string, error) {
		return version, nil
	}
	cl.Impl.ListNodes = func(ctx context.Context) ([]kubecore.Node, error) {
		node := kubecore.Node{}
		node.Status.Allocatable = kubecore.ResourceList{
			"nvidia.com/gpu": kuberesource.MustParse("2"),
		}
		return []kubecore.Node{node}, nil
	}
	cl.Impl.ListStorageClasses = func(ctx context.Context) ([]kubestorage.StorageClass, error) {
		return nil, nil
	}
	return cl
}

type refreshLog struct {
	refreshed []string
	err       error
}

func (r *refreshLog) Refresh(ctx context.Context, minorVersion string) error {
	r.refreshed = append(r.refreshed, minorVersion)
	return r.err
}

func noHook() hook.Hook[monitor.VersionChange, struct{}] {
	return hook.None[monitor.VersionChange]{}
}

func TestTask(t *testing.T) {

	t.Run("it upserts a snapshot per target", func(t *testing.T) {
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{
				ClusterId: clusterId, PlatformVersion: "1.0.3",
			}, nil
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return nil
		}

		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: answering("1.0.3")},
			{ClusterId: "staging-1", Environment: domain.Staging, Cluster: answering("1.0.3")},
		}
		refresher := &refreshLog{}

		testee := monitor.Task(silent(), mockCluster, targets, refresher, noHook())
		_, backlog, err := testee(context.Background(), monitor.Seed())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if backlog {
			t.Error("a full sweep should report no backlog")
		}

		if len(mockCluster.Calls.Upsert) != 2 {
			t.Fatalf("upsert is called %d times, not twice", len(mockCluster.Calls.Upsert))
		}
		first := mockCluster.Calls.Upsert[0]
		if first.ClusterId != "prod-east" || !first.Healthy {
			t.Errorf("unexpected first snapshot: %+v", first)
		}
		if len(first.GPUDevices) != 1 || first.GPUDevices[0] != "nvidia.com/gpu" {
			t.Errorf("gpu devices are not discovered: %+v", first.GPUDevices)
		}

		if len(refresher.refreshed) != 0 {
			t.Errorf("no version changed, but refreshed: %+v", refresher.refreshed)
		}
	})

	t.Run("it refreshes the schema and notifies when the version changes", func(t *testing.T) {
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{
				ClusterId: clusterId, PlatformVersion: "1.0.3",
			}, nil
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return nil
		}

		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: answering("1.1.0")},
		}
		refresher := &refreshLog{}

		notified := []monitor.VersionChange{}
		after := []monitor.VersionChange{}
		notify := hook.Func[monitor.VersionChange, struct{}]{
			BeforeFn: func(v monitor.VersionChange) (struct{}, error) {
				notified = append(notified, v)
				return struct{}{}, nil
			},
			AfterFn: func(v monitor.VersionChange) error {
				after = append(after, v)
				return nil
			},
		}

		testee := monitor.Task(silent(), mockCluster, targets, refresher, notify)
		if _, _, err := testee(context.Background(), monitor.Seed()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(refresher.refreshed) != 1 || refresher.refreshed[0] != "1.1" {
			t.Errorf("unexpected refreshes: %+v", refresher.refreshed)
		}
		if len(notified) != 1 {
			t.Fatalf("before hook is called %d times, not once", len(notified))
		}
		expected := monitor.VersionChange{
			ClusterId:       "prod-east",
			PlatformVersion: "1.1.0",
			MinorVersion:    "1.1",
			PreviousVersion: "1.0.3",
		}
		if notified[0] != expected {
			t.Errorf("unmatch change:\n- actual:   %+v\n- expected: %+v", notified[0], expected)
		}
		if len(after) != 1 || after[0] != expected {
			t.Errorf("unmatch after-hook calls: %+v", after)
		}
	})

	t.Run("it notifies on the first sighting of a cluster", func(t *testing.T) {
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{}, dberrors.Missing{
				Table: "cluster_capability", Identity: clusterId,
			}
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return nil
		}

		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: answering("1.0.3")},
		}
		refresher := &refreshLog{}

		testee := monitor.Task(silent(), mockCluster, targets, refresher, noHook())
		if _, _, err := testee(context.Background(), monitor.Seed()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(refresher.refreshed) != 1 || refresher.refreshed[0] != "1.0" {
			t.Errorf("unexpected refreshes: %+v", refresher.refreshed)
		}
	})

	t.Run("it upserts an unhealthy snapshot when the cluster does not answer", func(t *testing.T) {
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{
				ClusterId: clusterId, PlatformVersion: "1.0.3",
			}, nil
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return nil
		}

		deaf := k8smock.NewCluster()
		deaf.Impl.ServerVersion = func(ctx context.Context) (string, error) {
			return "", errors.New("connection refused")
		}
		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: deaf},
		}
		refresher := &refreshLog{}

		testee := monitor.Task(silent(), mockCluster, targets, refresher, noHook())
		if _, _, err := testee(context.Background(), monitor.Seed()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(mockCluster.Calls.Upsert) != 1 {
			t.Fatalf("upsert is called %d times, not once", len(mockCluster.Calls.Upsert))
		}
		if mockCluster.Calls.Upsert[0].Healthy {
			t.Error("the snapshot should be unhealthy")
		}
		if len(refresher.refreshed) != 0 {
			t.Errorf("an empty version should not trigger a refresh: %+v", refresher.refreshed)
		}
	})

	t.Run("it skips the refresh when the before hook vetoes", func(t *testing.T) {
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{ClusterId: clusterId, PlatformVersion: "1.0.3"}, nil
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return nil
		}

		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: answering("1.1.0")},
		}
		refresher := &refreshLog{}
		veto := hook.Func[monitor.VersionChange, struct{}]{
			BeforeFn: func(v monitor.VersionChange) (struct{}, error) {
				return struct{}{}, errors.New("not now")
			},
			AfterFn: func(v monitor.VersionChange) error {
				t.Error("after hook should not be called")
				return nil
			},
		}

		testee := monitor.Task(silent(), mockCluster, targets, refresher, veto)
		if _, _, err := testee(context.Background(), monitor.Seed()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(refresher.refreshed) != 0 {
			t.Errorf("vetoed, but refreshed: %+v", refresher.refreshed)
		}
	})

	t.Run("it stops the sweep when the store fails", func(t *testing.T) {
		expectedErr := errors.New("fake db error")
		mockCluster := clustermock.NewClusterInterface()
		mockCluster.Impl.Get = func(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
			return domain.CapabilitySnapshot{}, nil
		}
		mockCluster.Impl.Upsert = func(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
			return expectedErr
		}

		targets := []monitor.Target{
			{ClusterId: "prod-east", Environment: domain.Production, Cluster: answering("1.0.3")},
			{ClusterId: "staging-1", Environment: domain.Staging, Cluster: answering("1.0.3")},
		}

		testee := monitor.Task(silent(), mockCluster, targets, &refreshLog{}, noHook())
		_, _, err := testee(context.Background(), monitor.Seed())
		if !errors.Is(err, expectedErr) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(mockCluster.Calls.Upsert) != 1 {
			t.Errorf("the sweep should stop at the first failure: %d upserts", len(mockCluster.Calls.Upsert))
		}
	})
}
