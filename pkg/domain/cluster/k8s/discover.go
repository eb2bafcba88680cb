package k8s

import (
	"context"
	"strings"
	"time"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

// resource name prefixes nodes advertise for special hardware.
const (
	gpuResourcePrefix      = "nvidia.com/"
	hugepageResourcePrefix = "hugepages-"
	sriovResourceMarker    = "sriov"
)

// Discover probes cl and reports what it can offer.
//
// Returns an unhealthy snapshot instead of an error when the cluster does
// not answer; the caller upserts it as-is so that staleness is visible.
func Discover(ctx context.Context, cl Cluster, clusterId string, environment domain.Environment) domain.CapabilitySnapshot {
	snapshot := domain.CapabilitySnapshot{
		ClusterId:   clusterId,
		Environment: environment,
		CheckedAt:   time.Now(),
	}

	version, err := cl.ServerVersion(ctx)
	if err != nil {
		return snapshot
	}
	snapshot.PlatformVersion = version

	nodes, err := cl.ListNodes(ctx)
	if err != nil {
		return snapshot
	}

	gpus := map[string]struct{}{}
	hugepages := map[string]struct{}{}
	sriov := map[string]struct{}{}
	for _, node := range nodes {
		for name, quantity := range node.Status.Allocatable {
			if quantity.IsZero() {
				continue
			}
			resource := string(name)
			switch {
			case strings.HasPrefix(resource, gpuResourcePrefix):
				gpus[resource] = struct{}{}
			case strings.HasPrefix(resource, hugepageResourcePrefix):
				hugepages[strings.TrimPrefix(resource, hugepageResourcePrefix)] = struct{}{}
			case strings.Contains(resource, sriovResourceMarker):
				sriov[resource] = struct{}{}
			}
		}
	}
	snapshot.GPUDevices = keysOf(gpus)
	snapshot.HugepageSizes = keysOf(hugepages)
	snapshot.SRIOVNetworks = keysOf(sriov)

	classes, err := cl.ListStorageClasses(ctx)
	if err != nil {
		return snapshot
	}
	for _, class := range classes {
		snapshot.StorageClasses = append(snapshot.StorageClasses, class.Name)
	}

	snapshot.Healthy = true
	return snapshot
}

func keysOf(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}
