package clusters

import (
	"github.com/cloudpasture/shepherd/pkg/domain"
	"github.com/cloudpasture/shepherd/pkg/utils/cmp"
	"github.com/cloudpasture/shepherd/pkg/utils/rfctime"
)

// Detail is one cluster's capability snapshot as the API serves it.
type Detail struct {
	ClusterId       string          `json:"clusterId"`
	Environment     string          `json:"environment"`
	GPUDevices      []string        `json:"gpuDevices,omitempty"`
	HugepageSizes   []string        `json:"hugepageSizes,omitempty"`
	SRIOVNetworks   []string        `json:"sriovNetworks,omitempty"`
	StorageClasses  []string        `json:"storageClasses,omitempty"`
	PlatformVersion string          `json:"platformVersion,omitempty"`
	Healthy         bool            `json:"healthy"`
	CheckedAt       rfctime.RFC3339 `json:"checkedAt"`
}

func (d Detail) Equal(o Detail) bool {
	return d.ClusterId == o.ClusterId &&
		d.Environment == o.Environment &&
		cmp.SliceContentEq(d.GPUDevices, o.GPUDevices) &&
		cmp.SliceContentEq(d.HugepageSizes, o.HugepageSizes) &&
		cmp.SliceContentEq(d.SRIOVNetworks, o.SRIOVNetworks) &&
		cmp.SliceContentEq(d.StorageClasses, o.StorageClasses) &&
		d.PlatformVersion == o.PlatformVersion &&
		d.Healthy == o.Healthy
}

func ComposeDetail(snapshot domain.CapabilitySnapshot) Detail {
	return Detail{
		ClusterId:       snapshot.ClusterId,
		Environment:     snapshot.Environment.String(),
		GPUDevices:      snapshot.GPUDevices,
		HugepageSizes:   snapshot.HugepageSizes,
		SRIOVNetworks:   snapshot.SRIOVNetworks,
		StorageClasses:  snapshot.StorageClasses,
		PlatformVersion: snapshot.PlatformVersion,
		Healthy:         snapshot.Healthy,
		CheckedAt:       rfctime.RFC3339(snapshot.CheckedAt),
	}
}
