package validation

import (
	"encoding/json"

	"github.com/cloudpasture/shepherd/pkg/domain"
	"github.com/cloudpasture/shepherd/pkg/utils/cmp"
)

// Requirements are the hardware facts a configuration asks for, read from
// its known paths. Nothing here is interpreted; extraction is a pure read.
type Requirements struct {
	GPUDevices    []string
	HugepageSize  string
	SRIOVNetworks []string
	StorageClass  string

	Environment domain.Environment
}

// ExtractRequirements reads the requirement paths out of config.
//
// config should have passed Validate; fields absent or off-type are simply
// treated as "not required".
func ExtractRequirements(config []byte) (Requirements, error) {
	var doc struct {
		GPUDevices    []string `json:"gpu_devices"`
		HugepageSize  string   `json:"hugepage_size"`
		SRIOVNetworks []string `json:"sriov_networks"`
		StorageClass  string   `json:"storage_class"`
		Environment   string   `json:"environment"`
	}
	if err := json.Unmarshal(config, &doc); err != nil {
		return Requirements{}, err
	}

	req := Requirements{
		GPUDevices:    doc.GPUDevices,
		HugepageSize:  doc.HugepageSize,
		SRIOVNetworks: doc.SRIOVNetworks,
		StorageClass:  doc.StorageClass,
	}
	if doc.Environment != "" {
		environment, err := domain.AsEnvironment(doc.Environment)
		if err != nil {
			return Requirements{}, err
		}
		req.Environment = environment
	}
	return req, nil
}

// Candidate is one cluster able to satisfy a requirement set.
type Candidate struct {
	ClusterId string
	Snapshot  domain.CapabilitySnapshot
}

// MatchClusters filters snapshots down to those satisfying req.
//
// A cluster qualifies when it is healthy, its environment equals the
// requested one, and its capabilities are a superset of the requirements.
// The list is unranked and an empty list is a valid result: "no cluster
// can take this" is an answer for the approver, not an error.
func MatchClusters(req Requirements, snapshots []domain.CapabilitySnapshot) []Candidate {
	candidates := []Candidate{}
	for _, snapshot := range snapshots {
		if !snapshot.Healthy {
			continue
		}
		if snapshot.Environment != req.Environment {
			continue
		}
		if !cmp.SliceSubset(snapshot.GPUDevices, req.GPUDevices) {
			continue
		}
		if !cmp.SliceSubset(snapshot.SRIOVNetworks, req.SRIOVNetworks) {
			continue
		}
		if req.HugepageSize != "" &&
			!cmp.SliceSubset(snapshot.HugepageSizes, []string{req.HugepageSize}) {
			continue
		}
		if req.StorageClass != "" &&
			!cmp.SliceSubset(snapshot.StorageClasses, []string{req.StorageClass}) {
			continue
		}
		candidates = append(candidates, Candidate{
			ClusterId: snapshot.ClusterId, Snapshot: snapshot,
		})
	}
	return candidates
}
