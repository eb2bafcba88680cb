package domain

import (
	"fmt"
	"time"

	"github.com/cloudpasture/shepherd/pkg/utils/cmp"
)

// Environment classifies a cluster or a request target.
type Environment string

const (
	Production Environment = "production"
	Staging    Environment = "staging"
	Test       Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

func AsEnvironment(s string) (Environment, error) {
	switch s {
	case string(Production):
		return Production, nil
	case string(Staging):
		return Staging, nil
	case string(Test):
		return Test, nil
	default:
		return "", fmt.Errorf("'%s' is not Environment", s)
	}
}

// CapabilitySnapshot holds a cluster's auto-detected facts.
//
// Snapshots are refreshed by the monitor loop and read-only to everyone
// else. Staleness is bounded by the loop interval and accepted; the
// approval pipeline never depends on a snapshot being fresh.
type CapabilitySnapshot struct {
	ClusterId string

	GPUDevices     []string
	HugepageSizes  []string
	SRIOVNetworks  []string
	StorageClasses []string

	// version string the cluster reports, e.g. "1.2.3".
	PlatformVersion string

	Environment Environment

	Healthy   bool
	CheckedAt time.Time
}

func (c *CapabilitySnapshot) Equal(o *CapabilitySnapshot) bool {
	if (c == nil) || (o == nil) {
		return (c == nil) && (o == nil)
	}
	return c.ClusterId == o.ClusterId &&
		cmp.SliceContentEq(c.GPUDevices, o.GPUDevices) &&
		cmp.SliceContentEq(c.HugepageSizes, o.HugepageSizes) &&
		cmp.SliceContentEq(c.SRIOVNetworks, o.SRIOVNetworks) &&
		cmp.SliceContentEq(c.StorageClasses, o.StorageClasses) &&
		c.PlatformVersion == o.PlatformVersion &&
		c.Environment == o.Environment &&
		c.Healthy == o.Healthy
}
