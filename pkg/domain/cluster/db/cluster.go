package db

import (
	"context"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

type Interface interface {
	// store the latest detected facts for a cluster, replacing older ones.
	Upsert(ctx context.Context, snapshot domain.CapabilitySnapshot) error

	Get(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error)

	// List all known snapshots, healthy or not.
	List(ctx context.Context) ([]domain.CapabilitySnapshot, error)
}
