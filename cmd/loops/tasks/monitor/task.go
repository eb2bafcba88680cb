// Package monitor sweeps the configured clusters.
//
// Each cycle probes every cluster for its capabilities, upserts the
// snapshot, and reacts to platform version changes: webhooks fire and the
// schema cache refreshes so that the next approval validates against the
// new version, not a stale one.
package monitor

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cloudpasture/shepherd/cmd/loops/hook"
	"github.com/cloudpasture/shepherd/cmd/loops/recurring"
	"github.com/cloudpasture/shepherd/pkg/domain"
	clusterdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	"github.com/cloudpasture/shepherd/pkg/domain/cluster/k8s"
	"github.com/cloudpasture/shepherd/pkg/domain/schema"
)

// Target is one cluster this loop watches.
type Target struct {
	ClusterId   string
	Environment domain.Environment
	Cluster     k8s.Cluster
}

// SchemaRefresher is the part of the schema cache this loop drives.
type SchemaRefresher interface {
	Refresh(ctx context.Context, minorVersion string) error
}

// VersionChange is the webhook payload sent when a cluster reports a new
// platform version.
type VersionChange struct {
	ClusterId       string `json:"clusterId"`
	PlatformVersion string `json:"platformVersion"`
	MinorVersion    string `json:"minorVersion"`

	// empty when the cluster is seen for the first time.
	PreviousVersion string `json:"previousVersion,omitempty"`
}

// Seed returns the initial cursor: never swept.
func Seed() time.Time {
	return time.Time{}
}

func Task(
	logger *log.Logger,
	clusters clusterdb.Interface,
	targets []Target,
	schemas SchemaRefresher,
	notify hook.Hook[VersionChange, struct{}],
) recurring.Task[time.Time] {
	return func(ctx context.Context, _ time.Time) (time.Time, bool, error) {
		for _, target := range targets {
			previous, err := clusters.Get(ctx, target.ClusterId)
			if err != nil && !errors.Is(err, domain.ErrMissing) {
				return time.Now(), false, err
			}

			snapshot := k8s.Discover(ctx, target.Cluster, target.ClusterId, target.Environment)
			if err := clusters.Upsert(ctx, snapshot); err != nil {
				return time.Now(), false, err
			}
			if !snapshot.Healthy {
				logger.Printf("cluster %s did not answer fully. snapshot is stale.", target.ClusterId)
			}

			if snapshot.PlatformVersion == "" ||
				snapshot.PlatformVersion == previous.PlatformVersion {
				continue
			}

			change := VersionChange{
				ClusterId:       target.ClusterId,
				PlatformVersion: snapshot.PlatformVersion,
				MinorVersion:    schema.MinorVersion(snapshot.PlatformVersion),
				PreviousVersion: previous.PlatformVersion,
			}
			logger.Printf(
				"cluster %s moved to platform version %s (was: %q)",
				change.ClusterId, change.PlatformVersion, change.PreviousVersion,
			)

			if _, err := notify.Before(change); err != nil {
				logger.Printf("version change hook vetoed the refresh: %s", err)
				continue
			}
			if err := schemas.Refresh(ctx, change.MinorVersion); err != nil {
				logger.Printf(
					"schema refresh for %s failed: %s. fallback stays in place.",
					change.MinorVersion, err,
				)
			}
			if err := notify.After(change); err != nil {
				logger.Printf("version change after-hook failed: %s", err)
			}
		}

		// a sweep covers every target. nothing is ever left as backlog.
		return time.Now(), false, nil
	}
}
