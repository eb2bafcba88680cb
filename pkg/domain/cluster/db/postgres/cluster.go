package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/cluster/db"
	kdberr "github.com/cloudpasture/shepherd/pkg/domain/errors/dberrors"
)

type clusterPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *clusterPG {
	return &clusterPG{pool: pool}
}

var _ kdb.Interface = &clusterPG{}

func (m *clusterPG) Upsert(ctx context.Context, snapshot domain.CapabilitySnapshot) error {
	gpus, err := json.Marshal(orEmpty(snapshot.GPUDevices))
	if err != nil {
		return err
	}
	hugepages, err := json.Marshal(orEmpty(snapshot.HugepageSizes))
	if err != nil {
		return err
	}
	sriov, err := json.Marshal(orEmpty(snapshot.SRIOVNetworks))
	if err != nil {
		return err
	}
	storage, err := json.Marshal(orEmpty(snapshot.StorageClasses))
	if err != nil {
		return err
	}

	_, err = m.pool.Exec(
		ctx,
		`
		insert into "capability_snapshot" (
			"cluster_id", "gpu_devices", "hugepage_sizes", "sriov_networks",
			"storage_classes", "platform_version", "environment", "healthy",
			"checked_at"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, now())
		on conflict ("cluster_id") do update
		set "gpu_devices" = excluded."gpu_devices",
		    "hugepage_sizes" = excluded."hugepage_sizes",
		    "sriov_networks" = excluded."sriov_networks",
		    "storage_classes" = excluded."storage_classes",
		    "platform_version" = excluded."platform_version",
		    "environment" = excluded."environment",
		    "healthy" = excluded."healthy",
		    "checked_at" = now()
		`,
		snapshot.ClusterId, gpus, hugepages, sriov, storage,
		snapshot.PlatformVersion, string(snapshot.Environment), snapshot.Healthy,
	)
	return err
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (m *clusterPG) Get(ctx context.Context, clusterId string) (domain.CapabilitySnapshot, error) {
	row := m.pool.QueryRow(
		ctx,
		`
		select "cluster_id", "gpu_devices", "hugepage_sizes", "sriov_networks",
		       "storage_classes", "platform_version", "environment", "healthy",
		       "checked_at"
		from "capability_snapshot"
		where "cluster_id" = $1
		`,
		clusterId,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CapabilitySnapshot{}, kdberr.Missing{
			Table: "capability_snapshot", Identity: clusterId,
		}
	}
	return snap, err
}

func (m *clusterPG) List(ctx context.Context) ([]domain.CapabilitySnapshot, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select "cluster_id", "gpu_devices", "hugepage_sizes", "sriov_networks",
		       "storage_classes", "platform_version", "environment", "healthy",
		       "checked_at"
		from "capability_snapshot"
		order by "cluster_id"
		`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []domain.CapabilitySnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.CapabilitySnapshot, error) {
	var (
		snap        domain.CapabilitySnapshot
		gpus        []byte
		hugepages   []byte
		sriov       []byte
		storage     []byte
		environment string
	)
	if err := row.Scan(
		&snap.ClusterId, &gpus, &hugepages, &sriov,
		&storage, &snap.PlatformVersion, &environment, &snap.Healthy,
		&snap.CheckedAt,
	); err != nil {
		return domain.CapabilitySnapshot{}, err
	}

	for _, pair := range []struct {
		raw  []byte
		dest *[]string
	}{
		{gpus, &snap.GPUDevices},
		{hugepages, &snap.HugepageSizes},
		{sriov, &snap.SRIOVNetworks},
		{storage, &snap.StorageClasses},
	} {
		if err := json.Unmarshal(pair.raw, pair.dest); err != nil {
			return domain.CapabilitySnapshot{}, err
		}
	}

	environmentValue, err := domain.AsEnvironment(environment)
	if err != nil {
		return domain.CapabilitySnapshot{}, err
	}
	snap.Environment = environmentValue
	return snap, nil
}
