package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdberr "github.com/cloudpasture/shepherd/pkg/domain/errors/dberrors"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/size/db"
)

type sizePG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *sizePG {
	return &sizePG{pool: pool}
}

var _ kdb.Interface = &sizePG{}

const sizeColumns = `
	"id", "name", "display_name", "description",
	"cpu_cores", "memory_mb", "disk_gb",
	"cpu_request", "memory_request_mb", "dedicated_cpu",
	"requires_gpu", "gpu_device", "requires_sriov", "hugepage_size",
	"extras", "sort_order", "enabled", "created_by", "created_at", "updated_at"
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSize(row rowScanner) (domain.SizeDefinition, error) {
	var s domain.SizeDefinition
	if err := row.Scan(
		&s.Id, &s.Name, &s.DisplayName, &s.Description,
		&s.CPUCores, &s.MemoryMB, &s.DiskGB,
		&s.CPURequest, &s.MemoryRequestMB, &s.DedicatedCPU,
		&s.RequiresGPU, &s.GPUDevice, &s.RequiresSRIOV, &s.HugepageSize,
		&s.Extras, &s.SortOrder, &s.Enabled, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return domain.SizeDefinition{}, err
	}
	return s, nil
}

func (m *sizePG) Create(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
	row := m.pool.QueryRow(
		ctx,
		`
		insert into "instance_size" (
			"id", "name", "display_name", "description",
			"cpu_cores", "memory_mb", "disk_gb",
			"cpu_request", "memory_request_mb", "dedicated_cpu",
			"requires_gpu", "gpu_device", "requires_sriov", "hugepage_size",
			"extras", "sort_order", "created_by"
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		returning `+sizeColumns,
		uuid.NewString(), spec.Name, spec.DisplayName, spec.Description,
		spec.CPUCores, spec.MemoryMB, spec.DiskGB,
		spec.CPURequest, spec.MemoryRequestMB, spec.DedicatedCPU,
		spec.RequiresGPU, spec.GPUDevice, spec.RequiresSRIOV, spec.HugepageSize,
		spec.Extras, spec.SortOrder, spec.CreatedBy,
	)
	s, err := scanSize(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.SizeDefinition{}, domain.ErrSizeNameConflict
		}
		return domain.SizeDefinition{}, err
	}
	return s, nil
}

func (m *sizePG) Update(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error) {
	row := m.pool.QueryRow(
		ctx,
		`
		update "instance_size"
		set "display_name" = $1, "description" = $2,
		    "cpu_cores" = $3, "memory_mb" = $4, "disk_gb" = $5,
		    "cpu_request" = $6, "memory_request_mb" = $7, "dedicated_cpu" = $8,
		    "requires_gpu" = $9, "gpu_device" = $10, "requires_sriov" = $11,
		    "hugepage_size" = $12, "extras" = $13, "sort_order" = $14,
		    "updated_at" = now()
		where "name" = $15
		returning `+sizeColumns,
		spec.DisplayName, spec.Description,
		spec.CPUCores, spec.MemoryMB, spec.DiskGB,
		spec.CPURequest, spec.MemoryRequestMB, spec.DedicatedCPU,
		spec.RequiresGPU, spec.GPUDevice, spec.RequiresSRIOV,
		spec.HugepageSize, spec.Extras, spec.SortOrder,
		name,
	)
	s, err := scanSize(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SizeDefinition{}, kdberr.Missing{Table: "instance_size", Identity: name}
	}
	return s, err
}

func (m *sizePG) Deactivate(ctx context.Context, name string) error {
	tag, err := m.pool.Exec(
		ctx,
		`update "instance_size" set "enabled" = false, "updated_at" = now() where "name" = $1`,
		name,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() < 1 {
		return kdberr.Missing{Table: "instance_size", Identity: name}
	}
	return nil
}

func (m *sizePG) GetByName(ctx context.Context, name string) (domain.SizeDefinition, error) {
	row := m.pool.QueryRow(
		ctx,
		`select `+sizeColumns+` from "instance_size" where "name" = $1`,
		name,
	)
	s, err := scanSize(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.SizeDefinition{}, kdberr.Missing{Table: "instance_size", Identity: name}
	}
	return s, err
}

func (m *sizePG) List(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select `+sizeColumns+` from "instance_size"
		where (not $1) or "enabled"
		order by "sort_order", "name"
		`,
		enabledOnly,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := []domain.SizeDefinition{}
	for rows.Next() {
		s, err := scanSize(rows)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, nil
}
