package db

import (
	"context"

	"github.com/cloudpasture/shepherd/pkg/domain"
)

type Interface interface {
	// register a new size definition. Name must be unique.
	Create(ctx context.Context, spec domain.SizeDefinition) (domain.SizeDefinition, error)

	// replace an existing definition, keeping id and created_at.
	//
	// Records approved before this edit keep their snapshots; the edit
	// reaches only approvals decided afterwards.
	Update(ctx context.Context, name string, spec domain.SizeDefinition) (domain.SizeDefinition, error)

	// Deactivate hides the definition from new requests. Definitions are
	// never deleted: snapshots and old records may still point at them.
	Deactivate(ctx context.Context, name string) error

	GetByName(ctx context.Context, name string) (domain.SizeDefinition, error)

	// List definitions, enabled ones only when enabledOnly, ordered for
	// display.
	List(ctx context.Context, enabledOnly bool) ([]domain.SizeDefinition, error)
}
