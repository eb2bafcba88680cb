package schema

import (
	"context"

	_ "embed"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
)

//go:embed schema.sql
var ddl string

// Apply brings the database up to the current schema.
//
// The DDL is written to be idempotent, so daemons call this at startup
// unconditionally.
func Apply(ctx context.Context, pool kpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ddl); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Version reports the highest applied schema version.
func Version(ctx context.Context, pool kpool.Pool) (int, error) {
	var version int
	if err := pool.QueryRow(
		ctx, `select max("version") from "schema_version"`,
	).Scan(&version); err != nil {
		return -1, err
	}
	return version, nil
}
