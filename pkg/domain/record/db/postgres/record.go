package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
	kdberr "github.com/cloudpasture/shepherd/pkg/domain/errors/dberrors"
	kdb "github.com/cloudpasture/shepherd/pkg/domain/record/db"
)

// a struct for DB operations related to WorkRecord
type recordPG struct { // implements kdb.Interface
	pool kpool.Pool
}

func New(pool kpool.Pool) *recordPG {
	return &recordPG{pool: pool}
}

var _ kdb.Interface = &recordPG{}

func (m *recordPG) Create(ctx context.Context, tx kpool.Tx, spec kdb.NewWorkRecord) (domain.WorkRecord, error) {
	if _, err := domain.AsRecordType(spec.Type.String()); err != nil {
		return domain.WorkRecord{}, err
	}
	if len(spec.Payload) == 0 {
		return domain.WorkRecord{}, fmt.Errorf("work record of type %s needs a payload", spec.Type)
	}
	if !json.Valid(spec.Payload) {
		return domain.WorkRecord{}, fmt.Errorf("work record payload is not valid JSON")
	}
	if spec.RequestedBy == "" {
		return domain.WorkRecord{}, fmt.Errorf("work record needs a requester")
	}

	recordId := uuid.NewString()

	var vmId *string
	if spec.VMId != "" {
		vmId = &spec.VMId
	}

	rec := domain.WorkRecord{
		Id:          recordId,
		Type:        spec.Type,
		VMId:        spec.VMId,
		Payload:     spec.Payload,
		RequestedBy: spec.RequestedBy,
		Status:      domain.RecordPending,
	}
	if err := tx.QueryRow(
		ctx,
		`
		insert into "work_record"
			("record_id", "record_type", "vm_id", "payload", "requested_by")
		values ($1, $2, $3, $4, $5)
		returning "created_at"
		`,
		recordId, string(spec.Type), vmId, spec.Payload, spec.RequestedBy,
	).Scan(&rec.CreatedAt); err != nil {
		return domain.WorkRecord{}, err
	}

	return rec, nil
}

func (m *recordPG) Get(ctx context.Context, recordId []string) (map[string]domain.WorkRecord, error) {
	rows, err := m.pool.Query(
		ctx,
		`
		select
			"record_id", "record_type", "vm_id", "payload", "requested_by",
			"status", "error_detail", "created_at", "processed_at", "archived_at"
		from "work_record"
		where "record_id" = any($1)
		`,
		recordId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]domain.WorkRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result[r.Id] = r
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (domain.WorkRecord, error) {
	var (
		r      domain.WorkRecord
		typ    string
		status string
		vmId   *string
	)
	if err := row.Scan(
		&r.Id, &typ, &vmId, &r.Payload, &r.RequestedBy,
		&status, &r.ErrorDetail, &r.CreatedAt, &r.ProcessedAt, &r.ArchivedAt,
	); err != nil {
		return domain.WorkRecord{}, err
	}

	var err error
	if r.Type, err = domain.AsRecordType(typ); err != nil {
		return domain.WorkRecord{}, err
	}
	if r.Status, err = domain.AsRecordStatus(status); err != nil {
		return domain.WorkRecord{}, err
	}
	if vmId != nil {
		r.VMId = *vmId
	}
	return r, nil
}

func (m *recordPG) Find(ctx context.Context, query domain.RecordFindQuery) ([]string, error) {
	sql := `select "record_id" from "work_record" where true`
	args := []interface{}{}

	if 0 < len(query.Type) {
		types := make([]string, len(query.Type))
		for i, t := range query.Type {
			types[i] = string(t)
		}
		args = append(args, types)
		sql += fmt.Sprintf(` and "record_type" = any($%d)`, len(args))
	}
	if 0 < len(query.Status) {
		statuses := make([]string, len(query.Status))
		for i, s := range query.Status {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		sql += fmt.Sprintf(` and "status" = any($%d)`, len(args))
	}
	if query.RequestedBy != "" {
		args = append(args, query.RequestedBy)
		sql += fmt.Sprintf(` and "requested_by" = $%d`, len(args))
	}
	if query.VMId != "" {
		args = append(args, query.VMId)
		sql += fmt.Sprintf(` and "vm_id" = $%d`, len(args))
	}
	if query.CreatedSince != nil {
		args = append(args, *query.CreatedSince)
		sql += fmt.Sprintf(` and $%d <= "created_at"`, len(args))
	}
	if query.CreatedUntil != nil {
		args = append(args, *query.CreatedUntil)
		sql += fmt.Sprintf(` and "created_at" < $%d`, len(args))
	}
	sql += ` order by "created_at" desc, "record_id"`

	rows, err := m.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recordIds := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		recordIds = append(recordIds, id)
	}
	return recordIds, nil
}

func (m *recordPG) SetStatus(ctx context.Context, recordId string, newStatus domain.RecordStatus, errorDetail string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := setStatus(ctx, tx, recordId, newStatus, errorDetail); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// setStatus performs the guarded transition within tx.
//
// Shared with the approval store, which cancels records in its own
// transaction.
func setStatus(ctx context.Context, tx kpool.Tx, recordId string, newStatus domain.RecordStatus, errorDetail string) error {
	var current string
	if err := tx.QueryRow(
		ctx,
		`select "status" from "work_record" where "record_id" = $1 for update`,
		recordId,
	).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kdberr.Missing{Table: "work_record", Identity: recordId}
		}
		return err
	}

	currentStatus, err := domain.AsRecordStatus(current)
	if err != nil {
		return err
	}
	if !currentStatus.CanTransit(newStatus) {
		return domain.NewErrInvalidRecordStateChanging(currentStatus, newStatus)
	}

	detail := ""
	if newStatus == domain.RecordFailed || newStatus == domain.RecordCancelled {
		detail = errorDetail
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "work_record"
		set "status" = $1,
		    "error_detail" = $2,
		    "processed_at" = case when $3 then now() else "processed_at" end
		where "record_id" = $4
		`,
		string(newStatus), detail, newStatus.Terminal(), recordId,
	); err != nil {
		return err
	}
	return nil
}

// SetStatusTx is setStatus exposed for sibling stores sharing a transaction.
func SetStatusTx(ctx context.Context, tx kpool.Tx, recordId string, newStatus domain.RecordStatus, errorDetail string) error {
	return setStatus(ctx, tx, recordId, newStatus, errorDetail)
}

func (m *recordPG) Update(ctx context.Context, recordId string, mutation kdb.RecordMutation) error {
	// RecordMutation cannot carry a payload, keeping the write-once
	// contract visible in the signature. The schema-level trigger backs
	// this up against raw SQL.
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(
		ctx,
		`
		update "work_record"
		set "vm_id" = coalesce($1, "vm_id"),
		    "error_detail" = coalesce($2, "error_detail"),
		    "archived_at" = coalesce($3, "archived_at")
		where "record_id" = $4
		`,
		mutation.VMId, mutation.ErrorDetail, mutation.ArchivedAt, recordId,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() < 1 {
		return kdberr.Missing{Table: "work_record", Identity: recordId}
	}

	return tx.Commit(ctx)
}
