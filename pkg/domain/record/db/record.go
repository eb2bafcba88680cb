package db

import (
	"context"
	"time"

	"github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
	"github.com/cloudpasture/shepherd/pkg/domain"
)

// Everything a caller may supply at record creation. Payload is the last
// chance to say anything: there is no way to hand in a payload afterwards.
type NewWorkRecord struct {
	Type        domain.RecordType
	VMId        string
	Payload     []byte
	RequestedBy string
}

// Columns an update may touch. Payload is deliberately absent; see
// Interface.Update.
type RecordMutation struct {
	VMId        *string
	ErrorDetail *string
	ArchivedAt  *time.Time
}

type Interface interface {
	// create a new work record within tx.
	//
	// Contract: callers never call this outside a transaction which also
	// persists whatever business object depends on the record (its
	// approval, at least). The record must not be observable without them.
	//
	// Returns ErrPayloadImmutable-class validation errors never; a missing
	// or non-JSON payload is a plain error.
	Create(ctx context.Context, tx pool.Tx, spec NewWorkRecord) (domain.WorkRecord, error)

	// Retrieve records, mapping recordId -> WorkRecord.
	// Ids without a record are simply absent from the map.
	Get(ctx context.Context, recordId []string) (map[string]domain.WorkRecord, error)

	// find records which the query matches.
	// Empty query dimensions do not narrow results.
	Find(ctx context.Context, query domain.RecordFindQuery) ([]string, error)

	// update record status.
	//
	// The record's current status must allow the transition
	// (domain.RecordStatus.CanTransit); otherwise
	// ErrInvalidRecordStateChanging.
	//
	// errorDetail is stored for terminal failures and ignored elsewhere.
	//
	// Returns ErrMissing when no record has recordId.
	SetStatus(ctx context.Context, recordId string, newStatus domain.RecordStatus, errorDetail string) error

	// update non-payload columns of a record.
	//
	// The payload is write-once: there is no way to express a payload
	// change through RecordMutation, and the storage rejects one at the
	// trigger level too.
	Update(ctx context.Context, recordId string, mutation RecordMutation) error
}
