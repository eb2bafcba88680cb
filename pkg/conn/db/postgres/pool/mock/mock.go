// Package mock provides scriptable stand-ins for the pool interfaces.
//
// Tests register Impl functions dispatching on the SQL text and inspect
// the recorded statements afterwards. Values flow back through canned
// Rows.
package mock

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	kpool "github.com/cloudpasture/shepherd/pkg/conn/db/postgres/pool"
)

// Row is a canned pgx.Row. Scan assigns Values positionally; a nil value
// leaves the destination untouched.
type Row struct {
	Values []interface{}
	Err    error
}

var _ pgx.Row = Row{}

func (r Row) Scan(dest ...interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	if len(dest) != len(r.Values) {
		return fmt.Errorf("mock row has %d values, %d destinations", len(r.Values), len(dest))
	}
	for i, v := range r.Values {
		if v == nil {
			continue
		}
		d := reflect.ValueOf(dest[i])
		if d.Kind() != reflect.Ptr || d.IsNil() {
			return fmt.Errorf("scan destination #%d is not a pointer", i)
		}
		sv := reflect.ValueOf(v)
		dv := d.Elem()
		if !sv.Type().AssignableTo(dv.Type()) {
			if !sv.Type().ConvertibleTo(dv.Type()) {
				return fmt.Errorf(
					"mock row value #%d (%T) does not fit destination (%s)",
					i, v, dv.Type(),
				)
			}
			sv = sv.Convert(dv.Type())
		}
		dv.Set(sv)
	}
	return nil
}

// Statement is one SQL text sent to the mock, with its arguments.
type Statement struct {
	SQL  string
	Args []interface{}
}

type Tx struct {
	Impl struct {
		QueryRow func(sql string, args []interface{}) pgx.Row
		Exec     func(sql string, args []interface{}) (pgconn.CommandTag, error)
		Query    func(sql string, args []interface{}) (pgx.Rows, error)
	}

	Calls struct {
		QueryRow []Statement
		Exec     []Statement
		Query    []Statement
	}

	Committed  bool
	RolledBack bool
}

func NewTx() *Tx {
	return &Tx{}
}

var _ kpool.Tx = &Tx{}

func (t *Tx) Begin(ctx context.Context) (kpool.Tx, error) {
	panic(errors.New("it should not be called"))
}

func (t *Tx) Commit(ctx context.Context) error {
	t.Committed = true
	return nil
}

// Rollback after Commit is the usual deferred no-op; only a rollback of
// an open transaction is recorded.
func (t *Tx) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	t.Calls.QueryRow = append(t.Calls.QueryRow, Statement{SQL: sql, Args: args})
	if t.Impl.QueryRow != nil {
		return t.Impl.QueryRow(sql, args)
	}

	panic(errors.New("it should not be called"))
}

func (t *Tx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	t.Calls.Exec = append(t.Calls.Exec, Statement{SQL: sql, Args: args})
	if t.Impl.Exec != nil {
		return t.Impl.Exec(sql, args)
	}

	panic(errors.New("it should not be called"))
}

func (t *Tx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	t.Calls.Query = append(t.Calls.Query, Statement{SQL: sql, Args: args})
	if t.Impl.Query != nil {
		return t.Impl.Query(sql, args)
	}

	panic(errors.New("it should not be called"))
}

type Pool struct {
	Impl struct {
		Begin    func(ctx context.Context) (kpool.Tx, error)
		QueryRow func(sql string, args []interface{}) pgx.Row
		Exec     func(sql string, args []interface{}) (pgconn.CommandTag, error)
		Query    func(sql string, args []interface{}) (pgx.Rows, error)
	}

	Calls struct {
		Begin    int
		QueryRow []Statement
		Exec     []Statement
		Query    []Statement
	}
}

func NewPool() *Pool {
	return &Pool{}
}

var _ kpool.Pool = &Pool{}

func (p *Pool) Begin(ctx context.Context) (kpool.Tx, error) {
	p.Calls.Begin += 1
	if p.Impl.Begin != nil {
		return p.Impl.Begin(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	p.Calls.QueryRow = append(p.Calls.QueryRow, Statement{SQL: sql, Args: args})
	if p.Impl.QueryRow != nil {
		return p.Impl.QueryRow(sql, args)
	}

	panic(errors.New("it should not be called"))
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	p.Calls.Exec = append(p.Calls.Exec, Statement{SQL: sql, Args: args})
	if p.Impl.Exec != nil {
		return p.Impl.Exec(sql, args)
	}

	panic(errors.New("it should not be called"))
}

func (p *Pool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	p.Calls.Query = append(p.Calls.Query, Statement{SQL: sql, Args: args})
	if p.Impl.Query != nil {
		return p.Impl.Query(sql, args)
	}

	panic(errors.New("it should not be called"))
}

func (p *Pool) Ping(ctx context.Context) error {
	return nil
}

func (p *Pool) Close() {}
