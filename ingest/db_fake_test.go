package ingest

import (
	"context"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow is a minimal pgx.Row that scans pre-baked values by reflection,
// letting tests exercise EntityResolver without a live Postgres instance.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		rv := reflect.ValueOf(d).Elem()
		rv.Set(reflect.ValueOf(r.values[i]).Convert(rv.Type()))
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// fakeDB implements database.DB entirely in memory: QueryRow responses are
// queued in order, and every Exec call is recorded for assertions.
type fakeDB struct {
	rows  []fakeRow
	execs []execCall
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	row := f.rows[0]
	f.rows = f.rows[1:]
	return row
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	return nil, nil
}

func (f *fakeDB) Close()                         {}
func (f *fakeDB) Ping(ctx context.Context) error { return nil }
