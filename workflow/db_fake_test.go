package workflow

import (
	"context"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRow is a single pgx.Row backed by a fixed slice of column values.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.values) {
			continue
		}
		v := r.values[i]
		if v == nil {
			continue
		}
		rv := reflect.ValueOf(d).Elem()
		vv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && vv.Kind() != reflect.Ptr {
			boxed := reflect.New(rv.Type().Elem())
			boxed.Elem().Set(vv.Convert(rv.Type().Elem()))
			rv.Set(boxed)
			continue
		}
		rv.Set(vv.Convert(rv.Type()))
	}
	return nil
}

// fakeRows is a pgx.Rows backed by a fixed slice of fakeRow.
type fakeRows struct {
	rows []fakeRow
	pos  int
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *fakeRows) Scan(dest ...any) error                       { return r.rows[r.pos-1].Scan(dest...) }
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) Close()                                       {}
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

type execCall struct {
	sql  string
	args []any
}

// fakeDB implements database.DB with queued responses, mirroring the
// evaluator package's test double: rows feed QueryRow in call order,
// queryRows feed Query in call order, execTag (or execTags, keyed by a
// substring of the SQL) controls what Exec reports for RowsAffected.
type fakeDB struct {
	rows      []fakeRow
	queryRows [][]fakeRow
	execTag   pgconn.CommandTag
	execTags  map[string]pgconn.CommandTag
	execErr   error
	execs     []execCall
}

func (f *fakeDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	if len(f.rows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	r := f.rows[0]
	f.rows = f.rows[1:]
	return r
}

func (f *fakeDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	if len(f.queryRows) == 0 {
		return &fakeRows{}, nil
	}
	rows := f.queryRows[0]
	f.queryRows = f.queryRows[1:]
	return &fakeRows{rows: rows}, nil
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	for substr, tag := range f.execTags {
		if strings.Contains(sql, substr) {
			return tag, nil
		}
	}
	return f.execTag, nil
}

func (f *fakeDB) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) { return nil, nil }
func (f *fakeDB) Close()                                                 {}
func (f *fakeDB) Ping(context.Context) error                             { return nil }
