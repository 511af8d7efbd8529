package backuptest

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// resultRows is a materialized pgx.Rows.
type resultRows struct {
	values [][]any
	pos    int
	err    error
	closed bool
}

func (r *resultRows) Close()                                       { r.closed = true }
func (r *resultRows) Err() error                                   { return r.err }
func (r *resultRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *resultRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *resultRows) RawValues() [][]byte                          { return nil }
func (r *resultRows) Conn() *pgx.Conn                              { return nil }

func (r *resultRows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	r.pos++
	if r.pos >= len(r.values) {
		r.closed = true
		return false
	}
	return true
}

func (r *resultRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.values) {
		return nil, fmt.Errorf("backuptest: no current row")
	}
	return r.values[r.pos], nil
}

func (r *resultRows) Scan(dest ...any) error {
	vals, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(vals) {
		return fmt.Errorf("backuptest: scan %d values into %d targets", len(vals), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, vals[i]); err != nil {
			r.err = err
			return err
		}
	}
	return nil
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("backuptest: cannot scan %T into *string", v)
		}
		*d = s
	case **string:
		switch s := v.(type) {
		case nil:
			*d = nil
		case *string:
			*d = s
		case string:
			*d = &s
		default:
			return fmt.Errorf("backuptest: cannot scan %T into **string", v)
		}
	case *int64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("backuptest: cannot scan %T into *int64", v)
		}
		*d = n
	case *any:
		*d = v
	default:
		return fmt.Errorf("backuptest: unsupported scan target %T", dest)
	}
	return nil
}

// row is the pgx.Row returned by QueryRow.
type row struct {
	rows pgx.Rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.rows.Close()

	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return err
		}
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}
