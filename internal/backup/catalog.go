package backup

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const liveColumnsSQL = `SELECT column_name::text
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`

// liveColumns returns the columns of table in the current schema, in
// ordinal order. An empty result means the table does not exist.
func liveColumns(ctx context.Context, db DBTX, table string) ([]string, error) {
	rows, err := db.Query(ctx, liveColumnsSQL, table)
	if err != nil {
		return nil, wrap(table, "read catalogue", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap(table, "read catalogue", err)
	}
	return cols, nil
}

// columnCatalog caches live column lookups for one operation.
type columnCatalog struct {
	db    DBTX
	cache map[string][]string
}

func newColumnCatalog(db DBTX) *columnCatalog {
	return &columnCatalog{db: db, cache: make(map[string][]string)}
}

func (c *columnCatalog) columns(ctx context.Context, table string) ([]string, error) {
	if cols, ok := c.cache[table]; ok {
		return cols, nil
	}
	cols, err := liveColumns(ctx, c.db, table)
	if err != nil {
		return nil, err
	}
	c.cache[table] = cols
	return cols, nil
}

// resolveColumns maps the keys of row onto live column names. Keys must match a
// column exactly; the returned names come from the catalogue, never from
// the payload.
func resolveColumns(row Row, live []string) ([]string, error) {
	known := make(map[string]string, len(live))
	for _, c := range live {
		known[c] = c
	}

	out := make([]string, 0, row.Len())
	for _, key := range row.cols {
		col, ok := known[key]
		if !ok {
			return nil, &Error{Kind: KindRowInsert, Message: fmt.Sprintf("unknown column %q", truncate(key, 64))}
		}
		out = append(out, col)
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
