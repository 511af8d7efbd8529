package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/fincore/internal/logging"
)

// Importer restores a Snapshot into the registry tables.
//
// An import runs in a single transaction on a single connection. Tables
// are cleared in reverse registry order (replace mode) and filled in
// forward order. Each row is written under its own savepoint so one bad
// row is reported without discarding its neighbours or other tables.
type Importer struct {
	registry  *Registry
	source    ConnSource
	sequences *SequenceReconciler
}

// NewImporter returns an Importer over the tables of reg.
func NewImporter(reg *Registry, source ConnSource) *Importer {
	return &Importer{
		registry:  reg,
		source:    source,
		sequences: NewSequenceReconciler(),
	}
}

// Import writes snap according to opts.
//
// A non-nil error means the import was rolled back as a whole: the request
// was invalid or the connection failed. Per-table and per-row failures are
// returned in the report instead; whether the surviving work was committed
// is reported in ImportReport.Committed.
func (im *Importer) Import(ctx context.Context, snap *Snapshot, opts ImportOptions) (*ImportReport, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	mode, err := ParseImportMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, "mode", mode, "atomic", opts.Atomic)
	start := time.Now()

	for name := range snap.Tables {
		if _, ok := im.registry.Get(name); !ok {
			log.Warn("ignoring table not in registry", "table", name)
		}
	}

	coord := NewTransactionCoordinator(im.source, pgx.TxOptions{})
	if err := coord.Begin(ctx); err != nil {
		return nil, err
	}
	defer coord.Close(ctx)

	run := &importRun{
		tx:        coord.Tx(),
		mode:      mode,
		catalog:   newColumnCatalog(coord.Tx()),
		errors:    NewErrorCollector(),
		sequences: im.sequences,
	}

	if mode == ModeReplace {
		if err := run.clearTables(ctx, im.registry.ClearOrder()); err != nil {
			return nil, err
		}
	}

	imported := make(map[string]TableResult, im.registry.Len())
	for _, table := range im.registry.Tables() {
		res, err := run.importTable(ctx, table, snap.Tables[table.Name])
		if err != nil {
			return nil, err
		}
		imported[table.Name] = res
	}

	report := &ImportReport{
		Success:  !run.errors.HasErrors(),
		Mode:     mode,
		Atomic:   opts.Atomic,
		Imported: imported,
		Errors:   run.errors.Errors(),
	}

	if opts.Atomic && run.errors.HasErrors() {
		if err := coord.Rollback(ctx); err != nil {
			return nil, err
		}
		log.Warn("import rolled back", "failed_tables", run.errors.Len())
	} else {
		if err := coord.Commit(ctx); err != nil {
			return nil, err
		}
		report.Committed = true
	}

	log.Info("import complete",
		"success", report.Success,
		"committed", report.Committed,
		"rows", report.RowsImported(),
		"failed_tables", run.errors.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// importRun carries the state of one Import call.
type importRun struct {
	tx        Tx
	mode      ImportMode
	catalog   *columnCatalog
	errors    *ErrorCollector
	sequences *SequenceReconciler
}

// clearTables truncates tables in the given order. Missing tables are
// skipped with a warning.
func (r *importRun) clearTables(ctx context.Context, tables []TableConfig) error {
	for _, table := range tables {
		log := logging.WithFields(ctx, "table", table.Name)

		cols, err := r.catalog.columns(ctx, table.Name)
		if err != nil {
			return err
		}
		if len(cols) == 0 {
			log.Warn("table not found, skipping clear")
			continue
		}

		stmtErr, fatal := savepoint(ctx, r.tx, "backup_clear", func() error {
			_, err := r.tx.Exec(ctx, "TRUNCATE TABLE "+quoteIdent(table.Name)+" CASCADE")
			return err
		})
		if fatal != nil {
			return wrap(table.Name, "clear", fatal)
		}
		if stmtErr != nil {
			if IsSchemaAbsence(stmtErr) {
				log.Warn("table not found, skipping clear")
				continue
			}
			log.Error("clear failed", "error", stmtErr)
			r.errors.Add(table.Name, wrap(table.Name, "clear", stmtErr))
		}
	}
	return nil
}

// importTable writes the rows of dump into table.
func (r *importRun) importTable(ctx context.Context, table TableConfig, dump TableDump) (TableResult, error) {
	log := logging.WithFields(ctx, "table", table.Name)

	if len(dump.Data) == 0 {
		if r.mode == ModeReplace && table.Surrogate {
			if err := r.restartSequence(ctx, table); err != nil {
				return TableResult{}, err
			}
		}
		return TableResult{Skipped: true}, nil
	}

	cols, err := r.catalog.columns(ctx, table.Name)
	if err != nil {
		return TableResult{}, err
	}
	if len(cols) == 0 {
		log.Warn("table not found, skipping import", "rows", len(dump.Data))
		return TableResult{Skipped: true}, nil
	}

	res, inserted, err := r.insertRows(ctx, table, cols, dump.Data)
	if err != nil {
		return TableResult{}, err
	}

	if r.mode == ModeMerge {
		res.Inserted = &inserted
	}

	if table.Surrogate {
		if err := r.sequences.reconcileInTx(ctx, r.tx, table); err != nil {
			return TableResult{}, err
		}
	}

	log.Info("table imported", "rows", res.Count, "failed", res.Failed)
	return res, nil
}

// restartSequence rewinds the sequence of a table that replace mode left
// empty. Missing tables are ignored.
func (r *importRun) restartSequence(ctx context.Context, table TableConfig) error {
	cols, err := r.catalog.columns(ctx, table.Name)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	return r.sequences.reconcileInTx(ctx, r.tx, table)
}

// insertRows writes each row under its own savepoint. Row failures are
// collected; the returned error is reserved for failures that end the
// transaction.
func (r *importRun) insertRows(ctx context.Context, table TableConfig, live []string, rows []Row) (TableResult, int, error) {
	var (
		res      TableResult
		inserted int
	)

	for i, row := range rows {
		if err := row.Err(); err != nil {
			r.errors.AddRow(table.Name, i, &Error{Kind: KindRowInsert, Message: err.Error()})
			res.Failed++
			continue
		}

		cols, err := resolveColumns(row, live)
		if err != nil {
			r.errors.AddRow(table.Name, i, err)
			res.Failed++
			continue
		}

		payload, err := json.Marshal(row)
		if err != nil {
			r.errors.AddRow(table.Name, i, err)
			res.Failed++
			continue
		}

		sql := insertSQL(table, cols, r.mode)
		var args []any
		if len(cols) > 0 {
			args = append(args, string(payload))
		}

		var tag pgconn.CommandTag
		stmtErr, fatal := savepoint(ctx, r.tx, "backup_row", func() error {
			var err error
			tag, err = r.tx.Exec(ctx, sql, args...)
			return err
		})
		if fatal != nil {
			return res, inserted, fatal
		}
		if stmtErr != nil {
			r.errors.AddRow(table.Name, i, stmtErr)
			res.Failed++
			continue
		}

		res.Count++
		inserted += int(tag.RowsAffected())
	}

	return res, inserted, nil
}

// insertSQL builds the statement for one row. The row travels as a single
// JSON parameter and json_populate_record coerces each field to the
// column's declared type.
func insertSQL(table TableConfig, cols []string, mode ImportMode) string {
	name := quoteIdent(table.Name)

	var sql string
	if len(cols) == 0 {
		sql = "INSERT INTO " + name + " DEFAULT VALUES"
	} else {
		list := quoteIdents(cols)
		sql = fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM json_populate_record(NULL::%s, $1::json)",
			name, list, list, name)
	}

	if mode == ModeMerge {
		sql += " ON CONFLICT (" + quoteIdents(table.ConflictColumns) + ") DO NOTHING"
	}
	return sql
}
