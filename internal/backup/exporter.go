package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/fincore/internal/logging"
)

// Exporter reads every registry table into a Snapshot.
type Exporter struct {
	registry *Registry
	source   ConnSource
	now      func() time.Time
}

// NewExporter returns an Exporter over the tables of reg.
func NewExporter(reg *Registry, source ConnSource) *Exporter {
	return &Exporter{registry: reg, source: source, now: time.Now}
}

// Export reads all tables inside one read-only repeatable-read transaction
// so the snapshot is consistent across tables. Tables missing from the
// database appear with rowCount 0 and error "Table not found".
func (e *Exporter) Export(ctx context.Context) (*Snapshot, error) {
	log := logging.FromContext(ctx)
	start := time.Now()

	coord := NewTransactionCoordinator(e.source, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err := coord.Begin(ctx); err != nil {
		return nil, err
	}
	defer coord.Close(ctx)

	tx := coord.Tx()
	catalog := newColumnCatalog(tx)

	snap := &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: e.now().UTC(),
		Tables:     make(map[string]TableDump, e.registry.Len()),
	}

	for _, table := range e.registry.Tables() {
		dump, err := e.exportTable(ctx, tx, catalog, table)
		if err != nil {
			return nil, err
		}
		if dump.Error != "" {
			log.Warn("table not found during export", "table", table.Name)
		}
		snap.Tables[table.Name] = dump
	}

	if err := coord.Commit(ctx); err != nil {
		return nil, err
	}

	log.Info("export complete",
		"tables", len(snap.Tables),
		"rows", snap.TotalRows(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func (e *Exporter) exportTable(ctx context.Context, tx Tx, catalog *columnCatalog, table TableConfig) (TableDump, error) {
	cols, err := catalog.columns(ctx, table.Name)
	if err != nil {
		return TableDump{}, err
	}
	if len(cols) == 0 {
		return TableDump{Data: []Row{}, Error: TableNotFound}, nil
	}

	var rows []Row
	stmtErr, fatal := savepoint(ctx, tx, "backup_export", func() error {
		var err error
		rows, err = readTable(ctx, tx, table.Name)
		return err
	})
	if fatal != nil {
		return TableDump{}, fatal
	}
	if stmtErr != nil {
		if IsSchemaAbsence(stmtErr) {
			return TableDump{Data: []Row{}, Error: TableNotFound}, nil
		}
		return TableDump{}, wrap(table.Name, "export", stmtErr)
	}

	return TableDump{RowCount: len(rows), Data: rows}, nil
}

// readTable returns every row of table as ordered JSON objects.
func readTable(ctx context.Context, db DBTX, table string) ([]Row, error) {
	sql := fmt.Sprintf("SELECT row_to_json(t)::text FROM %s AS t", quoteIdent(table))

	pgRows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}

	out := []Row{}
	texts, err := pgx.CollectRows(pgRows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	for i, text := range texts {
		var row Row
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			return nil, fmt.Errorf("decode row %d: %w", i, err)
		}
		out = append(out, row)
	}
	return out, nil
}
