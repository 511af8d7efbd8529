package backup

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/fincore/internal/logging"
)

const serialSequenceSQL = `SELECT pg_get_serial_sequence($1, $2)`

// setvalSQL moves the sequence to max(key)+1, or back to its start value
// when the table is empty. is_called=false makes that value the next one
// handed out.
const setvalSQL = `SELECT setval($1::text::regclass,
	COALESCE((SELECT MAX(%[2]s) FROM %[1]s) + 1,
		(SELECT seqstart FROM pg_sequence WHERE seqrelid = $1::text::regclass)),
	false)`

// SequenceReconciler realigns serial sequences with explicitly inserted
// keys so the next application insert does not collide with restored rows.
type SequenceReconciler struct{}

// NewSequenceReconciler returns a SequenceReconciler.
func NewSequenceReconciler() *SequenceReconciler { return &SequenceReconciler{} }

// Reconcile resets the sequence owned by table's surrogate key. It returns
// the value the next nextval() call will produce, or ok=false when the
// table has no such sequence.
func (r *SequenceReconciler) Reconcile(ctx context.Context, db DBTX, table TableConfig) (next int64, ok bool, err error) {
	col := table.SequenceColumn()
	if col == "" {
		return 0, false, nil
	}

	var seq *string
	if err := db.QueryRow(ctx, serialSequenceSQL, quoteIdent(table.Name), col).Scan(&seq); err != nil {
		return 0, false, wrap(table.Name, "look up sequence", err)
	}
	if seq == nil {
		return 0, false, nil
	}

	sql := fmt.Sprintf(setvalSQL, quoteIdent(table.Name), quoteIdent(col))
	if err := db.QueryRow(ctx, sql, *seq).Scan(&next); err != nil {
		return 0, false, wrap(table.Name, "reset sequence "+*seq, err)
	}
	return next, true, nil
}

// reconcileInTx runs Reconcile inside a savepoint. Failures are logged and
// only a broken transaction is returned.
func (r *SequenceReconciler) reconcileInTx(ctx context.Context, tx Tx, table TableConfig) error {
	log := logging.WithFields(ctx, "table", table.Name)

	var (
		next int64
		ok   bool
	)
	stmtErr, fatal := savepoint(ctx, tx, "backup_sequence", func() error {
		var err error
		next, ok, err = r.Reconcile(ctx, tx, table)
		return err
	})
	if fatal != nil {
		return fatal
	}
	if stmtErr != nil {
		log.Warn("sequence reset failed", "error", stmtErr)
		return nil
	}
	if ok {
		log.Debug("sequence reset", "next_value", next)
	}
	return nil
}
