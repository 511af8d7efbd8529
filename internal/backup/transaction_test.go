package backup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/backup/backuptest"
)

func TestTransactionCoordinator_Commit(t *testing.T) {
	db := backuptest.NewFinanceDB()
	ctx := context.Background()
	coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})

	if coord.State() != backup.StateIdle {
		t.Fatalf("initial State = %v, want idle", coord.State())
	}
	if coord.Tx() != nil {
		t.Error("Tx() should be nil before Begin")
	}

	if err := coord.Begin(ctx); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if coord.State() != backup.StateInTransaction || coord.Tx() == nil {
		t.Fatalf("after Begin: State = %v, Tx = %v", coord.State(), coord.Tx())
	}
	if db.OpenConns() != 1 {
		t.Errorf("OpenConns() = %d, want 1", db.OpenConns())
	}

	if _, err := coord.Tx().Exec(ctx, `TRUNCATE TABLE "budgets" CASCADE`); err != nil {
		t.Fatal(err)
	}
	if err := coord.Commit(ctx); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if coord.State() != backup.StateCommitted {
		t.Errorf("State = %v, want committed", coord.State())
	}
	if db.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want connection released", db.OpenConns())
	}
	if db.Commits() != 1 {
		t.Errorf("Commits() = %d, want 1", db.Commits())
	}

	if err := coord.Commit(ctx); err == nil {
		t.Error("second Commit() should fail")
	}
	if err := coord.Begin(ctx); err == nil {
		t.Error("Begin() after Commit should fail")
	}
	coord.Close(ctx)
}

func TestTransactionCoordinator_Rollback(t *testing.T) {
	db := backuptest.NewFinanceDB()
	seedFinance(t, db)
	ctx := context.Background()

	coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
	if err := coord.Begin(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := coord.Tx().Exec(ctx, `TRUNCATE TABLE "budgets" CASCADE`); err != nil {
		t.Fatal(err)
	}
	if err := coord.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	if coord.State() != backup.StateRolledBack {
		t.Errorf("State = %v, want rolled_back", coord.State())
	}
	if db.RowCount("budgets") != 1 {
		t.Error("rolled back work became visible")
	}
	if db.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", db.OpenConns())
	}
	if err := coord.Rollback(ctx); err == nil {
		t.Error("second Rollback() should fail")
	}
}

func TestTransactionCoordinator_CloseRollsBack(t *testing.T) {
	db := backuptest.NewFinanceDB()
	ctx, cancel := context.WithCancel(context.Background())

	coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
	if err := coord.Begin(ctx); err != nil {
		t.Fatal(err)
	}

	cancel()
	coord.Close(ctx)

	if coord.State() != backup.StateRolledBack {
		t.Errorf("State = %v, want rolled_back", coord.State())
	}
	if db.Rollbacks() != 1 {
		t.Errorf("Rollbacks() = %d, want 1", db.Rollbacks())
	}
	if db.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", db.OpenConns())
	}

	// Close is idempotent.
	coord.Close(ctx)
}

func TestTransactionCoordinator_CloseIdle(t *testing.T) {
	db := backuptest.NewFinanceDB()
	coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
	coord.Close(context.Background())

	if coord.State() != backup.StateIdle {
		t.Errorf("State = %v, want idle", coord.State())
	}
	if db.Rollbacks() != 0 {
		t.Error("Close on an idle coordinator should not roll back")
	}
}

func TestTransactionCoordinator_BeginFailures(t *testing.T) {
	t.Run("acquire", func(t *testing.T) {
		db := backuptest.NewFinanceDB()
		db.FailAcquire(errors.New("too many clients"))

		coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
		err := coord.Begin(context.Background())
		if !backup.IsConnection(err) {
			t.Errorf("Begin() error = %v, want connection error", err)
		}
		if coord.State() != backup.StateIdle {
			t.Errorf("State = %v, want idle", coord.State())
		}
	})

	t.Run("begin", func(t *testing.T) {
		db := backuptest.NewFinanceDB()
		db.FailOn("BEGIN", errors.New("connection lost"), 1)

		coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
		if err := coord.Begin(context.Background()); !backup.IsConnection(err) {
			t.Errorf("Begin() error = %v, want connection error", err)
		}
		if db.OpenConns() != 0 {
			t.Errorf("OpenConns() = %d, connection leaked", db.OpenConns())
		}
	})
}

func TestTransactionCoordinator_CommitFailure(t *testing.T) {
	db := backuptest.NewFinanceDB()
	db.FailCommit(errors.New("could not serialize access"))
	ctx := context.Background()

	coord := backup.NewTransactionCoordinator(db, pgx.TxOptions{})
	if err := coord.Begin(ctx); err != nil {
		t.Fatal(err)
	}

	err := coord.Commit(ctx)
	if !backup.IsConnection(err) {
		t.Errorf("Commit() error = %v, want connection error", err)
	}
	if coord.State() != backup.StateRolledBack {
		t.Errorf("State = %v, want rolled_back", coord.State())
	}
	if db.OpenConns() != 0 {
		t.Errorf("OpenConns() = %d, want 0", db.OpenConns())
	}
}

func TestTxState_String(t *testing.T) {
	tests := map[backup.TxState]string{
		backup.StateIdle:          "idle",
		backup.StateInTransaction: "in_transaction",
		backup.StateCommitted:     "committed",
		backup.StateRolledBack:    "rolled_back",
		backup.TxState(42):        "TxState(42)",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
