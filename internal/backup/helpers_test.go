package backup_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/backup/backuptest"
)

// rows decodes JSON objects into Rows.
func rows(t *testing.T, objs ...string) []backup.Row {
	t.Helper()
	out := make([]backup.Row, len(objs))
	for i, o := range objs {
		if err := json.Unmarshal([]byte(o), &out[i]); err != nil {
			t.Fatalf("bad row %s: %v", o, err)
		}
	}
	return out
}

// snapshot builds a Snapshot from table name to row objects.
func snapshot(t *testing.T, tables map[string][]string) *backup.Snapshot {
	t.Helper()
	snap := &backup.Snapshot{
		Version:    backup.SnapshotVersion,
		ExportedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Tables:     make(map[string]backup.TableDump, len(tables)),
	}
	for name, objs := range tables {
		data := rows(t, objs...)
		snap.Tables[name] = backup.TableDump{RowCount: len(data), Data: data}
	}
	return snap
}

// seedFinance fills db with a small, consistent data set.
func seedFinance(t *testing.T, db *backuptest.DB) {
	t.Helper()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}

	must(db.Insert("category_definitions",
		map[string]any{"id": 1, "name": "Food", "category_type": "expense"},
		map[string]any{"id": 2, "name": "Groceries", "parent_id": 1, "category_type": "expense"},
		map[string]any{"id": 5, "name": "Salary", "category_type": "income"},
	))
	must(db.Insert("card_vendors",
		map[string]any{"id": 1, "card_number": "1234", "vendor": "isracard"},
	))
	must(db.Insert("transactions",
		map[string]any{"identifier": "t-1", "vendor": "isracard", "date": "2024-05-01", "name": "Shop", "price": "-42.10", "category_definition_id": 2},
		map[string]any{"identifier": "t-1", "vendor": "max", "date": "2024-05-02", "name": "Cafe", "price": "-12.00"},
	))
	must(db.Insert("budgets",
		map[string]any{"id": 3, "category_definition_id": 1, "budget_limit": "1500.00"},
	))
}

// financeDBWithout returns a finance DB lacking the named tables.
func financeDBWithout(missing ...string) *backuptest.DB {
	skip := make(map[string]bool, len(missing))
	for _, m := range missing {
		skip[m] = true
	}
	db := backuptest.New()
	for _, def := range backuptest.FinanceTables() {
		if !skip[def.Name] {
			db.CreateTable(def)
		}
	}
	return db
}

func pgErr(code string) error {
	return &pgconn.PgError{Severity: "ERROR", Code: code, Message: "injected " + code}
}

func tableErr(t *testing.T, report *backup.ImportReport, table string) backup.TableError {
	t.Helper()
	for _, e := range report.Errors {
		if e.Table == table {
			return e
		}
	}
	t.Fatalf("no error reported for %s; errors = %+v", table, report.Errors)
	return backup.TableError{}
}
