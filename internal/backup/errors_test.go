package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) error {
	return &pgconn.PgError{Severity: "ERROR", Code: code, Message: "sqlstate " + code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"undefined table", pgErr("42P01"), KindSchemaAbsence},
		{"unique violation", pgErr("23505"), KindRowInsert},
		{"not null", pgErr("23502"), KindRowInsert},
		{"bad integer", pgErr("22P02"), KindRowInsert},
		{"undefined column", pgErr("42703"), KindRowInsert},
		{"datatype mismatch", pgErr("42804"), KindRowInsert},
		{"other sqlstate", pgErr("42501"), KindRowInsert},
		{"connection failure", pgErr("08006"), KindConnection},
		{"deadlock", pgErr("40P01"), KindConnection},
		{"admin shutdown", pgErr("57P01"), KindConnection},
		{"aborted transaction", pgErr("25P02"), KindConnection},
		{"wrapped", fmt.Errorf("exec: %w", pgErr("23503")), KindRowInsert},
		{"network", io.ErrUnexpectedEOF, KindConnection},
		{"cancelled", context.Canceled, KindConnection},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindConnection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestError_Format(t *testing.T) {
	err := wrap("budgets", "insert", pgErr("23505"))

	if err.Kind != KindRowInsert {
		t.Errorf("Kind = %v, want row_insert", err.Kind)
	}
	if got := err.Error(); got != "budgets: insert: ERROR: sqlstate 23505 (SQLSTATE 23505)" {
		t.Errorf("Error() = %q", got)
	}

	var pe *pgconn.PgError
	if !errors.As(err, &pe) {
		t.Error("wrapped error should unwrap to *pgconn.PgError")
	}
}

func TestWrap_KeepsKind(t *testing.T) {
	inner := NewValidationError("bad")
	got := wrap("budgets", "import", inner)

	if got.Kind != KindValidation {
		t.Errorf("Kind = %v, want validation", got.Kind)
	}
	if got.Error() != "budgets: import: bad" {
		t.Errorf("Error() = %q", got.Error())
	}

	again := wrap("other", "outer", got)
	if again.Table != "budgets" {
		t.Errorf("Table = %q, want first table to stick", again.Table)
	}
}

func TestPredicates(t *testing.T) {
	if !IsConnection(connectionError("commit", io.EOF)) {
		t.Error("IsConnection() = false for connection error")
	}
	if !IsSchemaAbsence(fmt.Errorf("x: %w", pgErr("42P01"))) {
		t.Error("IsSchemaAbsence() = false for 42P01")
	}
	if !IsRowInsert(pgErr("23505")) {
		t.Error("IsRowInsert() = false for 23505")
	}
	if IsValidation(nil) || IsConnection(nil) {
		t.Error("predicates should be false for nil")
	}
}

func TestErrorCollector(t *testing.T) {
	c := NewErrorCollector()

	if c.HasErrors() {
		t.Error("new collector should be empty")
	}
	if errs := c.Errors(); errs == nil || len(errs) != 0 {
		t.Errorf("Errors() = %#v, want empty non-nil slice", errs)
	}

	c.AddRow("budgets", 2, wrap("budgets", "", pgErr("23505")))
	c.AddRow("budgets", 5, pgErr("23502"))
	c.Add("transactions", errors.New("clear failed"))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	budgets, ok := c.Get("budgets")
	if !ok {
		t.Fatal("Get(budgets) not found")
	}
	if budgets.FailedRows != 2 {
		t.Errorf("FailedRows = %d, want 2", budgets.FailedRows)
	}
	if budgets.Error != "row 2: ERROR: sqlstate 23505 (SQLSTATE 23505)" {
		t.Errorf("Error = %q, want first row error without table prefix", budgets.Error)
	}

	errs := c.Errors()
	if errs[0].Table != "budgets" || errs[1].Table != "transactions" {
		t.Errorf("Errors() order = %v, want first-failure order", errs)
	}
	if errs[1].FailedRows != 0 {
		t.Errorf("table-level error FailedRows = %d, want 0", errs[1].FailedRows)
	}
}
