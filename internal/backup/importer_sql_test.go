package backup

import (
	"encoding/json"
	"slices"
	"strings"
	"testing"
)

func TestInsertSQL(t *testing.T) {
	budgets := TableConfig{Name: "budgets", PrimaryKey: []string{"id"}, ConflictColumns: []string{"id"}}
	txns := TableConfig{
		Name:            "transactions",
		PrimaryKey:      []string{"identifier", "vendor"},
		ConflictColumns: []string{"identifier", "vendor"},
	}

	tests := []struct {
		name  string
		table TableConfig
		cols  []string
		mode  ImportMode
		want  string
	}{
		{
			"replace",
			budgets, []string{"id", "budget_limit"}, ModeReplace,
			`INSERT INTO "budgets" ("id", "budget_limit") SELECT "id", "budget_limit" FROM json_populate_record(NULL::"budgets", $1::json)`,
		},
		{
			"merge composite key",
			txns, []string{"identifier", "vendor"}, ModeMerge,
			`INSERT INTO "transactions" ("identifier", "vendor") SELECT "identifier", "vendor" FROM json_populate_record(NULL::"transactions", $1::json) ON CONFLICT ("identifier", "vendor") DO NOTHING`,
		},
		{
			"empty row",
			budgets, nil, ModeReplace,
			`INSERT INTO "budgets" DEFAULT VALUES`,
		},
		{
			"empty row merge",
			budgets, nil, ModeMerge,
			`INSERT INTO "budgets" DEFAULT VALUES ON CONFLICT ("id") DO NOTHING`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := insertSQL(tt.table, tt.cols, tt.mode); got != tt.want {
				t.Errorf("insertSQL() =\n  %s\nwant\n  %s", got, tt.want)
			}
		})
	}
}

func TestResolveColumns(t *testing.T) {
	live := []string{"id", "name", "created_at"}

	var row Row
	if err := json.Unmarshal([]byte(`{"name":"x","id":1}`), &row); err != nil {
		t.Fatal(err)
	}

	cols, err := resolveColumns(row, live)
	if err != nil {
		t.Fatalf("resolveColumns() error = %v", err)
	}
	if !slices.Equal(cols, []string{"name", "id"}) {
		t.Errorf("resolveColumns() = %v, want payload order", cols)
	}
}

func TestResolveColumns_Unknown(t *testing.T) {
	var row Row
	payload := `{"id":1,"` + strings.Repeat("x", 100) + `":2}`
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
		t.Fatal(err)
	}

	_, err := resolveColumns(row, []string{"id"})
	if !IsRowInsert(err) {
		t.Fatalf("resolveColumns() error = %v, want row insert error", err)
	}
	if len(err.Error()) > 100 {
		t.Errorf("error message not truncated: %q", err.Error())
	}
}

func TestResolveColumns_CaseSensitive(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`{"ID":1}`), &row); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveColumns(row, []string{"id"}); err == nil {
		t.Error("resolveColumns() should reject keys that differ in case")
	}
}
