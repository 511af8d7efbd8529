package backup

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
)

// identPattern restricts table and column names accepted into a Registry.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// TableConfig describes how one table is exported and restored.
type TableConfig struct {
	// Name is the table name in the current schema.
	Name string `yaml:"name"`

	// PrimaryKey lists the key column(s) in order. Composite keys keep
	// every column, e.g. transactions is keyed by (identifier, vendor).
	PrimaryKey []string `yaml:"primary_key"`

	// ConflictColumns is the ON CONFLICT target used by merge imports.
	// It must be identical to PrimaryKey; when empty it defaults to it.
	ConflictColumns []string `yaml:"conflict_columns"`

	// Surrogate marks a single-column auto-increment key whose sequence
	// must be resynced after rows are written.
	Surrogate bool `yaml:"surrogate"`
}

// SequenceColumn returns the key column backed by a sequence, or "".
func (t TableConfig) SequenceColumn() string {
	if !t.Surrogate || len(t.PrimaryKey) != 1 {
		return ""
	}
	return t.PrimaryKey[0]
}

func (t TableConfig) validate() error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if len(t.PrimaryKey) == 0 {
		return fmt.Errorf("table %s: primary key is required", t.Name)
	}
	for _, col := range t.PrimaryKey {
		if !identPattern.MatchString(col) {
			return fmt.Errorf("table %s: invalid primary key column %q", t.Name, col)
		}
	}
	if !slices.Equal(t.PrimaryKey, t.ConflictColumns) {
		return fmt.Errorf("table %s: conflict columns %v must match primary key %v",
			t.Name, t.ConflictColumns, t.PrimaryKey)
	}
	if t.Surrogate && len(t.PrimaryKey) != 1 {
		return fmt.Errorf("table %s: surrogate key must be a single column", t.Name)
	}
	return nil
}

// Registry is the immutable, dependency-ordered list of tables covered by
// backups. Forward order is a valid insert order for foreign keys; the
// reverse is the clear order. Build one at startup and pass it to the
// Exporter and Importer.
type Registry struct {
	tables []TableConfig
	index  map[string]int
}

// NewRegistry validates tables and returns a Registry preserving their order.
func NewRegistry(tables ...TableConfig) (*Registry, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("registry: no tables")
	}

	r := &Registry{
		tables: make([]TableConfig, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}

	for _, t := range tables {
		t.PrimaryKey = slices.Clone(t.PrimaryKey)
		if len(t.ConflictColumns) == 0 {
			t.ConflictColumns = slices.Clone(t.PrimaryKey)
		} else {
			t.ConflictColumns = slices.Clone(t.ConflictColumns)
		}

		if err := t.validate(); err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if _, dup := r.index[t.Name]; dup {
			return nil, fmt.Errorf("registry: table %s listed twice", t.Name)
		}

		r.index[t.Name] = len(r.tables)
		r.tables = append(r.tables, t)
	}

	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Use for static tables.
func MustRegistry(tables ...TableConfig) *Registry {
	r, err := NewRegistry(tables...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry returns the finance dashboard tables in foreign-key order.
func DefaultRegistry() *Registry {
	return MustRegistry(
		TableConfig{Name: "category_definitions", PrimaryKey: []string{"id"}, Surrogate: true},
		TableConfig{Name: "card_vendors", PrimaryKey: []string{"id"}, Surrogate: true},
		TableConfig{Name: "vendor_credentials", PrimaryKey: []string{"id"}, Surrogate: true},
		TableConfig{Name: "transactions", PrimaryKey: []string{"identifier", "vendor"}},
		TableConfig{Name: "categorization_rules", PrimaryKey: []string{"id"}, Surrogate: true},
		TableConfig{Name: "budgets", PrimaryKey: []string{"id"}, Surrogate: true},
	)
}

// Tables returns the tables in forward (insert) order.
func (r *Registry) Tables() []TableConfig {
	return slices.Clone(r.tables)
}

// ClearOrder returns the tables in reverse dependency order.
func (r *Registry) ClearOrder() []TableConfig {
	out := slices.Clone(r.tables)
	slices.Reverse(out)
	return out
}

// Names returns the table names in forward order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.tables))
	for i, t := range r.tables {
		names[i] = t.Name
	}
	return names
}

// Get returns the configuration for name.
func (r *Registry) Get(name string) (TableConfig, bool) {
	i, ok := r.index[name]
	if !ok {
		return TableConfig{}, false
	}
	return r.tables[i], true
}

// Len returns the number of tables.
func (r *Registry) Len() int { return len(r.tables) }

// quoteIdent renders a single SQL identifier.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// quoteIdents renders a comma-separated identifier list.
func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}
