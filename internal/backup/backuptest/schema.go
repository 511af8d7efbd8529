package backuptest

// NewFinanceDB returns a DB holding the finance dashboard tables covered
// by backup.DefaultRegistry, all empty.
func NewFinanceDB() *DB {
	db := New()
	for _, def := range FinanceTables() {
		db.CreateTable(def)
	}
	return db
}

// FinanceTables mirrors the storage migrations.
func FinanceTables() []TableDef {
	return []TableDef{
		{
			Name:    "category_definitions",
			Columns: []string{"id", "name", "parent_id", "category_type", "icon", "color", "created_at"},
			Key:     []string{"id"},
			Serial:  "id",
			Ints:    []string{"parent_id"},
			NotNull: []string{"name"},
		},
		{
			Name:    "card_vendors",
			Columns: []string{"id", "card_number", "vendor", "card_nickname", "created_at"},
			Key:     []string{"id"},
			Serial:  "id",
			NotNull: []string{"card_number", "vendor"},
		},
		{
			Name: "vendor_credentials",
			Columns: []string{"id", "card_vendor_id", "vendor", "username", "id_number",
				"card6_digits", "nickname", "last_scraped_at", "created_at"},
			Key:     []string{"id"},
			Serial:  "id",
			Ints:    []string{"card_vendor_id"},
			NotNull: []string{"vendor"},
		},
		{
			Name: "transactions",
			Columns: []string{"identifier", "vendor", "date", "name", "price", "category",
				"category_definition_id", "type", "processed_date", "original_amount",
				"original_currency", "charged_currency", "memo", "status",
				"installments_number", "installments_total", "account_number", "created_at"},
			Key:     []string{"identifier", "vendor"},
			Ints:    []string{"category_definition_id", "installments_number", "installments_total"},
			NotNull: []string{"date", "name", "price"},
		},
		{
			Name:    "categorization_rules",
			Columns: []string{"id", "name_pattern", "category_definition_id", "priority", "is_active", "created_at"},
			Key:     []string{"id"},
			Serial:  "id",
			Ints:    []string{"category_definition_id", "priority"},
			NotNull: []string{"name_pattern"},
		},
		{
			Name:    "budgets",
			Columns: []string{"id", "category_definition_id", "period_type", "budget_limit", "is_active", "created_at"},
			Key:     []string{"id"},
			Serial:  "id",
			Ints:    []string{"category_definition_id"},
			NotNull: []string{"budget_limit"},
		},
	}
}
