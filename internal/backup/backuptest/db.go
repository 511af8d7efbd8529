// Package backuptest provides an in-memory database that understands the
// statements issued by the backup engine, so exports and imports can be
// exercised without PostgreSQL.
//
// Transactions see a private copy of every table. Savepoints, aborted
// transactions (SQLSTATE 25P02) and read-only transactions behave the way
// PostgreSQL does; sequences are not transactional, as in PostgreSQL.
package backuptest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fincore/internal/backup"
)

// TableDef describes a table created with CreateTable.
type TableDef struct {
	Name    string
	Columns []string

	// Key columns are unique together; inserting a duplicate fails with
	// 23505 unless the statement has ON CONFLICT DO NOTHING.
	Key []string

	// Serial names an integer column filled from a sequence when omitted.
	Serial string

	// Ints are integer columns; non-integer input fails with 22P02.
	Ints []string

	NotNull []string
}

type table struct {
	def     TableDef
	rows    []map[string]json.RawMessage
	ints    map[string]bool
	notNull map[string]bool
}

func (t *table) clone() *table {
	cp := *t
	cp.rows = slices.Clone(t.rows)
	return &cp
}

type sequence struct {
	start int64
	next  int64
}

// AuditRecord is one row written to backup_audit_log.
type AuditRecord struct {
	OperationID string
	Action      string
	Severity    string
	Mode        string
	Success     bool
	Committed   bool
	Rows        int
	ErrorCount  int
}

type failure struct {
	substr string
	err    error
	limit  int // 0 means unlimited
	used   int
}

// DB is an in-memory database. The zero value is not usable; call New.
type DB struct {
	mu        sync.Mutex
	tables    map[string]*table
	sequences map[string]*sequence
	failures  []*failure
	log       []string
	audit     []AuditRecord

	acquireErr error
	commitErr  error

	open      int
	commits   int
	rollbacks int
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		tables:    make(map[string]*table),
		sequences: make(map[string]*sequence),
	}
}

// CreateTable adds a table.
func (db *DB) CreateTable(def TableDef) {
	db.mu.Lock()
	defer db.mu.Unlock()

	t := &table{def: def, ints: make(map[string]bool), notNull: make(map[string]bool)}
	for _, c := range def.Ints {
		t.ints[c] = true
	}
	for _, c := range def.NotNull {
		t.notNull[c] = true
	}
	for _, c := range def.Key {
		t.notNull[c] = true
	}
	if def.Serial != "" {
		t.ints[def.Serial] = true
		t.notNull[def.Serial] = true
		db.sequences[def.Name] = &sequence{start: 1, next: 1}
	}
	db.tables[def.Name] = t
}

// Insert adds rows outside any transaction. Like an explicit-key INSERT in
// PostgreSQL, it does not advance the table's sequence unless the serial
// column is omitted.
func (db *DB) Insert(name string, rows ...map[string]any) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return fmt.Errorf("backuptest: no table %s", name)
	}
	for _, r := range rows {
		values := make(map[string]json.RawMessage, len(r))
		for k, v := range r {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			values[k] = b
		}
		row, err := db.buildRow(t, values)
		if err != nil {
			return err
		}
		t.rows = append(t.rows, row)
	}
	return nil
}

// RowCount returns the committed number of rows in name.
func (db *DB) RowCount(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if t, ok := db.tables[name]; ok {
		return len(t.rows)
	}
	return 0
}

// Values returns the committed JSON text of col for each row of name, in
// insertion order.
func (db *DB) Values(name, col string) []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return nil
	}
	out := make([]string, len(t.rows))
	for i, r := range t.rows {
		v, ok := r[col]
		if !ok {
			v = json.RawMessage("null")
		}
		out[i] = string(v)
	}
	return out
}

// NextVal returns the value the sequence of name would hand out next.
func (db *DB) NextVal(name string) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s, ok := db.sequences[name]; ok {
		return s.next
	}
	return 0
}

// FailOn makes statements containing substr fail with err, n times or
// forever when n <= 0. A *pgconn.PgError aborts the transaction the way
// PostgreSQL does; any other error breaks the connection.
func (db *DB) FailOn(substr string, err error, n int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if n < 0 {
		n = 0
	}
	db.failures = append(db.failures, &failure{substr: substr, err: err, limit: n})
}

// FailAcquire makes Acquire return err.
func (db *DB) FailAcquire(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.acquireErr = err
}

// FailCommit makes every Commit return err.
func (db *DB) FailCommit(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.commitErr = err
}

// Statements returns every statement executed so far.
func (db *DB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.log)
}

// Audit returns the rows written to backup_audit_log.
func (db *DB) Audit() []AuditRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Clone(db.audit)
}

// OpenConns returns the number of acquired connections not yet released.
func (db *DB) OpenConns() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.open
}

// Commits returns the number of committed transactions.
func (db *DB) Commits() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.commits
}

// Rollbacks returns the number of rolled back transactions.
func (db *DB) Rollbacks() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.rollbacks
}

// Acquire implements backup.ConnSource.
func (db *DB) Acquire(ctx context.Context) (backup.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.acquireErr != nil {
		return nil, db.acquireErr
	}
	db.open++
	return &conn{db: db}, nil
}

// Exec runs sql in its own transaction, so DB can serve as a backup.DBTX.
func (db *DB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := db.autocommit(ctx, func(tx *Tx) error {
		var err error
		tag, err = tx.Exec(ctx, sql, args...)
		return err
	})
	return tag, err
}

// Query runs sql in its own transaction.
func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := db.autocommit(ctx, func(tx *Tx) error {
		var err error
		rows, err = tx.Query(ctx, sql, args...)
		return err
	})
	return rows, err
}

// QueryRow runs sql in its own transaction.
func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return &row{err: err}
	}
	return &row{rows: rows}
}

func (db *DB) autocommit(ctx context.Context, fn func(*Tx) error) error {
	tx := db.begin(pgx.TxOptions{})
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (db *DB) begin(opts pgx.TxOptions) *Tx {
	db.mu.Lock()
	defer db.mu.Unlock()

	tables := make(map[string]*table, len(db.tables))
	for name, t := range db.tables {
		tables[name] = t.clone()
	}
	return &Tx{db: db, opts: opts, tables: tables}
}

// injected returns the failure registered for sql, if any.
func (db *DB) injected(sql string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.log = append(db.log, sql)
	for _, f := range db.failures {
		if f.limit > 0 && f.used >= f.limit {
			continue
		}
		if !strings.Contains(sql, f.substr) {
			continue
		}
		f.used++
		return f.err
	}
	return nil
}

// buildRow applies column defaults and type checks. db.mu must be held.
func (db *DB) buildRow(t *table, values map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	row := make(map[string]json.RawMessage, len(t.def.Columns))
	for k, v := range values {
		if !slices.Contains(t.def.Columns, k) {
			return nil, pgError("42703", fmt.Sprintf("column %q of relation %q does not exist", k, t.def.Name))
		}
		row[k] = v
	}

	if s := t.def.Serial; s != "" {
		if _, ok := row[s]; !ok {
			seq := db.sequences[t.def.Name]
			row[s] = json.RawMessage(strconv.FormatInt(seq.next, 10))
			seq.next++
		}
	}

	for _, col := range t.def.Columns {
		v, ok := row[col]
		if !ok || string(v) == "null" {
			if t.notNull[col] {
				return nil, pgError("23502", fmt.Sprintf("null value in column %q of relation %q violates not-null constraint", col, t.def.Name))
			}
			delete(row, col)
			continue
		}
		if t.ints[col] {
			n, err := parseInt(v)
			if err != nil {
				return nil, pgError("22P02", fmt.Sprintf("invalid input syntax for type integer: %s", v))
			}
			row[col] = json.RawMessage(strconv.FormatInt(n, 10))
		}
	}
	return row, nil
}

func parseInt(v json.RawMessage) (int64, error) {
	s := string(v)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, err
		}
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

func pgError(code, msg string) *pgconn.PgError {
	return &pgconn.PgError{Severity: "ERROR", Code: code, Message: msg}
}

type conn struct {
	db       *DB
	released bool
}

func (c *conn) BeginTx(ctx context.Context, opts pgx.TxOptions) (backup.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.db.injected("BEGIN"); err != nil {
		return nil, err
	}
	return c.db.begin(opts), nil
}

func (c *conn) Release() {
	if c.released {
		return
	}
	c.released = true
	c.db.mu.Lock()
	c.db.open--
	c.db.mu.Unlock()
}

type savepointState struct {
	name   string
	tables map[string]*table
}

// Tx is a transaction on DB. It implements backup.Tx.
type Tx struct {
	db         *DB
	opts       pgx.TxOptions
	tables     map[string]*table
	savepoints []savepointState
	aborted    bool
	broken     error
	done       bool
}

var (
	savepointRe  = regexp.MustCompile(`^SAVEPOINT "([^"]+)"$`)
	rollbackToRe = regexp.MustCompile(`^ROLLBACK TO SAVEPOINT "([^"]+)"$`)
	releaseRe    = regexp.MustCompile(`^RELEASE SAVEPOINT "([^"]+)"$`)
	truncateRe   = regexp.MustCompile(`^TRUNCATE TABLE "([^"]+)" CASCADE$`)
	insertRe     = regexp.MustCompile(`^INSERT INTO "([^"]+)" \(([^)]*)\) SELECT .* FROM json_populate_record\(NULL::"[^"]+", \$1::json\)(?: ON CONFLICT \(([^)]*)\) DO NOTHING)?$`)
	defaultsRe   = regexp.MustCompile(`^INSERT INTO "([^"]+)" DEFAULT VALUES(?: ON CONFLICT \(([^)]*)\) DO NOTHING)?$`)
	selectRe     = regexp.MustCompile(`^SELECT row_to_json\(t\)::text FROM "([^"]+)" AS t$`)
	setvalRe     = regexp.MustCompile(`MAX\("([^"]+)"\) FROM "([^"]+)"`)
)

// Exec implements backup.DBTX.
func (tx *Tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, _, err := tx.run(ctx, sql, args)
	return tag, err
}

// Query implements backup.DBTX.
func (tx *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	_, values, err := tx.run(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	return &resultRows{values: values, pos: -1}, nil
}

// QueryRow implements backup.DBTX.
func (tx *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	r, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return &row{err: err}
	}
	return &row{rows: r}
}

// Commit implements backup.Tx.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true

	db := tx.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if tx.broken != nil {
		return tx.broken
	}
	if db.commitErr != nil {
		db.rollbacks++
		return db.commitErr
	}
	if tx.aborted {
		db.rollbacks++
		return pgx.ErrTxCommitRollback
	}
	db.tables = tx.tables
	db.commits++
	return nil
}

// Rollback implements backup.Tx.
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	if tx.broken != nil {
		return tx.broken
	}
	tx.db.rollbacks++
	return nil
}

func (tx *Tx) run(ctx context.Context, sql string, args []any) (pgconn.CommandTag, [][]any, error) {
	if tx.done {
		return pgconn.CommandTag{}, nil, pgx.ErrTxClosed
	}
	if tx.broken != nil {
		return pgconn.CommandTag{}, nil, tx.broken
	}
	if err := ctx.Err(); err != nil {
		tx.broken = err
		return pgconn.CommandTag{}, nil, err
	}

	sql = strings.TrimSpace(sql)

	if m := rollbackToRe.FindStringSubmatch(sql); m != nil {
		tx.db.injected(sql)
		return tx.rollbackTo(m[1])
	}
	if tx.aborted {
		tx.db.injected(sql)
		return pgconn.CommandTag{}, nil, pgError("25P02", "current transaction is aborted, commands ignored until end of transaction block")
	}

	if err := tx.db.injected(sql); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			tx.aborted = true
		} else {
			tx.broken = err
		}
		return pgconn.CommandTag{}, nil, err
	}

	tag, values, err := tx.dispatch(sql, args)
	if err != nil {
		tx.aborted = true
	}
	return tag, values, err
}

func (tx *Tx) dispatch(sql string, args []any) (pgconn.CommandTag, [][]any, error) {
	switch {
	case savepointRe.MatchString(sql):
		name := savepointRe.FindStringSubmatch(sql)[1]
		tx.savepoints = append(tx.savepoints, savepointState{name: name, tables: tx.cloneTables()})
		return pgconn.NewCommandTag("SAVEPOINT"), nil, nil

	case releaseRe.MatchString(sql):
		name := releaseRe.FindStringSubmatch(sql)[1]
		i := tx.findSavepoint(name)
		if i < 0 {
			return pgconn.CommandTag{}, nil, pgError("3B001", fmt.Sprintf("savepoint %q does not exist", name))
		}
		tx.savepoints = tx.savepoints[:i]
		return pgconn.NewCommandTag("RELEASE"), nil, nil

	case strings.Contains(sql, "information_schema.columns"):
		name, _ := args[0].(string)
		var out [][]any
		if t, ok := tx.tables[name]; ok {
			for _, c := range t.def.Columns {
				out = append(out, []any{c})
			}
		}
		return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(out))), out, nil

	case selectRe.MatchString(sql):
		return tx.selectRows(selectRe.FindStringSubmatch(sql)[1])

	case truncateRe.MatchString(sql):
		return tx.truncate(truncateRe.FindStringSubmatch(sql)[1])

	case insertRe.MatchString(sql):
		m := insertRe.FindStringSubmatch(sql)
		payload, _ := args[0].(string)
		return tx.insert(m[1], splitIdents(m[2]), payload, m[3] != "")

	case defaultsRe.MatchString(sql):
		m := defaultsRe.FindStringSubmatch(sql)
		return tx.insert(m[1], nil, "", m[2] != "")

	case strings.HasPrefix(sql, "SELECT pg_get_serial_sequence"):
		return tx.serialSequence(args)

	case strings.HasPrefix(sql, "SELECT setval"):
		return tx.setval(sql)

	case strings.HasPrefix(sql, "INSERT INTO backup_audit_log"):
		return tx.recordAudit(args)
	}

	return pgconn.CommandTag{}, nil, pgError("42601", "backuptest: unsupported statement: "+sql)
}

func (tx *Tx) cloneTables() map[string]*table {
	out := make(map[string]*table, len(tx.tables))
	for k, t := range tx.tables {
		out[k] = t.clone()
	}
	return out
}

func (tx *Tx) findSavepoint(name string) int {
	for i := len(tx.savepoints) - 1; i >= 0; i-- {
		if tx.savepoints[i].name == name {
			return i
		}
	}
	return -1
}

func (tx *Tx) rollbackTo(name string) (pgconn.CommandTag, [][]any, error) {
	i := tx.findSavepoint(name)
	if i < 0 {
		tx.aborted = true
		return pgconn.CommandTag{}, nil, pgError("3B001", fmt.Sprintf("savepoint %q does not exist", name))
	}
	tx.tables = tx.savepoints[i].tables
	tx.savepoints[i].tables = tx.cloneTables()
	tx.savepoints = tx.savepoints[:i+1]
	tx.aborted = false
	return pgconn.NewCommandTag("ROLLBACK"), nil, nil
}

func (tx *Tx) readOnly() error {
	if tx.opts.AccessMode == pgx.ReadOnly {
		return pgError("25006", "cannot execute statement in a read-only transaction")
	}
	return nil
}

func (tx *Tx) lookup(name string) (*table, error) {
	t, ok := tx.tables[name]
	if !ok {
		return nil, pgError("42P01", fmt.Sprintf("relation %q does not exist", name))
	}
	return t, nil
}

func (tx *Tx) selectRows(name string) (pgconn.CommandTag, [][]any, error) {
	t, err := tx.lookup(name)
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}

	out := make([][]any, 0, len(t.rows))
	for _, r := range t.rows {
		var b strings.Builder
		b.WriteByte('{')
		for i, col := range t.def.Columns {
			if i > 0 {
				b.WriteByte(',')
			}
			key, _ := json.Marshal(col)
			b.Write(key)
			b.WriteByte(':')
			if v, ok := r[col]; ok {
				b.Write(v)
			} else {
				b.WriteString("null")
			}
		}
		b.WriteByte('}')
		out = append(out, []any{b.String()})
	}
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(out))), out, nil
}

func (tx *Tx) truncate(name string) (pgconn.CommandTag, [][]any, error) {
	if err := tx.readOnly(); err != nil {
		return pgconn.CommandTag{}, nil, err
	}
	t, err := tx.lookup(name)
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}
	t.rows = nil
	return pgconn.NewCommandTag("TRUNCATE TABLE"), nil, nil
}

func (tx *Tx) insert(name string, cols []string, payload string, onConflict bool) (pgconn.CommandTag, [][]any, error) {
	if err := tx.readOnly(); err != nil {
		return pgconn.CommandTag{}, nil, err
	}
	t, err := tx.lookup(name)
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}

	values := make(map[string]json.RawMessage, len(cols))
	if len(cols) > 0 {
		var record map[string]json.RawMessage
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return pgconn.CommandTag{}, nil, pgError("22P02", "invalid input syntax for type json")
		}
		for _, c := range cols {
			if v, ok := record[c]; ok {
				values[c] = v
			} else {
				values[c] = json.RawMessage("null")
			}
		}
	}

	tx.db.mu.Lock()
	r, err := tx.db.buildRow(t, values)
	tx.db.mu.Unlock()
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}

	if len(t.def.Key) > 0 {
		for _, existing := range t.rows {
			if !sameKey(t.def.Key, existing, r) {
				continue
			}
			if onConflict {
				return pgconn.NewCommandTag("INSERT 0 0"), nil, nil
			}
			return pgconn.CommandTag{}, nil, pgError("23505", fmt.Sprintf("duplicate key value violates unique constraint %q", t.def.Name+"_pkey"))
		}
	}

	t.rows = append(t.rows, r)
	return pgconn.NewCommandTag("INSERT 0 1"), nil, nil
}

func sameKey(key []string, a, b map[string]json.RawMessage) bool {
	for _, k := range key {
		if string(a[k]) != string(b[k]) {
			return false
		}
	}
	return true
}

func (tx *Tx) serialSequence(args []any) (pgconn.CommandTag, [][]any, error) {
	quoted, _ := args[0].(string)
	col, _ := args[1].(string)
	name := strings.Trim(quoted, `"`)

	t, err := tx.lookup(name)
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}
	var seq *string
	if t.def.Serial != "" && t.def.Serial == col {
		s := "public." + name + "_" + col + "_seq"
		seq = &s
	}
	return pgconn.NewCommandTag("SELECT 1"), [][]any{{seq}}, nil
}

func (tx *Tx) setval(sql string) (pgconn.CommandTag, [][]any, error) {
	m := setvalRe.FindStringSubmatch(sql)
	if m == nil {
		return pgconn.CommandTag{}, nil, pgError("42601", "backuptest: cannot parse setval")
	}
	col, name := m[1], m[2]

	t, err := tx.lookup(name)
	if err != nil {
		return pgconn.CommandTag{}, nil, err
	}

	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()

	seq, ok := tx.db.sequences[name]
	if !ok {
		return pgconn.CommandTag{}, nil, pgError("42P01", fmt.Sprintf("sequence for %q does not exist", name))
	}

	next := seq.start
	var found bool
	var maxVal int64
	for _, r := range t.rows {
		v, ok := r[col]
		if !ok {
			continue
		}
		n, err := parseInt(v)
		if err != nil {
			continue
		}
		if !found || n > maxVal {
			maxVal, found = n, true
		}
	}
	if found {
		next = maxVal + 1
	}
	seq.next = next
	return pgconn.NewCommandTag("SELECT 1"), [][]any{{next}}, nil
}

func (tx *Tx) recordAudit(args []any) (pgconn.CommandTag, [][]any, error) {
	if len(args) < 9 {
		return pgconn.CommandTag{}, nil, pgError("08P01", "backuptest: audit insert needs 13 arguments")
	}
	rec := AuditRecord{
		OperationID: textArg(args[0]),
		Action:      textArg(args[1]),
		Severity:    textArg(args[2]),
		Mode:        textArg(args[3]),
	}
	rec.Success, _ = args[4].(bool)
	rec.Committed, _ = args[5].(bool)
	rec.Rows, _ = args[7].(int)
	rec.ErrorCount, _ = args[8].(int)

	tx.db.mu.Lock()
	tx.db.audit = append(tx.db.audit, rec)
	tx.db.mu.Unlock()
	return pgconn.NewCommandTag("INSERT 0 1"), nil, nil
}

// textArg reads string and pgtype.Text arguments.
func textArg(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case pgtype.Text:
		if s.Valid {
			return s.String
		}
	}
	return ""
}

func splitIdents(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tables returns the names of all tables, sorted.
func (db *DB) Tables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Sorted(maps.Keys(db.tables))
}
