package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies a backup failure by how the engine reacts to it.
type Kind int

const (
	KindUnknown       Kind = iota
	KindConnection         // fatal: transaction is rolled back
	KindSchemaAbsence      // table missing: skipped or exported as not found
	KindRowInsert          // one row or table failed: collected, import continues
	KindValidation         // bad request: rejected before any transaction
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSchemaAbsence:
		return "schema_absence"
	case KindRowInsert:
		return "row_insert"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the backup engine.
type Error struct {
	Kind    Kind
	Table   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Table != "" {
		b.WriteString(e.Table)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		if e.Message != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewValidationError reports a malformed request.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func connectionError(msg string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: msg, Cause: cause}
}

// wrap attaches table context to err, classifying it when it is not already
// an *Error.
func wrap(table, msg string, err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		if be.Table == "" {
			cp := *be
			cp.Table = table
			if msg != "" {
				cp.Message = joinMessage(msg, cp.Message)
			}
			return &cp
		}
		return be
	}
	return &Error{Kind: Classify(err), Table: table, Message: msg, Cause: err}
}

func joinMessage(outer, inner string) string {
	if inner == "" {
		return outer
	}
	return outer + ": " + inner
}

func kindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return Classify(err)
}

// IsConnection reports whether err must abort the whole operation.
func IsConnection(err error) bool { return err != nil && kindOf(err) == KindConnection }

// IsSchemaAbsence reports whether err means a table does not exist.
func IsSchemaAbsence(err error) bool { return err != nil && kindOf(err) == KindSchemaAbsence }

// IsRowInsert reports whether err is a per-row or per-table write failure.
func IsRowInsert(err error) bool { return err != nil && kindOf(err) == KindRowInsert }

// IsValidation reports whether err is a rejected request.
func IsValidation(err error) bool { return err != nil && kindOf(err) == KindValidation }

// Classify maps a driver error onto a Kind using its SQLSTATE. Errors that
// carry no SQLSTATE (network failures, closed connections) are treated as
// connection failures since the transaction state is unknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindConnection
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return KindConnection
	}

	code := pgErr.Code
	switch {
	case code == "42P01":
		return KindSchemaAbsence
	case strings.HasPrefix(code, "08"), code == "40P01", strings.HasPrefix(code, "57P"):
		return KindConnection
	case strings.HasPrefix(code, "22"), strings.HasPrefix(code, "23"),
		code == "42703", code == "42804":
		return KindRowInsert
	case code == "25P02":
		// in_failed_sql_transaction: a savepoint was not restored
		return KindConnection
	default:
		return KindRowInsert
	}
}

// TableError is one entry of ImportReport.Errors.
type TableError struct {
	Table string `json:"table"`
	Error string `json:"error"`

	// FailedRows counts the rows of Table that were rejected.
	FailedRows int `json:"failedRows,omitempty"`
}

// ErrorCollector accumulates non-fatal failures during an import, keeping
// one entry per table with the first error message.
type ErrorCollector struct {
	entries []TableError
	byTable map[string]int
}

// NewErrorCollector returns an empty collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{byTable: make(map[string]int)}
}

// Add records a table-level failure.
func (c *ErrorCollector) Add(table string, err error) {
	c.add(table, errorMessage(err), 0)
}

// AddRow records a rejected row of table. row is the index in TableDump.Data.
func (c *ErrorCollector) AddRow(table string, row int, err error) {
	c.add(table, fmt.Sprintf("row %d: %s", row, errorMessage(err)), 1)
}

func (c *ErrorCollector) add(table, msg string, rows int) {
	if i, ok := c.byTable[table]; ok {
		c.entries[i].FailedRows += rows
		return
	}
	c.byTable[table] = len(c.entries)
	c.entries = append(c.entries, TableError{Table: table, Error: msg, FailedRows: rows})
}

// errorMessage drops the table prefix an *Error would repeat.
func errorMessage(err error) string {
	var be *Error
	if errors.As(err, &be) && be.Table != "" {
		cp := *be
		cp.Table = ""
		return cp.Error()
	}
	return err.Error()
}

// Errors returns the collected entries in the order tables first failed.
// The result is never nil.
func (c *ErrorCollector) Errors() []TableError {
	out := make([]TableError, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the entry for table.
func (c *ErrorCollector) Get(table string) (TableError, bool) {
	i, ok := c.byTable[table]
	if !ok {
		return TableError{}, false
	}
	return c.entries[i], true
}

// HasErrors reports whether anything was collected.
func (c *ErrorCollector) HasErrors() bool { return len(c.entries) > 0 }

// Len returns the number of tables with errors.
func (c *ErrorCollector) Len() int { return len(c.entries) }
