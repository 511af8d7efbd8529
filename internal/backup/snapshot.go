package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// SnapshotVersion is written into every exported Snapshot.
const SnapshotVersion = "1.0"

// TableNotFound is the TableDump error for tables missing at export time.
const TableNotFound = "Table not found"

// Snapshot is the portable image of every registry table.
type Snapshot struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exportedAt"`
	Tables     map[string]TableDump `json:"tables"`
}

// TableDump holds the rows of one table. Error is set instead of data when
// the table could not be read.
type TableDump struct {
	RowCount int    `json:"rowCount"`
	Data     []Row  `json:"data"`
	Error    string `json:"error,omitempty"`
}

// MarshalJSON keeps data as [] rather than null for empty tables.
func (d TableDump) MarshalJSON() ([]byte, error) {
	type alias TableDump
	if d.Data == nil {
		d.Data = []Row{}
	}
	return json.Marshal(alias(d))
}

// UnmarshalJSON decodes each row on its own. An element that is not a JSON
// object becomes a Row whose Err is set, so one bad row fails at import
// time instead of rejecting the whole snapshot.
func (d *TableDump) UnmarshalJSON(b []byte) error {
	var wire struct {
		RowCount int               `json:"rowCount"`
		Data     []json.RawMessage `json:"data"`
		Error    string            `json:"error"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}

	d.RowCount = wire.RowCount
	d.Error = wire.Error
	d.Data = nil
	if wire.Data != nil {
		d.Data = make([]Row, len(wire.Data))
		for i, raw := range wire.Data {
			if err := d.Data[i].UnmarshalJSON(raw); err != nil {
				d.Data[i] = Row{invalid: err}
			}
		}
	}
	return nil
}

// Validate checks the structural minimum needed to import a snapshot.
func (s *Snapshot) Validate() error {
	if s == nil {
		return NewValidationError("snapshot is required")
	}
	if s.Tables == nil {
		return NewValidationError("snapshot is missing tables")
	}
	return nil
}

// TotalRows sums the rows carried by every table.
func (s *Snapshot) TotalRows() int {
	n := 0
	for _, t := range s.Tables {
		n += len(t.Data)
	}
	return n
}

// Encode writes the snapshot as indented JSON.
func (s *Snapshot) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// DecodeSnapshot reads and validates a snapshot.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, NewValidationError(fmt.Sprintf("invalid snapshot JSON: %v", err))
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Filename returns the download name for a snapshot taken at t.
func Filename(t time.Time) string {
	return "backup-" + t.UTC().Format("2006-01-02") + ".json"
}

// ImportMode selects how an import treats existing data.
type ImportMode string

const (
	// ModeReplace clears every registry table before inserting.
	ModeReplace ImportMode = "replace"
	// ModeMerge keeps existing rows and skips conflicting keys.
	ModeMerge ImportMode = "merge"
)

// ParseImportMode parses a mode name. An empty name means replace.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeReplace:
		return ModeReplace, nil
	case ModeMerge:
		return ModeMerge, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown import mode %q", s))
	}
}

// ImportOptions controls one import run.
type ImportOptions struct {
	Mode ImportMode

	// Atomic rolls back the whole import when any table or row failed.
	// When false, successful work is committed and failures are reported.
	Atomic bool
}

// TableResult is the per-table outcome of an import.
type TableResult struct {
	// Count is the number of rows written without error. In merge mode a
	// row skipped by ON CONFLICT still counts.
	Count int `json:"count"`

	Skipped bool `json:"skipped,omitempty"`

	// Inserted is the number of rows actually added; merge mode only.
	Inserted *int `json:"inserted,omitempty"`

	Failed int `json:"failed,omitempty"`
}

// ImportReport is returned to the caller after every import that reached
// the database.
type ImportReport struct {
	Success   bool                   `json:"success"`
	Committed bool                   `json:"committed"`
	Mode      ImportMode             `json:"mode"`
	Atomic    bool                   `json:"atomic"`
	Imported  map[string]TableResult `json:"imported"`
	Errors    []TableError           `json:"errors"`
}

// RowsImported sums Count over all tables.
func (r *ImportReport) RowsImported() int {
	n := 0
	for _, t := range r.Imported {
		n += t.Count
	}
	return n
}
