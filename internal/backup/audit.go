package backup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/fincore/internal/logging"
)

// AuditAction identifies what a backup audit entry records.
type AuditAction string

const (
	ActionExport          AuditAction = "backup_export"
	ActionImport          AuditAction = "backup_import"
	ActionSnapshotCreate  AuditAction = "snapshot_create"
	ActionSnapshotRestore AuditAction = "snapshot_restore"
)

// AuditSeverity ranks audit entries for review.
type AuditSeverity string

const (
	SeverityLow      AuditSeverity = "low"
	SeverityMedium   AuditSeverity = "medium"
	SeverityHigh     AuditSeverity = "high"
	SeverityCritical AuditSeverity = "critical"
)

// DefaultAuditLimit caps List when no limit is given.
const DefaultAuditLimit = 50

// AuditEntry is one row of backup_audit_log.
type AuditEntry struct {
	ID          string         `json:"id"`
	OperationID string         `json:"operationId"`
	Action      AuditAction    `json:"action"`
	Severity    AuditSeverity  `json:"severity"`
	Mode        string         `json:"mode,omitempty"`
	Success     bool           `json:"success"`
	Committed   bool           `json:"committed"`
	Tables      int            `json:"tables"`
	Rows        int            `json:"rows"`
	ErrorCount  int            `json:"errorCount"`
	SnapshotKey string         `json:"snapshotKey,omitempty"`
	Detail      map[string]any `json:"detail,omitempty"`
	IPAddress   string         `json:"ipAddress,omitempty"`
	UserAgent   string         `json:"userAgent,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// AuditLogParams describes an entry to record.
type AuditLogParams struct {
	Action      AuditAction
	Mode        ImportMode
	Success     bool
	Committed   bool
	Tables      int
	Rows        int
	ErrorCount  int
	SnapshotKey string
	Detail      map[string]any
}

// determineSeverity ranks an action. Replace imports wipe every table.
func determineSeverity(action AuditAction, mode ImportMode) AuditSeverity {
	switch action {
	case ActionImport, ActionSnapshotRestore:
		if mode == ModeMerge {
			return SeverityHigh
		}
		return SeverityCritical
	case ActionSnapshotCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

const insertAuditSQL = `INSERT INTO backup_audit_log
	(operation_id, action, severity, mode, success, committed, table_count, row_count,
	 error_count, snapshot_key, detail, ip_address, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const listAuditSQL = `SELECT id::text, COALESCE(operation_id, ''), action, severity,
	COALESCE(mode, ''), success, committed, table_count, row_count, error_count,
	COALESCE(snapshot_key, ''), detail, COALESCE(ip_address, ''),
	COALESCE(user_agent, ''), created_at
FROM backup_audit_log
ORDER BY created_at DESC
LIMIT $1`

// AuditLog writes backup_audit_log rows. A nil *AuditLog records nothing.
type AuditLog struct {
	db DBTX
}

// NewAuditLog returns an AuditLog over db.
func NewAuditLog(db DBTX) *AuditLog {
	return &AuditLog{db: db}
}

// Record inserts an entry. Recording is best effort: failures are logged
// and never affect the audited operation.
func (a *AuditLog) Record(ctx context.Context, params AuditLogParams) {
	if a == nil || a.db == nil {
		return
	}

	var detail []byte
	if params.Detail != nil {
		b, err := json.Marshal(params.Detail)
		if err == nil {
			detail = b
		}
	}

	_, err := a.db.Exec(ctx, insertAuditSQL,
		pgText(logging.OperationID(ctx)),
		string(params.Action),
		string(determineSeverity(params.Action, params.Mode)),
		pgText(string(params.Mode)),
		params.Success,
		params.Committed,
		params.Tables,
		params.Rows,
		params.ErrorCount,
		pgText(params.SnapshotKey),
		detail,
		pgText(IPAddressFromContext(ctx)),
		pgText(UserAgentFromContext(ctx)),
	)
	if err != nil {
		logging.FromContext(ctx).Warn("audit log write failed", "action", params.Action, "error", err)
	}
}

// List returns the most recent entries, newest first.
func (a *AuditLog) List(ctx context.Context, limit int) ([]AuditEntry, error) {
	if a == nil || a.db == nil {
		return []AuditEntry{}, nil
	}
	if limit <= 0 {
		limit = DefaultAuditLimit
	}

	rows, err := a.db.Query(ctx, listAuditSQL, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var (
			e      AuditEntry
			detail []byte
		)
		err := row.Scan(&e.ID, &e.OperationID, &e.Action, &e.Severity, &e.Mode,
			&e.Success, &e.Committed, &e.Tables, &e.Rows, &e.ErrorCount,
			&e.SnapshotKey, &detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		if err != nil {
			return e, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		return e, nil
	})
}

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}
