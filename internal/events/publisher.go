// Package events notifies other services when backups are taken or
// restored.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Routing keys.
const (
	KeyExported = "backup.exported"
	KeyImported = "backup.imported"
)

// Publisher sends an event. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                                { return nil }

// ExportedEvent is published after a successful export.
type ExportedEvent struct {
	OperationID string    `json:"operationId"`
	ExportedAt  time.Time `json:"exportedAt"`
	Tables      int       `json:"tables"`
	Rows        int       `json:"rows"`
	SnapshotKey string    `json:"snapshotKey,omitempty"`
}

// ImportedEvent is published after every import that reached the database.
type ImportedEvent struct {
	OperationID string    `json:"operationId"`
	Mode        string    `json:"mode"`
	Success     bool      `json:"success"`
	Committed   bool      `json:"committed"`
	Rows        int       `json:"rows"`
	Errors      int       `json:"errors"`
	SnapshotKey string    `json:"snapshotKey,omitempty"`
	ImportedAt  time.Time `json:"importedAt"`
}

// encode marshals an event body.
func encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}
