package backup

// error_messages.go maps technical failures to coded messages for API
// clients. Codes are stable so a user can quote one to support.
//
//	DB001  duplicate key          DB004  connection refused
//	DB002  foreign key            DB005  connection reset
//	DB003  not-null / check       DB006  timeout
//	                              DB007  deadlock
//	BAK001 invalid snapshot       BAK004 snapshot not found
//	BAK002 unknown import mode    BAK005 snapshot store disabled
//	BAK003 snapshot too large     BAK006 too many operations
//	REQ001 request cancelled      ERR000 anything else
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

// UserMessage is a client-facing description of a failure.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Row and constraint failures
	{"duplicate key", UserMessage{"A row with this key already exists", "Use merge mode to keep existing rows", "DB001"}},
	{"violates foreign key", UserMessage{"A row references a record that does not exist", "Check that the snapshot contains the parent tables", "DB002"}},
	{"violates not-null", UserMessage{"A required column is empty", "Check the snapshot for missing values", "DB003"}},
	{"violates check", UserMessage{"A value is outside the allowed range", "Check the snapshot for invalid values", "DB003"}},

	// Connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadline exceeded", UserMessage{"Operation timed out", "Try again later or restore a smaller snapshot", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Try again later or restore a smaller snapshot", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Requests
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. Sentinel and typed errors are
// matched first, then the message patterns above.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrTooManyOperations):
		return UserMessage{"Another backup operation is running", "Please wait a moment and try again", "BAK006"}
	case errors.Is(err, ErrNoSnapshotStore):
		return UserMessage{"Snapshot storage is not configured", "Set SNAPSHOT_STORE to enable snapshots", "BAK005"}
	case errors.Is(err, snapshotstore.ErrNotFound):
		return UserMessage{"Snapshot not found", "List snapshots to find a valid key", "BAK004"}
	case errors.Is(err, snapshotstore.ErrInvalidKey):
		return UserMessage{"Invalid snapshot key", "List snapshots to find a valid key", "BAK004"}
	}

	var be *Error
	if errors.As(err, &be) && be.Kind == KindValidation {
		if strings.Contains(be.Message, "import mode") {
			return UserMessage{"Unknown import mode", `Use "replace" or "merge"`, "BAK002"}
		}
		return UserMessage{"The snapshot is not valid", "Export a new snapshot and try again", "BAK001"}
	}

	lower := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(lower, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// SnapshotTooLarge is the message for request bodies over the size cap.
func SnapshotTooLarge(limit string) UserMessage {
	return UserMessage{
		Message: fmt.Sprintf("Snapshot exceeds the maximum size (%s)", limit),
		Action:  "Restore from the snapshot store or raise BACKUP_MAX_IMPORT_SIZE",
		Code:    "BAK003",
	}
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
