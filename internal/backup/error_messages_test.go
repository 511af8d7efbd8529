package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/fincore/internal/snapshotstore"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"duplicate key message", errors.New(`duplicate key value violates unique constraint "budgets_pkey"`), "DB001"},
		{"foreign key", errors.New("insert or update on table violates foreign key constraint"), "DB002"},
		{"not null", errors.New(`null value in column "name" violates not-null constraint`), "DB003"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB004"},
		{"deadline", fmt.Errorf("export: %w", context.DeadlineExceeded), "DB006"},
		{"cancelled", context.Canceled, "REQ001"},
		{"too many operations", fmt.Errorf("begin: %w", ErrTooManyOperations), "BAK006"},
		{"no store", ErrNoSnapshotStore, "BAK005"},
		{"snapshot missing", fmt.Errorf("get: %w", snapshotstore.ErrNotFound), "BAK004"},
		{"bad key", snapshotstore.ErrInvalidKey, "BAK004"},
		{"bad mode", mustModeErr(t), "BAK002"},
		{"bad snapshot", NewValidationError("snapshot is missing tables"), "BAK001"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %s, want %s (message %q)", got.Code, tt.wantCode, got.Message)
			}
			if got.Message == "" || got.Action == "" {
				t.Errorf("MapError() = %+v, want message and action", got)
			}
		})
	}
}

func mustModeErr(t *testing.T) error {
	t.Helper()
	_, err := ParseImportMode("upsert")
	if err == nil {
		t.Fatal("ParseImportMode(upsert) should fail")
	}
	return err
}

func TestMapError_Nil(t *testing.T) {
	if got := MapError(nil); got != (UserMessage{}) {
		t.Errorf("MapError(nil) = %+v, want zero value", got)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManyOperations)
	if !strings.Contains(got, "(Code: BAK006)") {
		t.Errorf("FormatUserError() = %q, want code", got)
	}
}

func TestSnapshotTooLarge(t *testing.T) {
	msg := SnapshotTooLarge("50 MB")
	if msg.Code != "BAK003" {
		t.Errorf("Code = %s, want BAK003", msg.Code)
	}
	if !strings.Contains(msg.Message, "50 MB") {
		t.Errorf("Message = %q, want limit", msg.Message)
	}
}
