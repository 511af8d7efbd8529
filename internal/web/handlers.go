package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/fincore/internal/backup"
	"github.com/JonMunkholm/fincore/internal/logging"
)

// importRequest is the body of POST /import.
type importRequest struct {
	Data   *backup.Snapshot `json:"data"`
	Mode   string           `json:"mode"`
	Atomic bool             `json:"atomic"`
}

// handleExport streams every registry table as a snapshot download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := withClient(r.Context(), r)

	snap, err := s.service.Export(ctx)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	// Encode before writing headers so a failure can still become a 500.
	var buf bytes.Buffer
	if err := snap.Encode(&buf); err != nil {
		s.respondError(w, r, fmt.Errorf("encode snapshot: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, backup.Filename(snap.ExportedAt)))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(ctx).Warn("export write failed", "error", err)
	}
}

// handleImport restores the snapshot in the request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Backup.MaxImportSize)
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondMessage(w, r, err, backup.SnapshotTooLarge(s.cfg.Backup.MaxImportSize.String()), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, backup.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	if req.Data == nil || req.Data.Tables == nil {
		s.respondError(w, r, backup.NewValidationError("data.tables is required"))
		return
	}

	mode, err := backup.ParseImportMode(req.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := withClient(r.Context(), r)
	report, err := s.service.Import(ctx, req.Data, backup.ImportOptions{Mode: mode, Atomic: req.Atomic})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleHealth reports liveness and limiter occupancy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"operations": s.service.LimiterStatus(),
	})
}
