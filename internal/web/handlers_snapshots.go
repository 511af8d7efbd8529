package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/fincore/internal/backup"
)

// restoreRequest is the optional body of POST /snapshots/import.
type restoreRequest struct {
	Mode   string `json:"mode"`
	Atomic bool   `json:"atomic"`
}

// maxRestoreBody caps the options body; the snapshot itself comes from the store.
const maxRestoreBody = 4 << 10

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.ListSnapshots(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": list})
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.TakeSnapshot(withClient(r.Context(), r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.respondError(w, r, backup.NewValidationError("key query parameter is required"))
		return
	}

	var req restoreRequest
	body := http.MaxBytesReader(w, r.Body, maxRestoreBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, backup.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}

	mode, err := backup.ParseImportMode(req.Mode)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := s.service.RestoreSnapshot(withClient(r.Context(), r), key, backup.ImportOptions{Mode: mode, Atomic: req.Atomic})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleAuditLog returns recent audit entries; ?limit= caps the count.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := backup.DefaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			s.respondError(w, r, backup.NewValidationError("limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	entries, err := s.service.AuditLog(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
