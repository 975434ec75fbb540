package api

import (
	"io"
	"net/http"
	"time"

	"grimm.is/headmod/internal/archive"
	"grimm.is/headmod/internal/clock"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list profiles", err.Error())
		return
	}

	data, err := archive.Export(profiles, clock.Now().UTC().Format(time.RFC3339))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="headmod-profiles.yaml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleImport replaces the profile set with the uploaded archive. The
// store is snapshotted first; any mid-import failure restores it, so the
// profile set never ends up half-replaced.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow(getClientIP(r), importRateLimit, importRateInterval) {
		WriteError(w, http.StatusTooManyRequests, "too many import requests", "retry later")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read body", err.Error())
		return
	}

	imported, err := archive.Import(data)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid archive", err.Error())
		return
	}

	snapshot, err := s.store.CreateSnapshot()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to snapshot state", err.Error())
		return
	}

	rollback := func(cause error) {
		if rerr := s.store.RestoreSnapshot(snapshot); rerr != nil {
			s.logger.Error("import rollback failed", "error", rerr, "cause", cause)
			return
		}
		s.logger.Warn("import rolled back", "cause", cause)
	}

	existing, err := s.profiles.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list profiles", err.Error())
		return
	}
	for i := range existing {
		if err := s.profiles.Delete(existing[i].ID); err != nil {
			rollback(err)
			WriteError(w, http.StatusInternalServerError, "import failed", err.Error())
			return
		}
	}
	for i := range imported {
		if err := s.profiles.Set(&imported[i]); err != nil {
			rollback(err)
			WriteError(w, http.StatusInternalServerError, "import failed", err.Error())
			return
		}
	}

	WriteJSON(w, http.StatusOK, map[string]int{"imported": len(imported)})
}
