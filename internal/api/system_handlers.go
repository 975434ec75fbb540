package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/clock"
	"grimm.is/headmod/internal/logging"
)

// StatusResponse summarizes the daemon for dashboards and the CLI.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	Power           bool   `json:"power"`
	ProfileCount    int    `json:"profileCount"`
	RegisteredRules int    `json:"registeredRules"`
	RuleErrors      int    `json:"ruleErrors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	power, err := s.settings.Power()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read power", err.Error())
		return
	}
	profiles, err := s.profiles.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list profiles", err.Error())
		return
	}
	ids, err := s.ruleIDs.All()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read rule map", err.Error())
		return
	}
	errs, err := s.ruleErrors.All()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read rule errors", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, StatusResponse{
		Status:          "online",
		Uptime:          clock.Since(s.startTime).Round(time.Second).String(),
		Power:           power,
		ProfileCount:    len(profiles),
		RegisteredRules: len(ids),
		RuleErrors:      len(errs),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadiness verifies the store and engine are reachable.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if _, err := s.settings.Power(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "state store unavailable", err.Error())
		return
	}
	if _, err := s.engine.ListRules(r.Context()); err != nil {
		WriteError(w, http.StatusServiceUnavailable, "engine unavailable", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type powerRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	power, err := s.settings.Power()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read power", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, powerRequest{On: power})
}

func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var req powerRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if err := s.settings.SetPower(req.On); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store power", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

type selectedRequest struct {
	ProfileID uuid.UUID `json:"profileId"`
}

func (s *Server) handleGetSelected(w http.ResponseWriter, r *http.Request) {
	id, err := s.settings.SelectedProfile()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read selection", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, selectedRequest{ProfileID: id})
}

func (s *Server) handleSetSelected(w http.ResponseWriter, r *http.Request) {
	var req selectedRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid body", err.Error())
		return
	}
	if req.ProfileID != uuid.Nil {
		if _, err := s.profiles.Get(req.ProfileID); err != nil {
			WriteError(w, http.StatusNotFound, "profile not found")
			return
		}
	}
	if err := s.settings.SetSelectedProfile(req.ProfileID); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store selection", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

// handleEngineRules returns the engine's authoritative rule listing.
func (s *Server) handleEngineRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.engine.ListRules(r.Context())
	if err != nil {
		WriteError(w, http.StatusBadGateway, "engine listing failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, rules)
}

func (s *Server) handleRuleIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ruleIDs.All()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read rule map", err.Error())
		return
	}
	// uuid keys serialize cleanly as strings.
	out := make(map[string]int, len(ids))
	for pid, rid := range ids {
		out[pid.String()] = rid
	}
	WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuleErrors(w http.ResponseWriter, r *http.Request) {
	errs, err := s.ruleErrors.All()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to read rule errors", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, errs)
}

// handleReinitialize wipes the engine and rebuilds every rule from the
// current profile set. The rebuild is queued on the sync loop; the response
// only acknowledges the request.
func (s *Server) handleReinitialize(w http.ResponseWriter, r *http.Request) {
	if s.sync == nil {
		WriteError(w, http.StatusServiceUnavailable, "sync service not running")
		return
	}
	s.sync.Reinitialize()
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	buf := logging.GetAppLogBuffer()
	if source := r.URL.Query().Get("source"); source != "" {
		WriteJSON(w, http.StatusOK, buf.GetBySource(source, limit))
		return
	}
	WriteJSON(w, http.StatusOK, buf.GetLast(limit))
}
