package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"grimm.is/headmod/internal/profile"
	"grimm.is/headmod/internal/state"
)

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := s.profiles.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list profiles", err.Error())
		return
	}
	if profiles == nil {
		profiles = []profile.Profile{}
	}
	WriteJSON(w, http.StatusOK, profiles)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := s.profiles.Get(id)
	if errors.Is(err, state.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load profile", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var p profile.Profile
	if err := decodeBody(r, &p); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid profile", err.Error())
		return
	}
	if p.Name == "" {
		WriteError(w, http.StatusBadRequest, "profile name is required")
		return
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, err := s.profiles.Get(p.ID); err == nil {
		WriteError(w, http.StatusConflict, "profile already exists")
		return
	}
	if err := s.profiles.Set(&p); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store profile", err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p profile.Profile
	if err := decodeBody(r, &p); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid profile", err.Error())
		return
	}
	if p.Name == "" {
		WriteError(w, http.StatusBadRequest, "profile name is required")
		return
	}
	// The URL is authoritative; a mismatched body id is rejected rather
	// than silently rekeyed.
	if p.ID != uuid.Nil && p.ID != id {
		WriteError(w, http.StatusBadRequest, "profile id does not match URL")
		return
	}
	p.ID = id
	if err := s.profiles.Set(&p); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to store profile", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.profiles.Get(id); errors.Is(err, state.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err := s.profiles.Delete(id); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to delete profile", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid profile id")
		return uuid.Nil, false
	}
	return id, true
}
