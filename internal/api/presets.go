package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/satindergrewal/soundscape/internal/store"
)

type presetSaveRequest struct {
	Name string `json:"name"`
}

func (a *API) handlePresetsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.presets.List(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []store.PresetRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handlePresetSave stores the current mix under the given name.
func (a *API) handlePresetSave(w http.ResponseWriter, r *http.Request) {
	var req presetSaveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	rec, err := a.presets.Save(r.Context(), req.Name, a.engine.Snapshot())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handlePresetLoad replaces the mix with the preset. It counts as a user
// gesture, like every other mix change.
func (a *API) handlePresetLoad(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.InitializeGraph(); err != nil {
		a.logger.Error().Err(err).Msg("initialize audio graph")
		writeError(w, http.StatusInternalServerError, "audio_unavailable")
		return
	}
	if _, err := a.presets.Apply(r.Context(), chi.URLParam(r, "presetID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeMix(w, http.StatusOK)
}

func (a *API) handlePresetDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.presets.Delete(r.Context(), chi.URLParam(r, "presetID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
