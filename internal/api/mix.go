package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type volumeRequest struct {
	Volume *int `json:"volume"`
}

type categoryRequest struct {
	Category   string `json:"category"`
	CategoryID string `json:"categoryId"`
}

type soundRequest struct {
	SoundID string `json:"soundId"`
}

type reorderRequest struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

func (a *API) writeMix(w http.ResponseWriter, status int) {
	writeJSON(w, status, a.engine.Snapshot())
}

func (a *API) handleMixGet(w http.ResponseWriter, r *http.Request) {
	a.writeMix(w, http.StatusOK)
}

func (a *API) handleMasterVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume_required")
		return
	}
	a.engine.SetMasterVolume(*req.Volume)
	a.writeMix(w, http.StatusOK)
}

func (a *API) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.From == nil || req.To == nil {
		writeError(w, http.StatusBadRequest, "from_and_to_required")
		return
	}
	if err := a.engine.Reorder(*req.From, *req.To); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeMix(w, http.StatusOK)
}

func (a *API) handlePlayAll(w http.ResponseWriter, r *http.Request) {
	a.engine.PlayAll(r.Context())
	a.writeMix(w, http.StatusOK)
}

func (a *API) handlePauseAll(w http.ResponseWriter, r *http.Request) {
	a.engine.PauseAll()
	a.writeMix(w, http.StatusOK)
}

func (a *API) handleLayerAdd(w http.ResponseWriter, r *http.Request) {
	l := a.engine.AddLayer()
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) handleLayersClear(w http.ResponseWriter, r *http.Request) {
	a.engine.ClearAll()
	a.writeMix(w, http.StatusOK)
}

// layerAction runs op against the {layerID} in the path and responds with
// the resulting mix.
func (a *API) layerAction(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	if err := op(chi.URLParam(r, "layerID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.writeMix(w, http.StatusOK)
}

func (a *API) handleLayerRemove(w http.ResponseWriter, r *http.Request) {
	a.layerAction(w, r, a.engine.RemoveLayer)
}

func (a *API) handleLayerPlay(w http.ResponseWriter, r *http.Request) {
	a.layerAction(w, r, func(id string) error { return a.engine.Play(r.Context(), id) })
}

func (a *API) handleLayerStop(w http.ResponseWriter, r *http.Request) {
	a.layerAction(w, r, a.engine.Stop)
}

func (a *API) handleLayerToggle(w http.ResponseWriter, r *http.Request) {
	a.layerAction(w, r, func(id string) error { return a.engine.TogglePlay(r.Context(), id) })
}

func (a *API) handleLayerMute(w http.ResponseWriter, r *http.Request) {
	a.layerAction(w, r, a.engine.ToggleMute)
}

func (a *API) handleLayerCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.layerAction(w, r, func(id string) error {
		return a.engine.SetCategory(id, req.Category, req.CategoryID)
	})
}

func (a *API) handleLayerSound(w http.ResponseWriter, r *http.Request) {
	var req soundRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.layerAction(w, r, func(id string) error { return a.engine.SetSound(id, req.SoundID) })
}

func (a *API) handleLayerVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Volume == nil {
		writeError(w, http.StatusBadRequest, "volume_required")
		return
	}
	a.layerAction(w, r, func(id string) error { return a.engine.SetVolume(id, *req.Volume) })
}
