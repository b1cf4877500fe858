package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/satindergrewal/soundscape/internal/catalog"
	"github.com/satindergrewal/soundscape/internal/events"
)

type categoryCreateRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCatalogCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.catalog.ListCategories())
}

func (a *API) handleCatalogSounds(w http.ResponseWriter, r *http.Request) {
	var sounds []catalog.Sound
	if id := r.URL.Query().Get("categoryId"); id != "" {
		sounds = a.catalog.ListSoundsByCategoryID(id)
	} else {
		sounds = a.catalog.ListSoundsByCategory(r.URL.Query().Get("category"))
	}
	if sounds == nil {
		sounds = []catalog.Sound{}
	}
	writeJSON(w, http.StatusOK, sounds)
}

func (a *API) handleSoundsList(w http.ResponseWriter, r *http.Request) {
	sounds, err := a.store.ListAudioResources(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sounds)
}

// handleSoundUpload accepts a multipart form with fields file, name and
// categoryId. Only the audio MIME class is checked.
func (a *API) handleSoundUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file_too_large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_required")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "audio/") {
		writeError(w, http.StatusUnsupportedMediaType, "audio_required")
		return
	}

	categoryID := r.FormValue("categoryId")
	if categoryID == "" {
		writeError(w, http.StatusBadRequest, "category_id_required")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed")
		return
	}

	rec, err := a.store.PutAudioResource(r.Context(), data, "", name, categoryID)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.libraryChanged(r.Context())
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleSoundDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteAudioResource(r.Context(), chi.URLParam(r, "soundID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.libraryChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleCategoriesList(w http.ResponseWriter, r *http.Request) {
	cats, err := a.store.ListCategories(r.Context())
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (a *API) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryCreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name_required")
		return
	}
	rec, err := a.store.PutCategory(r.Context(), req.Name)
	if err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.libraryChanged(r.Context())
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteCategory(r.Context(), chi.URLParam(r, "categoryID")); err != nil {
		a.writeDomainError(w, err)
		return
	}
	a.libraryChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// libraryChanged refreshes the custom catalog entries and tells observers.
func (a *API) libraryChanged(ctx context.Context) {
	if err := a.catalog.Sync(ctx, a.store); err != nil {
		a.logger.Warn().Err(err).Msg("catalog sync")
	}
	if a.bus != nil {
		a.bus.Publish(events.EventLibraryChanged, events.Payload{"sounds": a.catalog.Len()})
	}
}
