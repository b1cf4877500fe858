// Package api exposes the mixer over JSON HTTP and a websocket.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/satindergrewal/soundscape/internal/catalog"
	"github.com/satindergrewal/soundscape/internal/engine"
	"github.com/satindergrewal/soundscape/internal/events"
	"github.com/satindergrewal/soundscape/internal/logging"
	"github.com/satindergrewal/soundscape/internal/mix"
	"github.com/satindergrewal/soundscape/internal/preset"
	"github.com/satindergrewal/soundscape/internal/store"
	"github.com/satindergrewal/soundscape/internal/telemetry"
)

// Deps are the components the API serves.
type Deps struct {
	Engine  *engine.Engine
	Catalog *catalog.Catalog
	Store   store.ResourceStore
	Presets *preset.Coordinator
	Bus     *events.Bus

	// Optional listener endpoints and metrics.
	Stream  http.Handler
	Offer   http.Handler
	Metrics bool

	MaxUploadBytes int64
}

// API exposes HTTP handlers.
type API struct {
	engine         *engine.Engine
	catalog        *catalog.Catalog
	store          store.ResourceStore
	presets        *preset.Coordinator
	bus            *events.Bus
	stream         http.Handler
	offer          http.Handler
	metrics        bool
	maxUploadBytes int64
	logger         zerolog.Logger
}

// New creates the API.
func New(d Deps, logger zerolog.Logger) *API {
	limit := d.MaxUploadBytes
	if limit <= 0 {
		limit = 50 << 20
	}
	return &API{
		engine:         d.Engine,
		catalog:        d.Catalog,
		store:          d.Store,
		presets:        d.Presets,
		bus:            d.Bus,
		stream:         d.Stream,
		offer:          d.Offer,
		metrics:        d.Metrics,
		maxUploadBytes: limit,
		logger:         logging.Component(logger, "api"),
	}
}

// Handler returns the full router: API routes, listener streams and metrics.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.MetricsMiddleware)

	a.Routes(r)

	if a.stream != nil {
		r.Handle("/stream", a.stream)
	}
	if a.offer != nil {
		r.Handle("/offer", a.offer)
	}
	if a.metrics {
		r.Handle("/metrics", telemetry.Handler())
	}
	return r
}

// Routes mounts API routes on provided router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Route("/mix", func(r chi.Router) {
			r.Use(a.gesture)
			r.Get("/", a.handleMixGet)
			r.Get("/ws", a.handleMixWebSocket)
			r.Put("/master", a.handleMasterVolume)
			r.Post("/reorder", a.handleReorder)
			r.Post("/play-all", a.handlePlayAll)
			r.Post("/pause-all", a.handlePauseAll)

			r.Route("/layers", func(r chi.Router) {
				r.Post("/", a.handleLayerAdd)
				r.Delete("/", a.handleLayersClear)
				r.Route("/{layerID}", func(r chi.Router) {
					r.Delete("/", a.handleLayerRemove)
					r.Post("/play", a.handleLayerPlay)
					r.Post("/stop", a.handleLayerStop)
					r.Post("/toggle", a.handleLayerToggle)
					r.Post("/mute", a.handleLayerMute)
					r.Put("/category", a.handleLayerCategory)
					r.Put("/sound", a.handleLayerSound)
					r.Put("/volume", a.handleLayerVolume)
				})
			})
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/categories", a.handleCatalogCategories)
			r.Get("/sounds", a.handleCatalogSounds)
		})

		r.Route("/sounds", func(r chi.Router) {
			r.Get("/", a.handleSoundsList)
			r.Post("/", a.handleSoundUpload)
			r.Delete("/{soundID}", a.handleSoundDelete)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", a.handleCategoriesList)
			r.Post("/", a.handleCategoryCreate)
			r.Delete("/{categoryID}", a.handleCategoryDelete)
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", a.handlePresetsList)
			r.Post("/", a.handlePresetSave)
			r.Post("/{presetID}/load", a.handlePresetLoad)
			r.Delete("/{presetID}", a.handlePresetDelete)
		})
	})
}

// gesture builds the audio graph on the first mutating mix request.
func (a *API) gesture(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if err := a.engine.InitializeGraph(); err != nil {
				a.logger.Error().Err(err).Msg("initialize audio graph")
				writeError(w, http.StatusInternalServerError, "audio_unavailable")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := a.engine.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"graphReady": a.engine.GraphReady(),
		"layers":     len(snap.Layers),
		"playing":    len(snap.Playing()),
		"sounds":     a.catalog.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDomainError maps core errors to HTTP statuses. Constraint
// violations carry their message verbatim.
func (a *API) writeDomainError(w http.ResponseWriter, err error) {
	var ce *store.ConstraintError
	switch {
	case errors.As(err, &ce):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   "constraint_violation",
			"message": ce.Msg,
			"presets": ce.Presets,
		})
	case errors.Is(err, store.ErrConstraint):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "constraint_violation", "message": err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrLayerNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, mix.ErrIndexOutOfRange):
		writeError(w, http.StatusBadRequest, "index_out_of_range")
	default:
		a.logger.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}
