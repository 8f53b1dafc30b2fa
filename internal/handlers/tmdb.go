package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	apierrors "github.com/liamwears/reeldiary/internal/errors"
	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/services"
)

// TMDBHandler imports catalog titles from TMDB and serves poster colors
type TMDBHandler struct {
	importer *services.Importer
	posters  *services.PosterService
	logger   *log.Logger
}

// NewTMDBHandler creates a new TMDB handler. importer may be nil when no
// TMDB key is configured.
func NewTMDBHandler(importer *services.Importer, posters *services.PosterService, logger *log.Logger) *TMDBHandler {
	return &TMDBHandler{
		importer: importer,
		posters:  posters,
		logger:   logger,
	}
}

// Import handles POST /api/import/{kind}/{id}
func (h *TMDBHandler) Import(w http.ResponseWriter, r *http.Request) {
	if h.importer == nil {
		writeError(w, r, h.logger, apierrors.New(apierrors.BadRequest, "TMDB import is not configured"))
		return
	}

	kind := models.Kind(r.PathValue("kind"))
	if !kind.IsValid() {
		writeError(w, r, h.logger, fmt.Errorf("%w: %q", services.ErrInvalidKind, kind))
		return
	}
	tmdbID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || tmdbID <= 0 {
		writeError(w, r, h.logger, apierrors.New(apierrors.BadRequest, "invalid TMDB id").WithField("id"))
		return
	}

	name, err := h.importer.Import(r.Context(), kind, tmdbID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"kind": kind,
		"name": name,
	})
}

// PosterColor handles GET /api/posters/color?url=
func (h *TMDBHandler) PosterColor(w http.ResponseWriter, r *http.Request) {
	hex, ok, err := h.posters.DominantColor(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp := map[string]any{"found": ok}
	if ok {
		resp["color"] = hex
	}
	writeJSON(w, http.StatusOK, resp)
}
