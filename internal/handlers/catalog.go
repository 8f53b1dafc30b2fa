package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/liamwears/reeldiary/internal/models"
	"github.com/liamwears/reeldiary/internal/services"
)

// SeriesView is a series with its computed average rating
type SeriesView struct {
	*models.Series
	AverageRating float64 `json:"averageRating"`
}

// MovieView is a movie with its computed average rating
type MovieView struct {
	*models.Movie
	AverageRating float64 `json:"averageRating"`
}

// CatalogHandler serves catalog listings and details
type CatalogHandler struct {
	catalog *services.Catalog
	logger  *log.Logger
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalog *services.Catalog, logger *log.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ListSeries handles GET /api/series
func (h *CatalogHandler) ListSeries(w http.ResponseWriter, r *http.Request) {
	series, err := h.catalog.Series(catalogQuery(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]SeriesView, 0, len(series))
	for _, s := range series {
		out = append(out, SeriesView{Series: s, AverageRating: s.AverageRating()})
	}
	writeJSON(w, http.StatusOK, out)
}

// ListMovies handles GET /api/movies
func (h *CatalogHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := h.catalog.Movies(catalogQuery(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]MovieView, 0, len(movies))
	for _, m := range movies {
		out = append(out, MovieView{Movie: m, AverageRating: m.AverageRating()})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSeries handles GET /api/series/{name}
func (h *CatalogHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	s, ok := h.catalog.SeriesByName(name)
	if !ok {
		writeError(w, r, h.logger, fmt.Errorf("%w: %q", services.ErrEntityNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, SeriesView{Series: s, AverageRating: s.AverageRating()})
}

// GetMovie handles GET /api/movies/{name}
func (h *CatalogHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	m, ok := h.catalog.MovieByName(name)
	if !ok {
		writeError(w, r, h.logger, fmt.Errorf("%w: %q", services.ErrEntityNotFound, name))
		return
	}
	writeJSON(w, http.StatusOK, MovieView{Movie: m, AverageRating: m.AverageRating()})
}

// Categories handles GET /api/categories/{kind}
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(models.Kind(r.PathValue("kind")))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func catalogQuery(r *http.Request) services.CatalogQuery {
	q := r.URL.Query()
	return services.CatalogQuery{
		Search:   q.Get("query"),
		Category: q.Get("category"),
		Sort:     services.SortOption(q.Get("sort")),
	}
}
