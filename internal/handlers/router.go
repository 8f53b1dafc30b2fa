package handlers

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liamwears/reeldiary/internal/metrics"
	"github.com/liamwears/reeldiary/internal/middleware"
)

// Router wires the handlers to their routes
type Router struct {
	Auth           *AuthHandler
	Catalog        *CatalogHandler
	Diary          *DiaryHandler
	TMDB           *TMDBHandler
	AuthMiddleware *middleware.AuthMiddleware
	// RateLimiter may be nil
	RateLimiter *middleware.RateLimiter
	Health      http.HandlerFunc
}

// Handler builds the HTTP handler with logging and metrics around every route
func (rt *Router) Handler(logger *log.Logger, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	limit := func(h http.Handler) http.Handler { return h }
	if rt.RateLimiter != nil {
		limit = rt.RateLimiter.Limit
	}
	public := func(h http.HandlerFunc) http.Handler { return limit(h) }
	protected := func(h http.HandlerFunc) http.Handler {
		return rt.AuthMiddleware.RequireAuthAPI(limit(h))
	}

	// Auth routes
	mux.Handle("POST /api/auth/register", public(rt.Auth.Register))
	mux.Handle("POST /api/auth/login", public(rt.Auth.Login))
	mux.Handle("POST /api/auth/logout", public(rt.Auth.Logout))
	mux.Handle("GET /api/me", protected(rt.Auth.Me))

	// Catalog routes
	mux.Handle("GET /api/series", protected(rt.Catalog.ListSeries))
	mux.Handle("GET /api/series/{name}", protected(rt.Catalog.GetSeries))
	mux.Handle("GET /api/movies", protected(rt.Catalog.ListMovies))
	mux.Handle("GET /api/movies/{name}", protected(rt.Catalog.GetMovie))
	mux.Handle("GET /api/categories/{kind}", protected(rt.Catalog.Categories))

	// Diary routes
	mux.Handle("PUT /api/diary/ratings/{name}", protected(rt.Diary.Rate))
	mux.Handle("DELETE /api/diary/ratings/{name}", protected(rt.Diary.Unrate))
	mux.Handle("PUT /api/diary/comments/{name}", protected(rt.Diary.Comment))
	mux.Handle("DELETE /api/diary/comments/{name}", protected(rt.Diary.RemoveComment))
	mux.Handle("PUT /api/diary/watch-later/{name}", protected(rt.Diary.AddWatchLater))
	mux.Handle("DELETE /api/diary/watch-later/{name}", protected(rt.Diary.RemoveWatchLater))
	mux.Handle("PUT /api/diary/watched/{name}", protected(rt.Diary.AddAlreadyWatched))
	mux.Handle("DELETE /api/diary/watched/{name}", protected(rt.Diary.RemoveAlreadyWatched))

	// TMDB routes
	mux.Handle("POST /api/import/{kind}/{id}", protected(rt.TMDB.Import))
	mux.Handle("GET /api/posters/color", protected(rt.TMDB.PosterColor))

	mux.Handle("GET /metrics", promhttp.Handler())
	if rt.Health != nil {
		mux.HandleFunc("GET /health", rt.Health)
	}

	return middleware.Logger(logger, m)(mux)
}
