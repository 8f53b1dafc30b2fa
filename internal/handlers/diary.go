package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/liamwears/reeldiary/internal/middleware"
	"github.com/liamwears/reeldiary/internal/services"
)

// DiaryHandler handles ratings, comments and watch lists of the signed-in user
type DiaryHandler struct {
	diary  *services.DiaryService
	logger *log.Logger
}

// NewDiaryHandler creates a new diary handler
func NewDiaryHandler(diary *services.DiaryService, logger *log.Logger) *DiaryHandler {
	return &DiaryHandler{
		diary:  diary,
		logger: logger,
	}
}

type rateRequest struct {
	Score float64 `json:"score"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// Rate handles PUT /api/diary/ratings/{name}
func (h *DiaryHandler) Rate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, userID, name string) (*services.Mutation, error) {
		return h.diary.Rate(ctx, userID, name, req.Score)
	})
}

// Unrate handles DELETE /api/diary/ratings/{name}
func (h *DiaryHandler) Unrate(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.Unrate)
}

// Comment handles PUT /api/diary/comments/{name}
func (h *DiaryHandler) Comment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.mutate(w, r, func(ctx context.Context, userID, name string) (*services.Mutation, error) {
		return h.diary.Comment(ctx, userID, name, req.Text)
	})
}

// RemoveComment handles DELETE /api/diary/comments/{name}
func (h *DiaryHandler) RemoveComment(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.RemoveComment)
}

// AddWatchLater handles PUT /api/diary/watch-later/{name}
func (h *DiaryHandler) AddWatchLater(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.AddWatchLater)
}

// RemoveWatchLater handles DELETE /api/diary/watch-later/{name}
func (h *DiaryHandler) RemoveWatchLater(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.RemoveWatchLater)
}

// AddAlreadyWatched handles PUT /api/diary/watched/{name}
func (h *DiaryHandler) AddAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.AddAlreadyWatched)
}

// RemoveAlreadyWatched handles DELETE /api/diary/watched/{name}
func (h *DiaryHandler) RemoveAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.diary.RemoveAlreadyWatched)
}

// mutate runs op for the signed-in user. With ?wait=true the response is
// held until the remote writes finish and reports their failure.
func (h *DiaryHandler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, name string) (*services.Mutation, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, services.ErrNotAuthenticated)
		return
	}

	mut, err := op(r.Context(), userID, r.PathValue("name"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	status := http.StatusAccepted
	if r.URL.Query().Get("wait") == "true" {
		if err := mut.Wait(r.Context()); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		status = http.StatusOK
	}
	writeJSON(w, status, mut)
}
