package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/scry-rl/scry/internal/domain"
	"github.com/scry-rl/scry/internal/service"
)

type ArchiveHandler struct {
	svc *service.EpisodeService
}

func NewArchiveHandler(svc *service.EpisodeService) *ArchiveHandler {
	return &ArchiveHandler{svc: svc}
}

type archivedEpisodesResponse struct {
	Episodes []domain.EpisodeRecord `json:"episodes"`
	Count    int                    `json:"count"`
}

func (h *ArchiveHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	episodes, err := h.svc.RecentArchived(r.Context(), limit)
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list archived episodes")
		return
	}

	writeJSON(w, http.StatusOK, archivedEpisodesResponse{Episodes: episodes, Count: len(episodes)})
}

func (h *ArchiveHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	rec, cs, err := h.svc.ArchivedEpisode(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArchiveDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrEpisodeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to get archived episode")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"episode":        rec,
		"contradictions": cs,
	})
}

type similarRequest struct {
	Snapshot  []float32 `json:"snapshot,omitempty"`
	EpisodeID string    `json:"episode_id,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

// Similar ranks archived episodes against a roster-wide snapshot, given
// either literally or as the id of a hosted episode to project.
func (h *ArchiveHandler) Similar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	snapshot := req.Snapshot
	if req.EpisodeID != "" {
		id, err := uuid.Parse(req.EpisodeID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid episode_id")
			return
		}
		snapshot, err = h.svc.FlatSnapshot(id, 0)
		if err != nil {
			if errors.Is(err, service.ErrEpisodeNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to build snapshot")
			return
		}
	}
	if len(snapshot) == 0 {
		writeError(w, http.StatusBadRequest, "snapshot or episode_id is required")
		return
	}

	matches, err := h.svc.SimilarArchived(r.Context(), snapshot, req.Limit)
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to query similar episodes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"episodes": matches,
		"count":    len(matches),
	})
}
