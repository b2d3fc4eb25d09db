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

type EpisodeHandler struct {
	svc *service.EpisodeService
}

func NewEpisodeHandler(svc *service.EpisodeService) *EpisodeHandler {
	return &EpisodeHandler{svc: svc}
}

type createEpisodeRequest struct {
	Roster map[int]string `json:"roster,omitempty"`
}

func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEpisodeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	for slot := range req.Roster {
		if !domain.ValidSlot(slot) {
			writeError(w, http.StatusBadRequest, "invalid roster slot (1-6)")
			return
		}
	}

	writeJSON(w, http.StatusCreated, h.svc.Create(req.Roster))
}

type listEpisodesResponse struct {
	Episodes []service.EpisodeSummary `json:"episodes"`
	Count    int                      `json:"count"`
}

func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	episodes := h.svc.List()
	writeJSON(w, http.StatusOK, listEpisodesResponse{Episodes: episodes, Count: len(episodes)})
}

func (h *EpisodeHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	sum, err := h.svc.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}

	writeJSON(w, http.StatusOK, sum)
}

type ingestRequest struct {
	Event  *domain.EventEnvelope  `json:"event,omitempty"`
	Events []domain.EventEnvelope `json:"events,omitempty"`
}

func (h *EpisodeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	envs := req.Events
	if req.Event != nil {
		envs = append(envs, *req.Event)
	}
	if len(envs) == 0 {
		writeError(w, http.StatusBadRequest, "event or events is required")
		return
	}

	res, err := h.svc.Ingest(id, envs)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to ingest events")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type beliefsResponse struct {
	Beliefs []service.BeliefView `json:"beliefs"`
	Count   int                  `json:"count"`
}

func (h *EpisodeHandler) Beliefs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	views, err := h.svc.Beliefs(id)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get beliefs")
		return
	}

	writeJSON(w, http.StatusOK, beliefsResponse{Beliefs: views, Count: len(views)})
}

func (h *EpisodeHandler) BeliefBySlot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	slot, err := strconv.Atoi(chi.URLParam(r, "slot"))
	if err != nil || !domain.ValidSlot(slot) {
		writeError(w, http.StatusBadRequest, "invalid slot (1-6)")
		return
	}

	view, err := h.svc.Belief(id, slot)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEpisodeNotFound),
			errors.Is(err, service.ErrSlotNotTracked):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to get belief")
		}
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *EpisodeHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	size := 0
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size <= 0 {
			writeError(w, http.StatusBadRequest, "invalid size")
			return
		}
	}

	if flatStr := r.URL.Query().Get("flat"); flatStr == "true" || flatStr == "1" {
		flat, err := h.svc.FlatSnapshot(id, size)
		if err != nil {
			if errors.Is(err, service.ErrEpisodeNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to build snapshot")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"episode_id": id,
			"size":       len(flat) / domain.RosterSize,
			"snapshot":   flat,
		})
		return
	}

	snap, err := h.svc.Snapshot(id, size)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build snapshot")
		return
	}

	outSize := size
	if outSize <= 0 {
		outSize = h.svc.SnapshotSize
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"episode_id": id,
		"size":       outSize,
		"slots":      snap,
	})
}

type contradictionsResponse struct {
	Contradictions []domain.Contradiction `json:"contradictions"`
	Count          int                    `json:"count"`
}

func (h *EpisodeHandler) Contradictions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	cs, err := h.svc.Contradictions(id)
	if err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get contradictions")
		return
	}

	writeJSON(w, http.StatusOK, contradictionsResponse{Contradictions: cs, Count: len(cs)})
}

func (h *EpisodeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	if err := h.svc.Reset(id); err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset episode")
		return
	}

	sum, err := h.svc.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *EpisodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	if err := h.svc.Delete(id); err != nil {
		if errors.Is(err, service.ErrEpisodeNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete episode")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *EpisodeHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid episode id")
		return
	}

	rec, err := h.svc.Archive(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrArchiveDisabled):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrEpisodeNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to archive episode")
		}
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}
