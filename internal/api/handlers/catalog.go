package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scry-rl/scry/internal/catalog"
)

type CatalogHandler struct {
	cat *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{cat: cat}
}

// GetSpecies reports the prior role set for one species. Unlike the
// engine, which tracks unknown species under a synthetic role, the
// inspection surface answers 404 so catalog gaps are visible.
func (h *CatalogHandler) GetSpecies(w http.ResponseWriter, r *http.Request) {
	species := chi.URLParam(r, "species")

	roles, err := h.cat.Lookup(species)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownSpecies) {
			writeError(w, http.StatusNotFound, "species not in catalog")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up species")
		return
	}

	level, baseSpeed, _ := h.cat.SpeciesStats(species)
	writeJSON(w, http.StatusOK, map[string]any{
		"species":    roles[0].Species,
		"level":      level,
		"base_speed": baseSpeed,
		"roles":      roles,
	})
}
