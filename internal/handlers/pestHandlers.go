package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"agroguard/internal/models"
	"agroguard/internal/services"
	"agroguard/internal/utils"
)

type PestHandler struct {
	catalog services.CatalogService
	dev     bool
}

func NewPestHandler(catalog services.CatalogService, dev bool) *PestHandler {
	return &PestHandler{catalog: catalog, dev: dev}
}

func (h *PestHandler) GetPests(w http.ResponseWriter, r *http.Request) {
	pests, err := h.catalog.ListPests(r.Context())
	if err != nil {
		serverError(w, h.dev, "Server error", err)
		return
	}
	log.Debug().Int("count", len(pests)).Msg("Pests retrieved")
	utils.RespondWithJSON(w, http.StatusOK, pests)
}

func (h *PestHandler) GetPest(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	pest, err := h.catalog.GetPest(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pest)
}

func (h *PestHandler) CreatePest(w http.ResponseWriter, r *http.Request) {
	var in models.PestInput
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pest, err := h.catalog.CreatePest(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, pest)
}

func (h *PestHandler) UpdatePest(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var upd models.PestUpdate
	if err := utils.DecodeJSON(r, &upd); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pest, err := h.catalog.UpdatePest(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pest)
}

func (h *PestHandler) DeletePest(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.catalog.DeletePest(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Pest deleted"})
}

func (h *PestHandler) writeError(w http.ResponseWriter, err error) {
	if respondValidation(w, err) {
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		utils.SendJSONError(w, "Pest not found", http.StatusNotFound)
		return
	}
	serverError(w, h.dev, "Server error", err)
}
